package output

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/dotmirror/dotmirror/internal/config"
	"github.com/dotmirror/dotmirror/internal/git"
	"github.com/dotmirror/dotmirror/internal/sync"
)

// PrintMappings formats and prints the declared mappings as an ASCII table
// with per-source existence status.
func PrintMappings(cfg *config.Config) {
	fmt.Printf("Repository: %s (%s, branch %s)\n",
		cfg.Repository.URL, cfg.Repository.Provider(), cfg.Repository.Branch)

	if len(cfg.Files) == 0 {
		fmt.Println("No mappings declared.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Source", "Dest", "Status")

	for _, m := range cfg.Files {
		table.Append(m.Source, m.Dest, sourceStatus(m.Source))
	}

	table.Render()
}

// PrintSummary formats and prints a run summary, including the bounded
// change preview for directory mappings.
func PrintSummary(summary *sync.Summary, mode sync.Mode) {
	if mode == sync.Preview {
		fmt.Println("Dry run (no changes applied)")
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Dest", "Result", "Details")

	for _, o := range summary.Outcomes {
		table.Append(o.Dest, string(o.Status), outcomeDetails(o))
	}

	table.Render()
	fmt.Printf("%d of %d mappings changed\n", summary.Changed, summary.Total)
}

// PrintPublishResult reports the outcome of a publish attempt.
func PrintPublishResult(result *git.PublishResult) {
	switch result.Status {
	case git.NothingToCommit:
		fmt.Println("Nothing to commit; mirror already published.")
	case git.Committed:
		fmt.Printf("Committed and pushed %s\n", shortCommit(result.CommitID))
	case git.PushFailed:
		fmt.Printf("Committed %s but push failed: %s\n", shortCommit(result.CommitID), result.Reason)
	default:
		fmt.Printf("Publish failed: %s\n", result.Reason)
	}
}

// sourceStatus describes whether a mapping's source currently exists.
func sourceStatus(source string) string {
	info, err := os.Stat(source)
	if err != nil {
		return "missing"
	}
	if info.IsDir() {
		return "directory"
	}
	return "file"
}

// outcomeDetails renders the capped change preview of one outcome.
func outcomeDetails(o sync.Outcome) string {
	if o.Err != nil {
		return o.Err.Error()
	}
	if len(o.Changes) == 0 {
		return ""
	}

	details := ""
	for i, ch := range o.Changes {
		if i > 0 {
			details += ", "
		}
		details += fmt.Sprintf("%s %s", ch.Kind, ch.Path)
	}
	if o.MoreChanges > 0 {
		details += fmt.Sprintf(" (+%d more)", o.MoreChanges)
	}
	return details
}

// shortCommit abbreviates a commit hash for display.
func shortCommit(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
