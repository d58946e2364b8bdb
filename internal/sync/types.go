package sync

// Mode selects whether a run reports would-be changes or performs them.
// It is always passed explicitly, never carried as ambient state.
type Mode int

const (
	// Preview computes and reports changes without writing anything.
	Preview Mode = iota
	// Apply performs the writes computed during reconciliation.
	Apply
)

func (m Mode) String() string {
	switch m {
	case Preview:
		return "preview"
	case Apply:
		return "apply"
	default:
		return "unknown"
	}
}

// Status classifies the result of reconciling one mapping.
type Status string

const (
	StatusCreated       Status = "created"
	StatusUpdated       Status = "updated"
	StatusUnchanged     Status = "unchanged"
	StatusSourceMissing Status = "source-missing"
	StatusFailed        Status = "failed"
)

// ChangeKind classifies one entry-level operation within a directory tree.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Change represents one entry-level operation, with Path relative to the
// mapping's destination.
type Change struct {
	Kind ChangeKind
	Path string
}

// Outcome is the per-mapping result of a reconciliation.
type Outcome struct {
	// Dest is the mapping's declared destination, relative to the mirror root.
	Dest string
	// Status classifies the result.
	Status Status
	// Changes holds the first few entry-level changes of a directory
	// mapping, for preview display.
	Changes []Change
	// MoreChanges counts changes omitted from the Changes preview.
	MoreChanges int
	// Err carries the per-mapping error when Status is StatusFailed.
	Err error
}

// Changed reports whether the outcome wrote (or would write) to the mirror.
func (o Outcome) Changed() bool {
	return o.Status == StatusCreated || o.Status == StatusUpdated
}

// Summary aggregates the outcomes of one sync run, in declared order.
type Summary struct {
	Outcomes []Outcome
	Total    int
	Changed  int
}
