package sync

import (
	"log/slog"

	"github.com/dotmirror/dotmirror/internal/config"
)

// Runner drives one reconciliation per declared mapping and aggregates the
// outcomes into a run summary.
type Runner struct {
	cfg        *config.Config
	reconciler *Reconciler
	logger     *slog.Logger
}

// NewRunner creates a new sync runner.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:        cfg,
		reconciler: NewReconciler(),
		logger:     logger,
	}
}

// Run reconciles every mapping in declared order. One mapping's failure or
// missing source never aborts the run; it contributes its outcome and the
// run proceeds. In Preview mode the mirror root is never mutated.
func (r *Runner) Run(mode Mode) *Summary {
	r.logger.Info("starting sync run",
		"mirror", r.cfg.Paths.MirrorDir,
		"mappings", len(r.cfg.Files),
		"mode", mode.String())

	summary := &Summary{
		Outcomes: make([]Outcome, 0, len(r.cfg.Files)),
		Total:    len(r.cfg.Files),
	}

	for _, m := range r.cfg.Files {
		outcome := r.reconciler.Reconcile(m.Source, r.cfg.MirrorPath(m), mode)
		outcome.Dest = m.Dest

		switch outcome.Status {
		case StatusSourceMissing:
			r.logger.Warn("source missing, skipping", "source", m.Source, "dest", m.Dest)
		case StatusFailed:
			r.logger.Error("mapping failed", "dest", m.Dest, "error", outcome.Err)
		case StatusUnchanged:
			r.logger.Debug("unchanged", "dest", m.Dest)
		default:
			r.logger.Info("reconciled", "dest", m.Dest, "status", string(outcome.Status), "mode", mode.String())
		}

		if outcome.Changed() {
			summary.Changed++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
	}

	r.logger.Info("sync run complete",
		"total", summary.Total,
		"changed", summary.Changed,
		"mode", mode.String())

	return summary
}
