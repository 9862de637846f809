package pipeline

import (
	"context"

	"github.com/jmehdipour/notifications-delivery/internal/failure"
	"github.com/jmehdipour/notifications-delivery/internal/model"
)

// StatusReporter records the terminal status of a job notification with the owning system.
type StatusReporter interface {
	Record(ctx context.Context, rec model.FinalizationRecord) error
}

// Finalizer reports job-linked requests exactly once per processing attempt.
type Finalizer struct {
	reporter StatusReporter
}

func NewFinalizer(reporter StatusReporter) *Finalizer {
	return &Finalizer{reporter: reporter}
}

// Finalize is a no-op for requests without a job. The status in outcome is
// computed before reporting, so a reporter outage never turns a sent message
// into a failed one.
func (f *Finalizer) Finalize(ctx context.Context, req model.Request, outcome model.Outcome) error {
	h := req.Header()
	if !h.HasJob() {
		return nil
	}

	rec := model.NewFinalizationRecord(req, outcome.Status)
	if err := f.reporter.Record(ctx, rec); err != nil {
		return failure.Classify("record status for job "+h.JobID, err)
	}
	return nil
}
