package pipeline

import (
	"context"

	"github.com/jmehdipour/notifications-delivery/internal/failure"
	"github.com/jmehdipour/notifications-delivery/internal/model"
)

type Decoder interface {
	Decode(env model.Envelope) (model.Request, error)
}

// Result is what is known about a message after processing. Request is nil
// when the envelope could not be decoded.
type Result struct {
	Request model.Request
	Outcome model.Outcome
}

// Processor runs decode, dispatch and finalize as one unit.
type Processor struct {
	decoder   Decoder
	engine    *Engine
	finalizer *Finalizer
}

func NewProcessor(decoder Decoder, engine *Engine, finalizer *Finalizer) *Processor {
	return &Processor{decoder: decoder, engine: engine, finalizer: finalizer}
}

// Process handles one envelope. Finalization runs on every exit path out of
// dispatch, including a panic, and its error supersedes the dispatch error.
// A recovered panic is returned as an unclassified *failure.Anomaly.
func (p *Processor) Process(ctx context.Context, env model.Envelope) (res Result, err error) {
	req, err := p.decoder.Decode(env)
	if err != nil {
		return Result{Outcome: model.FailedOutcome()}, err
	}

	res = Result{Request: req, Outcome: model.FailedOutcome()}
	defer func() {
		if r := recover(); r != nil {
			err = &failure.Anomaly{Reason: r}
		}
		err = failure.Supersede(err, p.finalizer.Finalize(ctx, req, res.Outcome))
	}()

	res.Outcome, err = p.engine.Dispatch(ctx, req)
	return res, err
}
