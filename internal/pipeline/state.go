package pipeline

import "log/slog"

// State is a step of a sticker request.
type State string

const (
	StateReceived    State = "received"
	StateNormalized  State = "normalized"
	StateTranscribed State = "transcribed"
	StateSynthesized State = "synthesized"
	StatePassThrough State = "pass_through"
	StateTransparent State = "transparent"
	StateStored      State = "stored"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// trace records the states one request went through.
type trace struct {
	logger *slog.Logger
	states []State
}

func newTrace(logger *slog.Logger) *trace {
	t := &trace{logger: logger}
	t.enter(StateReceived)
	return t
}

func (t *trace) enter(s State) {
	t.states = append(t.states, s)
	t.logger.Debug("Sticker request state", "state", s)
}

func (t *trace) fail(err error) error {
	t.states = append(t.states, StateFailed)
	t.logger.Warn("Sticker request failed", "after", t.states[len(t.states)-2], "error", err)
	return err
}
