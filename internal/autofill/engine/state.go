// internal/autofill/engine/state.go
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser/dom"
)

// State is the phase of one autofill run.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateScanComplete
	StateFilling
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateScanComplete:
		return "scan_complete"
	case StateFilling:
		return "filling"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// transitions lists the legal next states. Every non-terminal state may jump to
// Done when the run is cancelled.
var transitions = map[State][]State{
	StateIdle:         {StateScanning},
	StateScanning:     {StateScanComplete, StateDone},
	StateScanComplete: {StateFilling, StateDone},
	StateFilling:      {StateDone},
}

// ClassifiedField is one scanned field. Element is only valid for the run that
// produced it and must not be retained afterwards.
type ClassifiedField struct {
	Element *dom.Element
	Context string
	Type    schemas.FieldType
	Label   string
	Filled  bool
	Locator string
}

// Report renders the field without its element handle.
func (f *ClassifiedField) Report(frame schemas.FrameID) schemas.FieldReport {
	return schemas.FieldReport{
		Frame:   frame,
		Label:   f.Label,
		Type:    f.Type,
		Locator: f.Locator,
		Context: f.Context,
		Filled:  f.Filled,
	}
}

// run owns the mutable state of a single invocation.
type run struct {
	id     string
	logger *zap.Logger
	state  State
	fields []*ClassifiedField
	filled int
}

// advance moves the run to the next state. Illegal transitions are refused and logged.
func (r *run) advance(to State) bool {
	for _, allowed := range transitions[r.state] {
		if allowed == to {
			r.logger.Debug("Run state changed.", zap.Stringer("from", r.state), zap.Stringer("to", to))
			r.state = to
			return true
		}
	}
	r.logger.Error("Illegal run state transition refused.", zap.Stringer("from", r.state), zap.Stringer("to", to))
	return false
}

func (r *run) markFilled(f *ClassifiedField) {
	if f.Filled {
		return
	}
	f.Filled = true
	r.filled++
}

func (r *run) summary() schemas.FillSummary {
	labels := make([]string, 0, r.filled)
	for _, f := range r.fields {
		if f.Filled {
			labels = append(labels, f.Label)
		}
	}
	return schemas.FillSummary{Total: len(r.fields), Filled: r.filled, Labels: labels}
}

func (r *run) fieldSummaries() []schemas.FieldBrief {
	out := make([]schemas.FieldBrief, len(r.fields))
	for i, f := range r.fields {
		out[i] = schemas.FieldBrief{Label: f.Label, Type: f.Type}
	}
	return out
}
