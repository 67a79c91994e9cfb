// browser/dom/actuator.go
package dom

import (
	"context"
	"fmt"
	"sync"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// Actuator applies page-visible changes to elements of one frame. The static
// backend mutates the parsed tree; the live backend drives the browser and mirrors
// each change into its snapshot.
type Actuator interface {
	// SetValue assigns the value property (textContent for contenteditable hosts).
	SetValue(ctx context.Context, el *Element, value string) error
	// SelectOption makes option index the selected one.
	SelectOption(ctx context.Context, el *Element, index int) error
	// SetChecked assigns the checked property without firing events.
	SetChecked(ctx context.Context, el *Element, checked bool) error
	// Click emulates a user click, including checkbox and radio activation.
	Click(ctx context.Context, el *Element) error
	// DispatchEvent fires a bubbling event of the given type.
	DispatchEvent(ctx context.Context, el *Element, eventType string) error
}

// Frame is one browsing context: its snapshot and the means to act on it.
type Frame struct {
	ID  schemas.FrameID
	URL string
	Doc *Document
	Act Actuator
}

// ErrForeignElement is returned when an actuator is handed an element from another document.
var ErrForeignElement = fmt.Errorf("element does not belong to this frame")

// RecordedEvent is one page-visible effect applied by a LocalActuator.
type RecordedEvent struct {
	Locator string
	Kind    string
	Value   string
}

// LocalActuator applies changes directly to a parsed Document and records them.
type LocalActuator struct {
	doc *Document

	mu  sync.Mutex
	log []RecordedEvent
}

var _ Actuator = (*LocalActuator)(nil)

// NewLocalActuator binds an actuator to doc.
func NewLocalActuator(doc *Document) *LocalActuator {
	return &LocalActuator{doc: doc}
}

// Events returns a copy of everything applied so far.
func (a *LocalActuator) Events() []RecordedEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]RecordedEvent, len(a.log))
	copy(out, a.log)
	return out
}

func (a *LocalActuator) record(el *Element, kind, value string) {
	a.mu.Lock()
	a.log = append(a.log, RecordedEvent{Locator: el.Locator(), Kind: kind, Value: value})
	a.mu.Unlock()
}

func (a *LocalActuator) check(ctx context.Context, el *Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if el == nil || el.Document() != a.doc {
		return ErrForeignElement
	}
	if el.Node().Parent == nil {
		return fmt.Errorf("element %s is detached", el.Tag())
	}
	return nil
}

func (a *LocalActuator) SetValue(ctx context.Context, el *Element, value string) error {
	if err := a.check(ctx, el); err != nil {
		return err
	}
	if el.InputType() == "file" {
		return fmt.Errorf("file inputs cannot be assigned a value")
	}
	el.ApplyValue(value)
	a.record(el, "value", value)
	return nil
}

func (a *LocalActuator) SelectOption(ctx context.Context, el *Element, index int) error {
	if err := a.check(ctx, el); err != nil {
		return err
	}
	if el.Tag() != "select" {
		return fmt.Errorf("cannot select an option on <%s>", el.Tag())
	}
	if !el.ApplySelected(index) {
		return fmt.Errorf("option index %d out of range", index)
	}
	a.record(el, "select", fmt.Sprint(index))
	return nil
}

func (a *LocalActuator) SetChecked(ctx context.Context, el *Element, checked bool) error {
	if err := a.check(ctx, el); err != nil {
		return err
	}
	el.ApplyChecked(checked)
	a.record(el, "checked", fmt.Sprint(checked))
	return nil
}

// Click toggles checkboxes and checks radios before recording the click, then
// fires input and change for them as a browser's activation behavior would.
func (a *LocalActuator) Click(ctx context.Context, el *Element) error {
	if err := a.check(ctx, el); err != nil {
		return err
	}
	t := el.InputType()
	switch t {
	case "checkbox":
		el.ApplyChecked(!el.Checked())
	case "radio":
		el.ApplyChecked(true)
	}
	a.record(el, "click", "")
	if t == "checkbox" || t == "radio" {
		a.record(el, "input", "")
		a.record(el, "change", "")
	}
	return nil
}

func (a *LocalActuator) DispatchEvent(ctx context.Context, el *Element, eventType string) error {
	if err := a.check(ctx, el); err != nil {
		return err
	}
	a.record(el, eventType, "")
	return nil
}
