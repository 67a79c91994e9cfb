// internal/autofill/filler/filler.go
package filler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser/dom"
)

// Executor applies resolved values to elements of one frame.
type Executor struct {
	logger *zap.Logger
	act    dom.Actuator
}

// New binds an executor to the actuator of a frame.
func New(logger *zap.Logger, act dom.Actuator) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger.Named("filler"), act: act}
}

// Fill applies value to el with the strategy its kind calls for and reports
// whether the element was filled. It never returns an error: failures and
// panics inside the actuator are logged and count as not filled.
func (x *Executor) Fill(ctx context.Context, el *dom.Element, value string, ft schemas.FieldType) (filled bool) {
	if value == "" || el == nil || x.act == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("Recovered from panic while filling field.",
				zap.Any("panic_value", r),
				zap.String("field_type", ft.String()),
				zap.String("locator", el.Locator()))
			filled = false
		}
	}()

	var err error
	switch inputType := el.InputType(); {
	case el.Tag() == "select":
		filled, err = x.fillSelect(ctx, el, value)
	case inputType == "checkbox" || inputType == "radio":
		filled, err = x.fillCheckable(ctx, el, value)
	case inputType == "file":
		x.logger.Debug("Skipping file input.", zap.String("field_type", ft.String()))
		return false
	default:
		filled, err = x.fillText(ctx, el, value)
	}
	if err != nil {
		x.logger.Warn("Failed to fill field.",
			zap.String("field_type", ft.String()),
			zap.String("locator", el.Locator()),
			zap.Error(err))
		return false
	}
	return filled
}

// -- Strategies --

// fillSelect picks the first option whose text or value equals the value, and
// failing that the first whose text or value contains it or is contained by it.
func (x *Executor) fillSelect(ctx context.Context, el *dom.Element, value string) (bool, error) {
	want := strings.ToLower(value)
	opts := el.Options()

	index := -1
	for i, o := range opts {
		if strings.ToLower(o.Text) == want || strings.ToLower(o.Value) == want {
			index = i
			break
		}
	}
	if index < 0 {
		for i, o := range opts {
			if overlaps(strings.ToLower(o.Text), want) || overlaps(strings.ToLower(o.Value), want) {
				index = i
				break
			}
		}
	}
	if index < 0 {
		return false, nil
	}

	if err := x.act.SelectOption(ctx, el, index); err != nil {
		return false, fmt.Errorf("select option %d: %w", index, err)
	}
	if err := x.act.DispatchEvent(ctx, el, "change"); err != nil {
		return false, err
	}
	return true, nil
}

// fillCheckable decides whether a checkbox or radio represents the value. Yes and
// no answers look for the word in the field context or the value attribute; every
// value then falls back to containment against the context.
func (x *Executor) fillCheckable(ctx context.Context, el *dom.Element, value string) (bool, error) {
	want := strings.ToLower(value)
	fieldCtx := strings.ToLower(dom.ExtractContext(el))
	own := strings.ToLower(el.Value())

	match := false
	switch want {
	case "yes", "true":
		match = strings.Contains(fieldCtx, "yes") || own == "yes"
	case "no", "false":
		match = strings.Contains(fieldCtx, "no") || own == "no"
	}
	if !match {
		match = overlaps(fieldCtx, want)
	}
	if !match {
		return false, nil
	}

	if !el.Checked() {
		if err := x.act.Click(ctx, el); err != nil {
			return false, err
		}
	}
	if err := x.act.SetChecked(ctx, el, true); err != nil {
		return false, err
	}
	return true, nil
}

func (x *Executor) fillText(ctx context.Context, el *dom.Element, value string) (bool, error) {
	if err := x.act.SetValue(ctx, el, value); err != nil {
		return false, err
	}
	for _, ev := range []string{"input", "change", "blur"} {
		if err := x.act.DispatchEvent(ctx, el, ev); err != nil {
			return false, fmt.Errorf("dispatch %s: %w", ev, err)
		}
	}
	return true, nil
}

// overlaps is bidirectional substring containment. An empty side never matches,
// otherwise a blank option or context would accept any value.
func overlaps(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
