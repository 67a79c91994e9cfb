// internal/browser/session/actuator.go
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/browser/dom"
)

// opTemplate resolves the marked element in the frame and runs body against it.
// body must return an opResult-shaped object.
const opTemplate = `(() => {
  const el = document.querySelector('[' + %s + '=' + JSON.stringify(%s) + ']');
  if (!el) return {ok: false, error: 'element not found'};
  try {
    %s
  } catch (e) {
    return {ok: false, error: String(e)};
  }
})()`

const setValueBody = `const v = %s;
    const tag = el.tagName.toLowerCase();
    if (tag !== 'input' && tag !== 'textarea' && tag !== 'select' && el.isContentEditable) {
      el.textContent = v;
      return {ok: true};
    }
    const proto = tag === 'textarea' ? HTMLTextAreaElement.prototype
      : tag === 'select' ? HTMLSelectElement.prototype
      : tag === 'input' ? HTMLInputElement.prototype : null;
    const desc = proto && Object.getOwnPropertyDescriptor(proto, 'value');
    if (desc && desc.set) desc.set.call(el, v); else el.value = v;
    return {ok: true};`

const selectOptionBody = `const i = %d;
    if (!el.options || i < 0 || i >= el.options.length) return {ok: false, error: 'option index out of range'};
    el.selectedIndex = i;
    return {ok: true};`

const setCheckedBody = `el.checked = %t;
    return {ok: true, checked: !!el.checked};`

const clickBody = `el.click();
    return {ok: true, checked: !!el.checked};`

const dispatchBody = `el.dispatchEvent(new Event(%s, {bubbles: true}));
    return {ok: true};`

type opResult struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Checked bool   `json:"checked"`
}

// liveActuator acts on the page inside the frame's isolated world and mirrors every
// successful change into the snapshot the classifier reads.
type liveActuator struct {
	session *Session
	logger  *zap.Logger
	doc     *dom.Document
	world   runtime.ExecutionContextID
}

var _ dom.Actuator = (*liveActuator)(nil)

func (a *liveActuator) run(ctx context.Context, el *dom.Element, body string) (opResult, error) {
	if err := ctx.Err(); err != nil {
		return opResult{}, err
	}
	if el == nil || el.Document() != a.doc {
		return opResult{}, dom.ErrForeignElement
	}
	marker, ok := el.Attr(dom.MarkerAttr)
	if !ok {
		return opResult{}, fmt.Errorf("element %s was not annotated by the snapshot", el.Tag())
	}

	expr := fmt.Sprintf(opTemplate, jsLiteral(dom.MarkerAttr), jsLiteral(marker), body)
	var res opResult
	if err := a.session.runActions(ctx, chromedp.Evaluate(expr, &res, inWorld(a.world))); err != nil {
		return opResult{}, fmt.Errorf("failed to evaluate in frame: %w", err)
	}
	if !res.OK {
		if res.Error == "" {
			res.Error = "unknown page error"
		}
		return res, errors.New(res.Error)
	}
	return res, nil
}

func (a *liveActuator) SetValue(ctx context.Context, el *dom.Element, value string) error {
	if el != nil && el.InputType() == "file" {
		return fmt.Errorf("file inputs cannot be assigned a value")
	}
	if _, err := a.run(ctx, el, fmt.Sprintf(setValueBody, jsLiteral(value))); err != nil {
		return err
	}
	el.ApplyValue(value)
	return nil
}

func (a *liveActuator) SelectOption(ctx context.Context, el *dom.Element, index int) error {
	if el != nil && el.Tag() != "select" {
		return fmt.Errorf("cannot select an option on <%s>", el.Tag())
	}
	if _, err := a.run(ctx, el, fmt.Sprintf(selectOptionBody, index)); err != nil {
		return err
	}
	if !el.ApplySelected(index) {
		a.logger.Debug("Snapshot and page disagree on option count.", zap.Int("index", index))
	}
	return nil
}

func (a *liveActuator) SetChecked(ctx context.Context, el *dom.Element, checked bool) error {
	res, err := a.run(ctx, el, fmt.Sprintf(setCheckedBody, checked))
	if err != nil {
		return err
	}
	el.ApplyChecked(res.Checked)
	return nil
}

func (a *liveActuator) Click(ctx context.Context, el *dom.Element) error {
	res, err := a.run(ctx, el, clickBody)
	if err != nil {
		return err
	}
	switch el.InputType() {
	case "checkbox", "radio":
		el.ApplyChecked(res.Checked)
	}
	return nil
}

func (a *liveActuator) DispatchEvent(ctx context.Context, el *dom.Element, eventType string) error {
	_, err := a.run(ctx, el, fmt.Sprintf(dispatchBody, jsLiteral(eventType)))
	return err
}
