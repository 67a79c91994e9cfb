// internal/browser/session/snapshot.go
package session

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser/dom"
)

// worldName names the isolated world created in every frame. Page scripts cannot
// see or tamper with globals defined there, while the DOM is shared.
const worldName = "formpilot"

// formProbeJS reports whether the top document holds any form control yet.
const formProbeJS = `document.querySelector('form, input:not([type="hidden"]), select, textarea, [role="textbox"]') !== null`

// snapshotTemplate annotates every candidate with a marker and the browser's
// visibility verdict, then serializes a clone of the document with the live form
// state (values, checkedness, selection) written back as attributes.
// Arguments: candidate selector, marker attribute, visibility attribute, generation.
const snapshotTemplate = `(() => {
  const sel = %s, marker = %s, visible = %s, gen = %s;
  const live = Array.from(document.querySelectorAll(sel));
  live.forEach((el, i) => {
    el.setAttribute(marker, gen + '-' + i);
    const cs = window.getComputedStyle(el);
    const shown = el.offsetParent !== null &&
      cs.visibility !== 'hidden' && cs.visibility !== 'collapse' && cs.display !== 'none';
    el.setAttribute(visible, shown ? 'true' : 'false');
  });
  const root = document.documentElement;
  if (!root) return {html: '', count: 0};
  const copy = root.cloneNode(true);
  const byID = new Map();
  copy.querySelectorAll('[' + marker + ']').forEach(c => byID.set(c.getAttribute(marker), c));
  live.forEach((el, i) => {
    const c = byID.get(gen + '-' + i);
    if (!c) return;
    const tag = el.tagName.toLowerCase();
    if (tag === 'select') {
      const opts = c.querySelectorAll('option');
      Array.from(el.options).forEach((o, j) => {
        if (!opts[j]) return;
        if (o.selected) opts[j].setAttribute('selected', ''); else opts[j].removeAttribute('selected');
      });
    } else if (tag === 'textarea') {
      c.textContent = el.value;
    } else if (tag === 'input') {
      const t = (el.getAttribute('type') || '').toLowerCase();
      if (t === 'checkbox' || t === 'radio') {
        if (el.checked) c.setAttribute('checked', ''); else c.removeAttribute('checked');
      } else if (t !== 'file') {
        c.setAttribute('value', el.value);
      }
    }
  });
  return {html: copy.outerHTML, count: live.length};
})()`

type snapshotResult struct {
	HTML  string `json:"html"`
	Count int    `json:"count"`
}

// frameTarget is one entry of the tab's frame tree.
type frameTarget struct {
	id  cdp.FrameID
	url string
}

// frameTree lists the frames of the tab depth first, the top frame first.
func frameTree(ctx context.Context) ([]frameTarget, error) {
	tree, err := page.GetFrameTree().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get frame tree: %w", err)
	}
	var out []frameTarget
	var walk func(t *page.FrameTree)
	walk = func(t *page.FrameTree) {
		if t == nil || t.Frame == nil {
			return
		}
		out = append(out, frameTarget{id: t.Frame.ID, url: t.Frame.URL + t.Frame.URLFragment})
		for _, child := range t.ChildFrames {
			walk(child)
		}
	}
	walk(tree)
	return out, nil
}

// inWorld binds an evaluation to an execution context.
func inWorld(id runtime.ExecutionContextID) chromedp.EvaluateOption {
	return func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithContextID(id)
	}
}

// jsLiteral renders v as a JavaScript literal.
func jsLiteral(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func snapshotJS(gen int) string {
	return fmt.Sprintf(snapshotTemplate,
		jsLiteral(dom.CandidateSelector),
		jsLiteral(dom.MarkerAttr),
		jsLiteral(dom.VisibleAttr),
		jsLiteral(fmt.Sprint(gen)),
	)
}

// snapshot annotates and serializes one frame, and binds a live actuator to it.
// ctx must carry the chromedp target.
func (s *Session) snapshot(ctx context.Context, t frameTarget, index int) (*dom.Frame, error) {
	world, err := page.CreateIsolatedWorld(t.id).WithWorldName(worldName).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create isolated world: %w", err)
	}

	var res snapshotResult
	if err := chromedp.Evaluate(snapshotJS(s.nextSnapshot()), &res, inWorld(world)).Do(ctx); err != nil {
		return nil, fmt.Errorf("failed to serialize document: %w", err)
	}
	doc, err := dom.ParseString(res.HTML)
	if err != nil {
		return nil, err
	}

	id := schemas.FrameID(index)
	s.logger.Debug("Frame snapshotted.",
		zap.Int("frame", int(id)),
		zap.String("url", t.url),
		zap.Int("candidates", res.Count),
	)
	act := &liveActuator{
		session: s,
		logger:  s.logger.Named("actuator").With(zap.Int("frame", int(id))),
		doc:     doc,
		world:   world,
	}
	return &dom.Frame{ID: id, URL: t.url, Doc: doc, Act: act}, nil
}
