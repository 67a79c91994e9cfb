// internal/browser/static/page.go
package static

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser/dom"
)

// maxFrameDepth bounds iframe nesting so self-referencing pages terminate.
const maxFrameDepth = 8

// Page is an HTML file and the frames embedded in it, each with a local actuator.
// Frame IDs are assigned depth first in document order; the top document is frame 0.
type Page struct {
	logger *zap.Logger
	frames []*dom.Frame
	acts   map[schemas.FrameID]*dom.LocalActuator
	// hosts maps a child frame to the <iframe> element that embeds it.
	hosts map[schemas.FrameID]*html.Node
}

// Load reads path and every iframe whose content is available locally:
// srcdoc documents and relative or file:// src references.
func Load(ctx context.Context, logger *zap.Logger, path string) (*Page, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	return LoadReader(ctx, logger, bytes.NewReader(data), "file://"+filepath.ToSlash(abs))
}

// LoadReader is Load for an in-memory document. baseURL resolves relative iframe sources.
func LoadReader(ctx context.Context, logger *zap.Logger, r io.Reader, baseURL string) (*Page, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Page{
		logger: logger.Named("static"),
		acts:   make(map[schemas.FrameID]*dom.LocalActuator),
		hosts:  make(map[schemas.FrameID]*html.Node),
	}
	doc, err := dom.Parse(r)
	if err != nil {
		return nil, err
	}
	p.addFrame(doc, baseURL, nil)
	if err := p.collectFrames(ctx, doc, baseURL, 1); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Page) addFrame(doc *dom.Document, frameURL string, host *html.Node) *dom.Frame {
	id := schemas.FrameID(len(p.frames))
	act := dom.NewLocalActuator(doc)
	f := &dom.Frame{ID: id, URL: frameURL, Doc: doc, Act: act}
	p.frames = append(p.frames, f)
	p.acts[id] = act
	if host != nil {
		p.hosts[id] = host
	}
	return f
}

func (p *Page) collectFrames(ctx context.Context, parent *dom.Document, baseURL string, depth int) error {
	for _, host := range htmlquery.Find(parent.Root(), "//iframe") {
		if err := ctx.Err(); err != nil {
			return err
		}
		if depth > maxFrameDepth {
			p.logger.Warn("Iframe nesting too deep, skipping.", zap.Int("depth", depth))
			return nil
		}

		var (
			src      io.Reader
			frameURL string
		)
		if srcdoc, ok := attr(host, "srcdoc"); ok {
			src, frameURL = strings.NewReader(srcdoc), "about:srcdoc"
		} else if ref := htmlquery.SelectAttr(host, "src"); ref != "" {
			resolved, path, ok := resolveLocal(baseURL, ref)
			if !ok {
				p.logger.Info("Skipping iframe that is not available offline.", zap.String("src", ref))
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				p.logger.Warn("Failed to read iframe source.", zap.String("src", ref), zap.Error(err))
				continue
			}
			src, frameURL = bytes.NewReader(data), resolved
		} else {
			continue
		}

		child, err := dom.Parse(src)
		if err != nil {
			p.logger.Warn("Failed to parse iframe document.", zap.String("url", frameURL), zap.Error(err))
			continue
		}
		p.addFrame(child, frameURL, host)
		childBase := frameURL
		if frameURL == "about:srcdoc" {
			childBase = baseURL
		}
		if err := p.collectFrames(ctx, child, childBase, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// resolveLocal resolves ref against base and returns the file path when the result is a local file.
func resolveLocal(base, ref string) (string, string, bool) {
	b, err := url.Parse(base)
	if err != nil {
		return "", "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", "", false
	}
	u := b.ResolveReference(r)
	if u.Scheme != "file" {
		return "", "", false
	}
	return u.String(), filepath.FromSlash(u.Path), true
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Frames returns the page's frames, top first.
func (p *Page) Frames() []*dom.Frame {
	out := make([]*dom.Frame, len(p.frames))
	copy(out, p.frames)
	return out
}

// Frame returns the frame with the given id.
func (p *Page) Frame(id schemas.FrameID) (*dom.Frame, bool) {
	if int(id) < 0 || int(id) >= len(p.frames) {
		return nil, false
	}
	return p.frames[id], true
}

// Events returns what the actuator of a frame applied.
func (p *Page) Events(id schemas.FrameID) []dom.RecordedEvent {
	if act, ok := p.acts[id]; ok {
		return act.Events()
	}
	return nil
}

// Render writes the top document with every child frame inlined into its
// <iframe srcdoc>, so the output is self-contained.
func (p *Page) Render(w io.Writer) error {
	// Children always have larger ids than their hosts, so inline from the deepest up.
	for i := len(p.frames) - 1; i > 0; i-- {
		f := p.frames[i]
		host := p.hosts[f.ID]
		if host == nil {
			continue
		}
		setAttr(host, "srcdoc", f.Doc.HTML())
		removeAttr(host, "src")
	}
	if len(p.frames) == 0 {
		return fmt.Errorf("page has no frames")
	}
	return p.frames[0].Doc.Render(w)
}

// WriteFile renders the page into path.
func (p *Page) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := p.Render(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			kept = append(kept, a)
		}
	}
	n.Attr = kept
}
