// internal/browser/static/page_test.go
package static

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser/dom"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFramesDepthFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "child.html", `<body><input id="in-child"><iframe srcdoc="&lt;input id=&quot;in-grandchild&quot;&gt;"></iframe></body>`)
	top := writeFile(t, dir, "top.html", `<body>
		<input id="in-top">
		<iframe src="child.html"></iframe>
		<iframe srcdoc="<input id='in-srcdoc'>"></iframe>
		<iframe src="https://example.com/remote"></iframe>
		<iframe src="missing.html"></iframe>
		<iframe></iframe>
	</body>`)

	page, err := Load(context.Background(), zaptest.NewLogger(t), top)
	require.NoError(t, err)

	frames := page.Frames()
	require.Len(t, frames, 4)
	want := []string{"in-top", "in-child", "in-grandchild", "in-srcdoc"}
	for i, f := range frames {
		assert.Equal(t, schemas.FrameID(i), f.ID)
		assert.NotNil(t, f.Doc.ByID(want[i]), "frame %d should contain #%s", i, want[i])
		assert.NotNil(t, f.Act)
	}
	assert.True(t, strings.HasPrefix(frames[0].URL, "file://"))
	assert.True(t, strings.HasSuffix(frames[1].URL, "/child.html"))
	assert.Equal(t, "about:srcdoc", frames[2].URL)

	f, ok := page.Frame(3)
	require.True(t, ok)
	assert.Same(t, frames[3], f)
	_, ok = page.Frame(4)
	assert.False(t, ok)
}

func TestRenderInlinesMutatedFrames(t *testing.T) {
	src := `<body><input id="top"><iframe srcdoc="<input id='inner'>"></iframe></body>`
	page, err := LoadReader(context.Background(), zaptest.NewLogger(t), strings.NewReader(src), "file:///tmp/page.html")
	require.NoError(t, err)
	require.Len(t, page.Frames(), 2)

	ctx := context.Background()
	child, _ := page.Frame(1)
	require.NoError(t, child.Act.SetValue(ctx, child.Doc.ByID("inner"), "filled-inner"))
	top, _ := page.Frame(0)
	require.NoError(t, top.Act.SetValue(ctx, top.Doc.ByID("top"), "filled-top"))

	var buf bytes.Buffer
	require.NoError(t, page.Render(&buf))
	out := buf.String()
	assert.Contains(t, out, `value="filled-top"`)
	assert.Contains(t, out, "filled-inner", "child frame is inlined into srcdoc")

	reloaded, err := LoadReader(ctx, nil, strings.NewReader(out), "file:///tmp/page.html")
	require.NoError(t, err)
	inner, _ := reloaded.Frame(1)
	assert.Equal(t, "filled-inner", inner.Doc.ByID("inner").Value())

	assert.Equal(t, []dom.RecordedEvent{{Locator: `//*[@id='top']`, Kind: "value", Value: "filled-top"}}, page.Events(0))
	assert.Nil(t, page.Events(7))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.html", `<input id="a">`)
	page, err := Load(context.Background(), nil, in)
	require.NoError(t, err)

	out := filepath.Join(dir, "out.html")
	require.NoError(t, page.WriteFile(out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<input id="a"/>`)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(context.Background(), nil, filepath.Join(t.TempDir(), "nope.html"))
	assert.ErrorContains(t, err, "failed to read page")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LoadReader(ctx, nil, strings.NewReader(`<iframe srcdoc="x"></iframe>`), "file:///x.html")
	assert.ErrorIs(t, err, context.Canceled)
}
