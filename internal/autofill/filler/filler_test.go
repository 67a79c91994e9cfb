// internal/autofill/filler/filler_test.go
package filler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser/dom"
)

type fixture struct {
	doc *dom.Document
	act *dom.LocalActuator
	x   *Executor
}

func setup(t *testing.T, src string) fixture {
	t.Helper()
	doc, err := dom.ParseString(src)
	require.NoError(t, err)
	act := dom.NewLocalActuator(doc)
	return fixture{doc: doc, act: act, x: New(zaptest.NewLogger(t), act)}
}

func (f fixture) el(t *testing.T, id string) *dom.Element {
	t.Helper()
	el := f.doc.ByID(id)
	require.NotNil(t, el, "#%s", id)
	return el
}

func kinds(events []dom.RecordedEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestFillSelectExactBeatsPartial(t *testing.T) {
	f := setup(t, `<select id="c"><option>USA Remote</option><option>USA</option><option>Canada</option></select>`)
	sel := f.el(t, "c")

	require.True(t, f.x.Fill(context.Background(), sel, "usa", schemas.FieldCountry))
	assert.Equal(t, 1, sel.SelectedIndex())
	assert.Equal(t, []string{"select", "change"}, kinds(f.act.Events()))
}

func TestFillSelectMatchesValueAttribute(t *testing.T) {
	f := setup(t, `<select id="c"><option value="">Choose</option><option value="us">United States</option><option value="ca">Canada</option></select>`)
	sel := f.el(t, "c")

	require.True(t, f.x.Fill(context.Background(), sel, "CA", schemas.FieldCountry))
	assert.Equal(t, "ca", sel.Value())
}

func TestFillSelectPartialFallback(t *testing.T) {
	f := setup(t, `<select id="auth">
		<option value="">Select...</option>
		<option value="y">Yes, I am authorized</option>
		<option value="n">No</option>
	</select>`)
	sel := f.el(t, "auth")

	require.True(t, f.x.Fill(context.Background(), sel, "Yes", schemas.FieldWorkAuthorization))
	assert.Equal(t, 1, sel.SelectedIndex(), "the blank placeholder never matches by containment")

	f1 := setup(t, `<select id="c"><option>United States of America</option></select>`)
	require.True(t, f1.x.Fill(context.Background(), f1.el(t, "c"), "United States", schemas.FieldCountry))
	assert.Equal(t, 0, f1.el(t, "c").SelectedIndex())

	// The option text contained in the value also counts.
	f2 := setup(t, `<select id="g"><option>Female</option><option>Male</option></select>`)
	require.True(t, f2.x.Fill(context.Background(), f2.el(t, "g"), "Male (he/him)", schemas.FieldGender))
	assert.Equal(t, 1, f2.el(t, "g").SelectedIndex())
}

func TestFillSelectNoMatch(t *testing.T) {
	f := setup(t, `<select id="d"><option>BSc</option><option>MSc</option></select>`)
	assert.False(t, f.x.Fill(context.Background(), f.el(t, "d"), "Doctorate", schemas.FieldDegree))
	assert.Empty(t, f.act.Events())
}

func TestFillRadioYesNo(t *testing.T) {
	const src = `<form>
		<label><input type="radio" name="auth" id="auth-yes" value="yes"> Yes</label>
		<label><input type="radio" name="auth" id="auth-no" value="no"> No</label>
	</form>`
	ctx := context.Background()

	f := setup(t, src)
	assert.False(t, f.x.Fill(ctx, f.el(t, "auth-yes"), "No", schemas.FieldSponsorship))
	assert.True(t, f.x.Fill(ctx, f.el(t, "auth-no"), "No", schemas.FieldSponsorship))
	assert.True(t, f.el(t, "auth-no").Checked())
	assert.False(t, f.el(t, "auth-yes").Checked())
	assert.Equal(t, []string{"click", "input", "change", "checked"}, kinds(f.act.Events()))

	f = setup(t, src)
	assert.True(t, f.x.Fill(ctx, f.el(t, "auth-yes"), "true", schemas.FieldWorkAuthorization))
	assert.True(t, f.el(t, "auth-yes").Checked())
}

func TestFillCheckboxValueAttribute(t *testing.T) {
	f := setup(t, `<input type="checkbox" id="opt" value="YES">`)
	require.True(t, f.x.Fill(context.Background(), f.el(t, "opt"), "yes", schemas.FieldWorkAuthorization))
	assert.True(t, f.el(t, "opt").Checked())
}

func TestFillCheckboxContextContainment(t *testing.T) {
	f := setup(t, `<label><input type="checkbox" id="g-f" name="gender"> I identify as female</label>`)
	require.True(t, f.x.Fill(context.Background(), f.el(t, "g-f"), "Female", schemas.FieldGender))

	f = setup(t, `<label><input type="checkbox" id="g-m" name="gender"> Male</label>`)
	assert.False(t, f.x.Fill(context.Background(), f.el(t, "g-m"), "Female", schemas.FieldGender))
}

func TestFillCheckboxAlreadyChecked(t *testing.T) {
	f := setup(t, `<label><input type="checkbox" id="v" checked> Yes, I am a veteran</label>`)
	require.True(t, f.x.Fill(context.Background(), f.el(t, "v"), "Yes", schemas.FieldVeteran))
	assert.True(t, f.el(t, "v").Checked(), "a checked box is not toggled off")
	assert.Equal(t, []string{"checked"}, kinds(f.act.Events()))
}

func TestFillCheckboxWithoutContext(t *testing.T) {
	f := setup(t, `<div><input type="checkbox" data-x="1"></div>`)
	box := f.doc.Select("input")[0]
	assert.False(t, f.x.Fill(context.Background(), box, "Prefer not to say", schemas.FieldRace))
}

func TestFillText(t *testing.T) {
	f := setup(t, `<input id="fn"><textarea id="bio"></textarea><div id="rich" role="textbox" contenteditable="true"></div>`)
	ctx := context.Background()

	require.True(t, f.x.Fill(ctx, f.el(t, "fn"), "Ana", schemas.FieldFirstName))
	require.True(t, f.x.Fill(ctx, f.el(t, "bio"), "Builder.", schemas.FieldSummary))
	require.True(t, f.x.Fill(ctx, f.el(t, "rich"), "Hello", schemas.FieldSummary))

	assert.Equal(t, "Ana", f.el(t, "fn").Value())
	assert.Equal(t, "Builder.", f.el(t, "bio").Value())
	assert.Equal(t, "Hello", f.el(t, "rich").Text())
	assert.Equal(t, []string{"value", "input", "change", "blur"}, kinds(f.act.Events()[:4]))
}

func TestFillFileRefused(t *testing.T) {
	f := setup(t, `<input type="file" id="cv">`)
	assert.False(t, f.x.Fill(context.Background(), f.el(t, "cv"), "resume.pdf", schemas.FieldResumeUpload))
	assert.Empty(t, f.act.Events())
}

func TestFillEmptyInputs(t *testing.T) {
	f := setup(t, `<input id="fn">`)
	assert.False(t, f.x.Fill(context.Background(), f.el(t, "fn"), "", schemas.FieldFirstName))
	assert.False(t, f.x.Fill(context.Background(), nil, "Ana", schemas.FieldFirstName))
	assert.False(t, New(nil, nil).Fill(context.Background(), f.el(t, "fn"), "Ana", schemas.FieldFirstName))
	assert.Empty(t, f.act.Events())
}

type brokenActuator struct {
	dom.Actuator
	panicOn string
	err     error
}

func (b brokenActuator) SetValue(context.Context, *dom.Element, string) error {
	if b.panicOn == "SetValue" {
		panic("boom")
	}
	return b.err
}

func (b brokenActuator) DispatchEvent(context.Context, *dom.Element, string) error { return nil }

func (b brokenActuator) SelectOption(context.Context, *dom.Element, int) error { return b.err }

func TestFillActuatorFailures(t *testing.T) {
	doc, err := dom.ParseString(`<input id="fn"><select id="s"><option>A</option></select>`)
	require.NoError(t, err)
	ctx := context.Background()

	panicking := New(zaptest.NewLogger(t), brokenActuator{panicOn: "SetValue"})
	assert.NotPanics(t, func() {
		assert.False(t, panicking.Fill(ctx, doc.ByID("fn"), "Ana", schemas.FieldFirstName))
	})

	failing := New(zaptest.NewLogger(t), brokenActuator{err: errors.New("detached")})
	assert.False(t, failing.Fill(ctx, doc.ByID("fn"), "Ana", schemas.FieldFirstName))
	assert.False(t, failing.Fill(ctx, doc.ByID("s"), "A", schemas.FieldDegree))
}

func TestFillCancelledContext(t *testing.T) {
	f := setup(t, `<input id="fn">`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, f.x.Fill(ctx, f.el(t, "fn"), "Ana", schemas.FieldFirstName))
	assert.Empty(t, f.el(t, "fn").Value())
}

func TestOverlaps(t *testing.T) {
	assert.True(t, overlaps("united states", "states"))
	assert.True(t, overlaps("us", "usa"))
	assert.False(t, overlaps("", "x"))
	assert.False(t, overlaps("x", ""))
	assert.False(t, overlaps("canada", "mexico"))
}
