package dom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/internal/browser/dom"
)

func mustParse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(src)
	require.NoError(t, err)
	return doc
}

func byID(t *testing.T, doc *dom.Document, id string) *dom.Element {
	t.Helper()
	el := doc.ByID(id)
	require.NotNil(t, el, "no element with id %q", id)
	return el
}

func TestCandidatesSelection(t *testing.T) {
	doc := mustParse(t, `<form>
		<input id="a">
		<input id="b" type="hidden">
		<input id="c" type="submit">
		<input id="d" type="BUTTON">
		<input id="e" type="checkbox">
		<select id="f"><option>x</option></select>
		<textarea id="g"></textarea>
		<div id="h" role="combobox"></div>
		<div id="i" role="textbox" contenteditable></div>
		<button id="j">Go</button>
		<input id="k" type="email">
	</form>`)

	var ids []string
	for _, el := range dom.Candidates(doc) {
		ids = append(ids, el.ID())
	}
	assert.Equal(t, []string{"a", "e", "f", "g", "h", "i", "k"}, ids, "document order, excluded input types dropped")
}

func TestInputType(t *testing.T) {
	doc := mustParse(t, `
		<input id="none"><input id="weird" type="fancy"><input id="mail" type="EMAIL">
		<select id="one"></select><select id="many" multiple></select>
		<textarea id="ta"></textarea><div id="div" role="textbox"></div>`)

	cases := map[string]string{
		"none": "text", "weird": "text", "mail": "email",
		"one": "select-one", "many": "select-multiple", "ta": "textarea", "div": "",
	}
	for id, want := range cases {
		assert.Equal(t, want, byID(t, doc, id).InputType(), id)
	}
}

func TestIsFillable(t *testing.T) {
	doc := mustParse(t, `<html><head><style>
		.gone { display: none }
		.ghost { visibility: hidden }
		#override { display: none }
		.shown { display: block !important }
		@media print { #printonly { display: none } }
		@media (max-width: 10px) { #narrow { display: none } }
	</style></head><body>
		<input id="plain">
		<input id="disabled" disabled>
		<input id="readonly" readonly>
		<div role="textbox" id="divdisabled" disabled></div>
		<select id="selreadonly" readonly><option>a</option></select>
		<div class="gone"><input id="in-gone"></div>
		<div class="ghost"><input id="in-ghost"></div>
		<div class="ghost"><input id="ghost-revealed" style="visibility: visible"></div>
		<input id="inline-none" style="display:none">
		<input id="hidden-attr" hidden>
		<input id="fixed" style="position: fixed">
		<input id="override" class="shown">
		<input id="author-important-beats-inline" class="shown" style="display: none">
		<input id="printonly">
		<input id="narrow">
		<div style="visibility: collapse"><span><input id="deep-collapse"></span></div>
		<input id="annotated-hidden" data-formpilot-visible="false">
		<input id="annotated-shown" style="display:none" data-formpilot-visible="true">
	</body></html>`)

	cases := map[string]bool{
		"plain":                         true,
		"disabled":                      false,
		"readonly":                      false,
		"divdisabled":                   true,
		"selreadonly":                   true,
		"in-gone":                       false,
		"in-ghost":                      false,
		"ghost-revealed":                true,
		"inline-none":                   false,
		"hidden-attr":                   false,
		"fixed":                         false,
		"override":                      true,
		"author-important-beats-inline": true,
		"printonly":                     true,
		"narrow":                        true,
		"deep-collapse":                 false,
		"annotated-hidden":              false,
		"annotated-shown":               true,
	}
	for id, want := range cases {
		assert.Equal(t, want, dom.IsFillable(byID(t, doc, id)), id)
	}
	assert.False(t, dom.IsFillable(nil))
}

func TestExtractLabel(t *testing.T) {
	doc := mustParse(t, `<body>
		<label for="first">  First
			Name </label>
		<input id="first">

		<label>Email address <input id="wrapped"></label>

		<label for="empty"></label>
		<label>Wrapped but ignored <input id="empty"></label>

		<span id="q1">Are you</span><span id="q2">authorized?</span>
		<input id="labelled" aria-labelledby="q1  missing q2">
		<input id="labelled-missing" aria-labelledby="nope">
		<div>Phone</div><div><input id="labelled-empty" aria-labelledby="blank"></div><span id="blank"></span>

		<div><p>Phone</p><div><input id="sibling"></div></div>
		<div><label>City</label><div><input id="sibling-label"></div></div>
		<div><p>` + longText + `</p><div><input id="sibling-long"></div></div>

		<input id="bare">
	</body>`)

	cases := map[string]string{
		"first":            "First Name",
		"wrapped":          "Email address",
		"empty":            "",
		"labelled":         "Are you authorized?",
		"labelled-missing": "",
		"labelled-empty":   "",
		"sibling":          "Phone",
		"sibling-label":    "City",
		"sibling-long":     "",
		"bare":             "",
	}
	for id, want := range cases {
		assert.Equal(t, want, dom.ExtractLabel(byID(t, doc, id)), id)
	}
	assert.Equal(t, "", dom.ExtractLabel(nil))
}

func TestEmptyAriaLabelledByWinsOverSibling(t *testing.T) {
	doc := mustParse(t, `<body>
		<div>Phone</div><div><input id="a" aria-labelledby="empty"></div>
		<span id="empty">   </span>
	</body>`)

	el := byID(t, doc, "a")
	assert.Equal(t, "", dom.ExtractLabel(el))
	assert.Equal(t, "a", dom.ExtractContext(el), "the sibling caption is never consulted")
}

func TestInlineStyleWithoutTrailingSemicolon(t *testing.T) {
	doc := mustParse(t, `<body>
		<input id="none" style="display:none">
		<input id="fixed" style="color: red; position: fixed">
		<input id="spaced" style="  visibility: collapse  ">
		<input id="empty" style="display:">
	</body>`)

	styles := doc.Styles()
	assert.Equal(t, "none", styles.Compute(byID(t, doc, "none").Node()).Get("display", ""))
	assert.Equal(t, "fixed", styles.Compute(byID(t, doc, "fixed").Node()).Get("position", ""))
	assert.Equal(t, "red", styles.Compute(byID(t, doc, "fixed").Node()).Get("color", ""))
	assert.Equal(t, "collapse", styles.Compute(byID(t, doc, "spaced").Node()).Get("visibility", ""))

	_, ok := styles.Compute(byID(t, doc, "empty").Node())["display"]
	assert.False(t, ok, "declarations without a value are dropped")

	for _, id := range []string{"none", "fixed", "spaced"} {
		assert.False(t, dom.IsFillable(byID(t, doc, id)), id)
	}
	assert.True(t, dom.IsFillable(byID(t, doc, "empty")))
}

const longText = "This paragraph is intentionally long enough to exceed the one hundred character caption limit used by the sibling rule."

func TestExtractContext(t *testing.T) {
	doc := mustParse(t, `<body>
		<label for="fn">First Name</label>
		<input id="fn" name="first_name" placeholder="Jane" aria-label="given" data-automation-id="legalNameSection_firstName" title="tip">
		<input id="x2" name="foobar123">
		<input id="x3" title="tip">
		<div><div><input></div></div>
	</body>`)

	assert.Equal(t, "First Name first_name fn Jane given legalNameSection_firstName tip",
		dom.ExtractContext(byID(t, doc, "fn")))
	assert.Equal(t, "foobar123 x2", dom.ExtractContext(byID(t, doc, "x2")))
	assert.Equal(t, "x3    tip", dom.ExtractContext(byID(t, doc, "x3")),
		"empty sources keep their separators, only the ends are trimmed")

	cands := dom.Candidates(doc)
	require.Len(t, cands, 4)
	assert.Equal(t, "", dom.ExtractContext(cands[3]))
}
