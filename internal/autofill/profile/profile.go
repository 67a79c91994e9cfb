// internal/autofill/profile/profile.go
package profile

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// ErrInvalidJSON is returned when the payload is not well formed JSON.
var ErrInvalidJSON = errors.New("profile is not valid JSON")

// Profile is the canonical record resolved from an arbitrary user profile payload.
// It holds at most one value per field type and is immutable after Normalize.
type Profile struct {
	values map[schemas.FieldType]string
}

// source produces a candidate value from the raw payload.
type source func(root gjson.Result) (string, bool)

// path reads a scalar at a gjson path.
func path(p string) source {
	return func(root gjson.Result) (string, bool) {
		return scalar(root.Get(p))
	}
}

// stringOnly reads a path but ignores anything that is not a string, so an
// address object never stands in for an address line.
func stringOnly(p string) source {
	return func(root gjson.Result) (string, bool) {
		r := root.Get(p)
		if r.Type != gjson.String || r.Str == "" {
			return "", false
		}
		return r.Str, true
	}
}

func literal(v string) source {
	return func(gjson.Result) (string, bool) { return v, true }
}

func nameHalf(last bool) source {
	return func(root gjson.Result) (string, bool) {
		full, ok := firstOf(root, path("person.fullName"), path("fullName"), path("name"))
		if !ok {
			return "", false
		}
		first, rest := SplitFullName(full)
		if last {
			return rest, rest != ""
		}
		return first, first != ""
	}
}

func firstOf(root gjson.Result, sources ...source) (string, bool) {
	for _, s := range sources {
		if v, ok := s(root); ok {
			return v, true
		}
	}
	return "", false
}

// chains lists, per field type, where a value may come from. The first source
// that yields a value wins. Types without a chain never resolve.
var chains = map[schemas.FieldType][]source{
	schemas.FieldFirstName:  {path("person.firstName"), path("firstName"), nameHalf(false)},
	schemas.FieldMiddleName: {path("person.middleName"), path("middleName")},
	schemas.FieldLastName:   {path("person.lastName"), path("lastName"), nameHalf(true)},
	schemas.FieldFullName:   {path("person.fullName"), path("fullName"), path("name")},
	schemas.FieldEmail:      {path("person.email"), path("email")},
	schemas.FieldPhone:      {path("person.phone"), path("phone")},

	schemas.FieldAddressLine1: {path("address.line1"), path("line1"), stringOnly("address")},
	schemas.FieldAddressLine2: {path("address.line2"), path("line2")},
	schemas.FieldCity:         {path("address.city"), path("city")},
	schemas.FieldState:        {path("address.state"), path("state")},
	schemas.FieldZip:          {path("address.zip"), path("zip"), path("postalCode")},
	schemas.FieldCountry:      {path("address.country"), path("country"), literal("United States")},

	schemas.FieldLinkedIn:  {path("person.linkedinUrl"), path("linkedinUrl"), path("linkedin")},
	schemas.FieldGitHub:    {path("person.githubUrl"), path("githubUrl"), path("github")},
	schemas.FieldPortfolio: {path("person.portfolioUrl"), path("portfolioUrl"), path("portfolio")},

	schemas.FieldWorkAuthorization: {path("work_authorization.authorized_to_work"), literal("Yes")},
	schemas.FieldSponsorship:       {path("work_authorization.requires_sponsorship_now"), literal("No")},
	schemas.FieldSponsorshipFuture: {path("work_authorization.requires_sponsorship_future"), literal("No")},

	schemas.FieldSchool:         {path("education.0.school"), path("school")},
	schemas.FieldDegree:         {path("education.0.degree"), path("degree")},
	schemas.FieldMajor:          {path("education.0.major"), path("major")},
	schemas.FieldGPA:            {path("education.0.gpa"), path("gpa")},
	schemas.FieldGraduationDate: {path("education.0.graduation_date"), path("graduationDate")},

	schemas.FieldCurrentCompany:  {path("employment_history.0.company"), path("currentCompany")},
	schemas.FieldCurrentTitle:    {path("employment_history.0.title"), path("currentTitle")},
	schemas.FieldYearsExperience: {path("years_experience"), path("yearsExperience")},

	schemas.FieldSummary: {path("summary"), path("professional_summary")},

	schemas.FieldGender:     {path("sensitive.gender"), literal("Prefer not to say")},
	schemas.FieldRace:       {path("sensitive.race"), literal("Prefer not to say")},
	schemas.FieldVeteran:    {path("sensitive.veteran"), literal("No")},
	schemas.FieldDisability: {path("sensitive.disability"), literal("No")},
}

// Normalize turns an arbitrary JSON profile into a Profile. A null or empty
// payload means there is no user data at all and produces an empty profile
// without defaults. The input slice is not retained.
func Normalize(raw []byte) (*Profile, error) {
	p := &Profile{values: make(map[schemas.FieldType]string)}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return p, nil
	}
	if !gjson.ValidBytes(trimmed) {
		return nil, ErrInvalidJSON
	}
	root := gjson.ParseBytes(trimmed)
	for ft, chain := range chains {
		if v, ok := firstOf(root, chain...); ok {
			p.values[ft] = v
		}
	}
	return p, nil
}

// New builds a profile from already canonical values. Empty values are dropped.
func New(values map[schemas.FieldType]string) *Profile {
	p := &Profile{values: make(map[schemas.FieldType]string, len(values))}
	for ft, v := range values {
		if v != "" && ft != schemas.FieldUnknown {
			p.values[ft] = v
		}
	}
	return p
}

// Resolve returns the value for a field type. It never panics; a nil profile
// resolves nothing.
func Resolve(ft schemas.FieldType, p *Profile) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[ft]
	return v, ok
}

// Get is Resolve as a method.
func (p *Profile) Get(ft schemas.FieldType) (string, bool) {
	return Resolve(ft, p)
}

// Len reports how many field types resolve.
func (p *Profile) Len() int {
	if p == nil {
		return 0
	}
	return len(p.values)
}

// Values returns a copy of the resolved values keyed by field type name, for display.
func (p *Profile) Values() map[string]string {
	out := make(map[string]string, p.Len())
	if p == nil {
		return out
	}
	for ft, v := range p.values {
		out[ft.String()] = v
	}
	return out
}

// Types lists the resolvable field types in taxonomy order.
func (p *Profile) Types() []schemas.FieldType {
	var out []schemas.FieldType
	for _, ft := range schemas.AllFieldTypes() {
		if _, ok := Resolve(ft, p); ok {
			out = append(out, ft)
		}
	}
	return out
}

// SplitFullName splits on whitespace: the first token and the remainder joined
// by single spaces.
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// scalar accepts non-empty strings, any number and true.
func scalar(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.String:
		return r.Str, r.Str != ""
	case gjson.Number:
		return strconv.FormatFloat(r.Num, 'f', -1, 64), true
	case gjson.True:
		return "true", true
	default:
		return "", false
	}
}
