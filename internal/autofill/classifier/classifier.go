// internal/autofill/classifier/classifier.go
package classifier

import (
	"strings"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// Element is the metadata the classifier reads besides the context string.
type Element interface {
	Tag() string
	InputType() string
}

// Rule maps a keyword set to a field type. A rule matches when the lower-cased
// context contains any keyword, none of the exclusions, and the guards hold.
type Rule struct {
	Type     schemas.FieldType
	Keywords []string
	// Exclude vetoes the rule when any of these substrings is present.
	Exclude []string
	// InputType, when set, must equal the element's input type.
	InputType string
	// Tag, when set, must equal the element's tag name.
	Tag string
}

var rules = []Rule{
	// Personal information
	{Type: schemas.FieldFirstName, Keywords: []string{"first name", "given name", "firstname", "fname", "legalnamefirstname"}},
	{Type: schemas.FieldMiddleName, Keywords: []string{"middle name", "middlename", "mname"}},
	{Type: schemas.FieldLastName, Keywords: []string{"last name", "surname", "lastname", "lname", "family name", "legalnamelastname"}},
	{Type: schemas.FieldFullName, Keywords: []string{"full name", "your name", "applicant name"}, Exclude: []string{"first", "last"}},

	// Contact
	{Type: schemas.FieldEmail, Keywords: []string{"email", "e-mail", "emailaddress", "email address"}},
	{Type: schemas.FieldPhone, Keywords: []string{"phone", "mobile", "telephone", "cell", "contact number", "phonenumber"}},

	// Address
	{Type: schemas.FieldAddressLine1, Keywords: []string{"address line 1", "street address", "address1", "addressline1", "mailing address"}},
	{Type: schemas.FieldAddressLine2, Keywords: []string{"address line 2", "address2", "addressline2", "apt", "suite", "unit"}},
	{Type: schemas.FieldCity, Keywords: []string{"city", "town", "municipality"}},
	{Type: schemas.FieldState, Keywords: []string{"state", "province", "region"}},
	{Type: schemas.FieldZip, Keywords: []string{"zip", "postal", "zipcode", "postcode", "postal code"}},
	{Type: schemas.FieldCountry, Keywords: []string{"country"}},

	// Professional URLs
	{Type: schemas.FieldLinkedIn, Keywords: []string{"linkedin", "linked-in", "linkedin url", "linkedin profile"}},
	{Type: schemas.FieldGitHub, Keywords: []string{"github", "git hub", "github url", "github profile"}},
	{Type: schemas.FieldPortfolio, Keywords: []string{"portfolio", "website", "personal website", "portfolio url"}},

	// Work authorization. "future" is excluded from the present-tense rule so the
	// future-sponsorship question can be recognized at all.
	{Type: schemas.FieldWorkAuthorization, Keywords: []string{"authorized", "authorization", "legally authorized", "work authorization"}},
	{Type: schemas.FieldSponsorship, Keywords: []string{"sponsorship", "visa sponsorship", "require sponsorship"}, Exclude: []string{"future"}},
	{Type: schemas.FieldSponsorshipFuture, Keywords: []string{"sponsorship future", "future sponsorship", "sponsorship"}},

	// Education
	{Type: schemas.FieldSchool, Keywords: []string{"university", "college", "school name", "institution"}},
	{Type: schemas.FieldDegree, Keywords: []string{"degree", "education level"}},
	{Type: schemas.FieldMajor, Keywords: []string{"major", "field of study", "area of study"}},
	{Type: schemas.FieldGPA, Keywords: []string{"gpa", "grade point"}},
	{Type: schemas.FieldGraduationDate, Keywords: []string{"graduation", "graduation date", "completion date"}},

	// Employment
	{Type: schemas.FieldCurrentCompany, Keywords: []string{"current company", "employer", "current employer"}},
	{Type: schemas.FieldCurrentTitle, Keywords: []string{"job title", "current title", "position"}},
	{Type: schemas.FieldYearsExperience, Keywords: []string{"years of experience", "experience years", "total experience"}},

	// Uploads are only ever recognized on file inputs.
	{Type: schemas.FieldResumeUpload, Keywords: []string{"resume", "cv", "curriculum vitae"}, InputType: "file"},
	{Type: schemas.FieldCoverLetterUpload, Keywords: []string{"cover letter"}, InputType: "file"},

	// Long text
	{Type: schemas.FieldSummary, Keywords: []string{"summary", "about", "bio", "professional summary"}, Tag: "textarea"},
	{Type: schemas.FieldCoverLetter, Keywords: []string{"cover letter", "additional information"}, Tag: "textarea"},

	// EEO
	{Type: schemas.FieldGender, Keywords: []string{"gender", "sex"}},
	{Type: schemas.FieldRace, Keywords: []string{"race", "ethnicity"}},
	{Type: schemas.FieldVeteran, Keywords: []string{"veteran", "military"}},
	{Type: schemas.FieldDisability, Keywords: []string{"disability", "disabled"}},
}

// Rules returns a copy of the ordered rule table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = r
		out[i].Keywords = append([]string(nil), r.Keywords...)
		out[i].Exclude = append([]string(nil), r.Exclude...)
	}
	return out
}

// Classify maps a field context to a field type. The first matching rule wins and
// FieldUnknown is returned when nothing matches. el may be nil, in which case
// guarded rules never match.
func Classify(context string, el Element) schemas.FieldType {
	t, _ := Explain(context, el)
	return t
}

// Explain is Classify plus the keyword that decided the match.
func Explain(context string, el Element) (schemas.FieldType, string) {
	ctx := strings.ToLower(context)
	var tag, inputType string
	if el != nil {
		tag = strings.ToLower(el.Tag())
		inputType = strings.ToLower(el.InputType())
	}
	for _, r := range rules {
		if r.Tag != "" && r.Tag != tag {
			continue
		}
		if r.InputType != "" && r.InputType != inputType {
			continue
		}
		kw, ok := firstKeyword(ctx, r.Keywords)
		if !ok || containsAny(ctx, r.Exclude) {
			continue
		}
		return r.Type, kw
	}
	return schemas.FieldUnknown, ""
}

func firstKeyword(ctx string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(ctx, kw) {
			return kw, true
		}
	}
	return "", false
}

func containsAny(ctx string, subs []string) bool {
	for _, s := range subs {
		if strings.Contains(ctx, s) {
			return true
		}
	}
	return false
}
