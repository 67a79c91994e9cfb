// internal/autofill/classifier/classifier_test.go
package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

type fakeElement struct{ tag, inputType string }

func (f fakeElement) Tag() string       { return f.tag }
func (f fakeElement) InputType() string { return f.inputType }

var (
	textInput = fakeElement{"input", "text"}
	fileInput = fakeElement{"input", "file"}
	textarea  = fakeElement{"textarea", "textarea"}
	selectOne = fakeElement{"select", "select-one"}
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		context string
		el      Element
		want    schemas.FieldType
	}{
		{"first name label", "First Name first_name", textInput, schemas.FieldFirstName},
		{"workday automation id", "legalNameSection_legalNameFirstName", textInput, schemas.FieldFirstName},
		{"first beats full", "Full Name (first name only)", textInput, schemas.FieldFirstName},
		{"full name", "Your Name", textInput, schemas.FieldFullName},
		{"full name vetoed by last", "Full name, last used", textInput, schemas.FieldUnknown},
		{"surname", "Surname", textInput, schemas.FieldLastName},
		{"email", "E-mail", textInput, schemas.FieldEmail},
		{"phone", "Mobile number", textInput, schemas.FieldPhone},
		{"address 1", "Street Address", textInput, schemas.FieldAddressLine1},
		{"address 2", "Apt / Suite", textInput, schemas.FieldAddressLine2},
		{"city", "Town or City", textInput, schemas.FieldCity},
		{"state", "State/Province", selectOne, schemas.FieldState},
		{"zip", "Postal code", textInput, schemas.FieldZip},
		{"country", "Country", selectOne, schemas.FieldCountry},
		{"linkedin", "LinkedIn Profile", textInput, schemas.FieldLinkedIn},
		{"github", "GitHub URL", textInput, schemas.FieldGitHub},
		{"portfolio", "Personal website", textInput, schemas.FieldPortfolio},
		{"work authorization", "Authorized to work?", selectOne, schemas.FieldWorkAuthorization},
		{"sponsorship now", "Do you require visa sponsorship?", selectOne, schemas.FieldSponsorship},
		{"sponsorship future", "Will you require sponsorship in the future?", selectOne, schemas.FieldSponsorshipFuture},
		{"future sponsorship phrase", "future sponsorship", selectOne, schemas.FieldSponsorshipFuture},
		{"school", "College", textInput, schemas.FieldSchool},
		{"degree", "Degree", selectOne, schemas.FieldDegree},
		{"major", "Field of study", textInput, schemas.FieldMajor},
		{"gpa", "GPA", textInput, schemas.FieldGPA},
		{"graduation", "Graduation date", textInput, schemas.FieldGraduationDate},
		{"employer", "Current employer", textInput, schemas.FieldCurrentCompany},
		{"title", "Job title", textInput, schemas.FieldCurrentTitle},
		{"experience", "Years of experience", textInput, schemas.FieldYearsExperience},
		{"resume upload", "Resume/CV", fileInput, schemas.FieldResumeUpload},
		{"resume text is not an upload", "Resume headline", textInput, schemas.FieldUnknown},
		{"cover letter upload", "Cover Letter", fileInput, schemas.FieldCoverLetterUpload},
		{"summary textarea", "Professional summary", textarea, schemas.FieldSummary},
		{"summary needs textarea", "Professional summary", textInput, schemas.FieldUnknown},
		{"cover letter textarea", "Cover letter", textarea, schemas.FieldCoverLetter},
		{"additional info", "Additional information", textarea, schemas.FieldCoverLetter},
		{"gender", "Gender", selectOne, schemas.FieldGender},
		{"race", "Race", selectOne, schemas.FieldRace},
		{"veteran", "Protected veteran status", selectOne, schemas.FieldVeteran},
		{"disability", "Disability status", selectOne, schemas.FieldDisability},
		{"unknown", "foobar123", textInput, schemas.FieldUnknown},
		{"empty context", "", textInput, schemas.FieldUnknown},
		{"nil element skips guarded rules", "Resume", nil, schemas.FieldUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.context, tt.el))
		})
	}
}

// Matching is plain substring search, so earlier rules capture words that merely contain a keyword.
func TestClassifySubstringQuirks(t *testing.T) {
	assert.Equal(t, schemas.FieldPhone, Classify("Excellent", textInput))
	assert.Equal(t, schemas.FieldState, Classify("Personal statement", textInput))
	assert.Equal(t, schemas.FieldAddressLine2, Classify("Community college", textInput), "community contains unit")
	assert.Equal(t, schemas.FieldCity, Classify("Ethnicity", selectOne))
}

func TestClassifyDeterministic(t *testing.T) {
	contexts := []string{"First Name", "Authorized to work?", "Resume", "foobar123", "Gender identity", ""}
	elements := []Element{textInput, fileInput, textarea, selectOne, nil}
	for _, c := range contexts {
		for _, el := range elements {
			first := Classify(c, el)
			for i := 0; i < 50; i++ {
				require.Equal(t, first, Classify(c, el), "context %q", c)
			}
		}
	}
}

func TestClassifyPriorityOrdering(t *testing.T) {
	// Both first name and full name keywords present.
	assert.Equal(t, schemas.FieldFirstName, Classify("full name first name", textInput))
	assert.Equal(t, schemas.FieldFirstName, Classify("first name full name", textInput))
}

func TestExplain(t *testing.T) {
	typ, kw := Explain("Legal Last Name", textInput)
	assert.Equal(t, schemas.FieldLastName, typ)
	assert.Equal(t, "last name", kw)

	typ, kw = Explain("nothing here", textInput)
	assert.Equal(t, schemas.FieldUnknown, typ)
	assert.Empty(t, kw)
}

func TestRulesCoverTaxonomy(t *testing.T) {
	table := Rules()
	seen := map[schemas.FieldType]bool{}
	for _, r := range table {
		assert.False(t, seen[r.Type], "duplicate rule for %s", r.Type)
		seen[r.Type] = true
	}
	for _, ft := range schemas.AllFieldTypes() {
		if ft == schemas.FieldUnknown {
			continue
		}
		assert.True(t, seen[ft], "no rule for %s", ft)
	}

	// Mutating the copy leaves the live table alone.
	table[0].Keywords[0] = "zzz"
	assert.Equal(t, schemas.FieldFirstName, Classify("first name", textInput))
}
