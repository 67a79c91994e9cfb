package schemas

// FieldType is the semantic meaning assigned to a form field by the classifier.
// The declaration order is the classification priority order.
type FieldType string

const (
	FieldFirstName         FieldType = "firstName"
	FieldMiddleName        FieldType = "middleName"
	FieldLastName          FieldType = "lastName"
	FieldFullName          FieldType = "fullName"
	FieldEmail             FieldType = "email"
	FieldPhone             FieldType = "phone"
	FieldAddressLine1      FieldType = "addressLine1"
	FieldAddressLine2      FieldType = "addressLine2"
	FieldCity              FieldType = "city"
	FieldState             FieldType = "state"
	FieldZip               FieldType = "zip"
	FieldCountry           FieldType = "country"
	FieldLinkedIn          FieldType = "linkedin"
	FieldGitHub            FieldType = "github"
	FieldPortfolio         FieldType = "portfolio"
	FieldWorkAuthorization FieldType = "workAuthorization"
	FieldSponsorship       FieldType = "sponsorship"
	FieldSponsorshipFuture FieldType = "sponsorshipFuture"
	FieldSchool            FieldType = "school"
	FieldDegree            FieldType = "degree"
	FieldMajor             FieldType = "major"
	FieldGPA               FieldType = "gpa"
	FieldGraduationDate    FieldType = "graduationDate"
	FieldCurrentCompany    FieldType = "currentCompany"
	FieldCurrentTitle      FieldType = "currentTitle"
	FieldYearsExperience   FieldType = "yearsExperience"
	FieldResumeUpload      FieldType = "resumeUpload"
	FieldCoverLetterUpload FieldType = "coverLetterUpload"
	FieldSummary           FieldType = "summary"
	FieldCoverLetter       FieldType = "coverLetter"
	FieldGender            FieldType = "gender"
	FieldRace              FieldType = "race"
	FieldVeteran           FieldType = "veteran"
	FieldDisability        FieldType = "disability"
	FieldUnknown           FieldType = "unknown"
)

var allFieldTypes = []FieldType{
	FieldFirstName, FieldMiddleName, FieldLastName, FieldFullName,
	FieldEmail, FieldPhone,
	FieldAddressLine1, FieldAddressLine2, FieldCity, FieldState, FieldZip, FieldCountry,
	FieldLinkedIn, FieldGitHub, FieldPortfolio,
	FieldWorkAuthorization, FieldSponsorship, FieldSponsorshipFuture,
	FieldSchool, FieldDegree, FieldMajor, FieldGPA, FieldGraduationDate,
	FieldCurrentCompany, FieldCurrentTitle, FieldYearsExperience,
	FieldResumeUpload, FieldCoverLetterUpload, FieldSummary, FieldCoverLetter,
	FieldGender, FieldRace, FieldVeteran, FieldDisability,
	FieldUnknown,
}

// AllFieldTypes returns the taxonomy in priority order, ending with FieldUnknown.
func AllFieldTypes() []FieldType {
	out := make([]FieldType, len(allFieldTypes))
	copy(out, allFieldTypes)
	return out
}

// String implements fmt.Stringer.
func (t FieldType) String() string { return string(t) }

// Valid reports whether t belongs to the taxonomy.
func (t FieldType) Valid() bool {
	for _, ft := range allFieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// FrameID identifies a browsing context within one page. The top document is always TopFrame.
type FrameID int

// TopFrame is the frame that owns the coordinating UI.
const TopFrame FrameID = 0

// IsTop reports whether the frame is the top document.
func (f FrameID) IsTop() bool { return f == TopFrame }

// FieldBrief is the value-free description of one classified field sent with the scan result.
type FieldBrief struct {
	Label string    `json:"label" yaml:"label"`
	Type  FieldType `json:"type" yaml:"type"`
}

// FieldReport is the detailed scan output used by the CLI.
type FieldReport struct {
	Frame   FrameID   `json:"frame" yaml:"frame"`
	Label   string    `json:"label" yaml:"label"`
	Type    FieldType `json:"type" yaml:"type"`
	Locator string    `json:"locator" yaml:"locator"`
	Context string    `json:"context" yaml:"context"`
	Filled  bool      `json:"filled" yaml:"filled"`
}

// FillSummary is the aggregate result of one autofill run.
type FillSummary struct {
	Total  int      `json:"total" yaml:"total"`
	Filled int      `json:"filled" yaml:"filled"`
	Labels []string `json:"labels" yaml:"labels"`
}
