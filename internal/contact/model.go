package contact

// Submission is a contact form payload.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Service string `json:"service,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// Topic returns the service or subject the visitor picked, preferring the
// chat's service answer.
func (s Submission) Topic() string {
	if s.Service != "" {
		return s.Service
	}
	return s.Subject
}

// SubjectOptions are the subjects offered by the contact form select.
var SubjectOptions = []Option{
	{Value: "quote", Label: "Request a Quote"},
	{Value: "booking", Label: "Schedule a Cleaning"},
	{Value: "question", Label: "General Question"},
	{Value: "feedback", Label: "Feedback"},
}

// DefaultSubject is preselected on the form.
const DefaultSubject = "quote"

// ServiceOptions mirror the services the chat assistant offers.
var ServiceOptions = []string{
	"Office Cleaning",
	"Residential Cleaning",
	"Carpet Cleaning",
	"Window Cleaning",
	"Deep Cleaning",
	"Other",
}

// Option is a value/label pair for a select input.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Response is the body returned by the submission endpoint.
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  *ValidationErrors `json:"errors,omitempty"`
}

const (
	successMessage    = "Your message has been sent successfully! We'll be in touch soon."
	validationMessage = "Validation error"
	failureMessage    = "There was a problem processing your request. Please try again."
)
