package contact

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrorKind classifies a field failure.
type ErrorKind string

const (
	KindRequired ErrorKind = "required"
	KindFormat   ErrorKind = "format"
	KindType     ErrorKind = "type"
)

// FieldError describes why one field was rejected.
type FieldError struct {
	Kind     ErrorKind `json:"kind"`
	Messages []string  `json:"_errors"`
}

// ValidationErrors collects field failures plus form level failures. It
// marshals to {"_errors": [...], "<field>": {"kind": ..., "_errors": [...]}}.
type ValidationErrors struct {
	Form   []string
	Fields map[string]FieldError
}

func (v *ValidationErrors) add(field string, kind ErrorKind, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string]FieldError)
	}
	fe, ok := v.Fields[field]
	if !ok {
		fe.Kind = kind
	}
	fe.Messages = append(fe.Messages, msg)
	v.Fields[field] = fe
}

func (v *ValidationErrors) addForm(msg string) {
	v.Form = append(v.Form, msg)
}

func (v *ValidationErrors) empty() bool {
	return v == nil || (len(v.Form) == 0 && len(v.Fields) == 0)
}

// Has reports whether field failed validation.
func (v *ValidationErrors) Has(field string) bool {
	if v == nil {
		return false
	}
	_, ok := v.Fields[field]
	return ok
}

// Error implements error.
func (v *ValidationErrors) Error() string {
	if v == nil {
		return "contact: validation failed"
	}
	names := make([]string, 0, len(v.Fields))
	for name := range v.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := append([]string(nil), v.Form...)
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(v.Fields[name].Messages, ", ")))
	}
	return "contact: validation failed: " + strings.Join(parts, "; ")
}

// MarshalJSON flattens field errors next to the form level _errors list.
func (v ValidationErrors) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(v.Fields)+1)
	form := v.Form
	if form == nil {
		form = []string{}
	}
	out["_errors"] = form
	for name, fe := range v.Fields {
		out[name] = fe
	}
	return json.Marshal(out)
}

// emailPattern accepts local@domain.tld with the character classes browsers
// and the form library allow.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9_'+\-.]*[A-Za-z0-9_+\-]@(?:[A-Za-z0-9][A-Za-z0-9\-]*\.)+[A-Za-z]{2,}$`)

// IsEmail reports whether s is a syntactically valid email address.
func IsEmail(s string) bool {
	if strings.Contains(s, "..") || strings.HasPrefix(s, ".") {
		return false
	}
	return emailPattern.MatchString(s)
}

// Validate checks a submission. The same rules run in the form before submit
// and in the endpoint before accept. On success sub is returned unchanged.
func Validate(sub Submission) (Submission, error) {
	errs := &ValidationErrors{}
	validateFields(sub, errs)
	if !errs.empty() {
		return Submission{}, errs
	}
	return sub, nil
}

func validateFields(sub Submission, errs *ValidationErrors) {
	if sub.Name == "" && !errs.Has("name") {
		errs.add("name", KindRequired, "Name is required")
	}
	if !errs.Has("email") && !IsEmail(sub.Email) {
		errs.add("email", KindFormat, "Please enter a valid email address")
	}
	if sub.Message == "" && !errs.Has("message") {
		errs.add("message", KindRequired, "Message is required")
	}
}

// fieldNames lists the keys read from an untyped payload.
var fieldNames = []string{"name", "email", "phone", "service", "subject", "message"}

// DecodeAndValidate validates an untyped payload. Present but non-string
// values fail with KindType; unknown keys are ignored.
func DecodeAndValidate(raw map[string]any) (Submission, error) {
	errs := &ValidationErrors{}
	values := make(map[string]string, len(fieldNames))
	for _, name := range fieldNames {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			errs.add(name, KindType, fmt.Sprintf("Expected string, received %s", jsonType(v)))
			continue
		}
		values[name] = s
	}

	sub := Submission{
		Name:    values["name"],
		Email:   values["email"],
		Phone:   values["phone"],
		Service: values["service"],
		Subject: values["subject"],
		Message: values["message"],
	}
	validateFields(sub, errs)
	if !errs.empty() {
		return Submission{}, errs
	}
	return sub, nil
}

func jsonType(v any) string {
	switch v.(type) {
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
