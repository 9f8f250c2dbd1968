// This file contains the validation rules for user records.
//
// Rules are an ordered table of (field, rule, message) entries evaluated by a pure function, with
// no persistence involved. Fields are checked in the order name, email, age; within a field the
// order is required, format, range. A field stops at its first failed rule, but every field is
// checked, so the same invalid input always yields the same violations in the same order.

package user

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	FieldName  = "name"
	FieldEmail = "email"
	FieldAge   = "age"
)

const (
	MinAge = 0
	MaxAge = 120
)

// Patterns are shared with the collection's $jsonSchema validator.
const (
	NamePattern  = `^[a-z]+$`
	EmailPattern = `^\w+([\.-]?\w+)*@\w+([\.-]?\w+)*(\.\w{2,3})+$`
)

var (
	namePattern  = regexp.MustCompile(NamePattern)
	emailPattern = regexp.MustCompile(EmailPattern)
)

var validate *validator.Validate

// Initialize the validator with the user-specific format checks
func init() {
	validate = validator.New()
	validate.RegisterValidation("username", matchPattern(namePattern))
	validate.RegisterValidation("useremail", matchPattern(emailPattern))
}

func matchPattern(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// rule is a single validation step. An empty tag only checks presence.
type rule struct {
	field   string
	kind    string
	tag     string
	message string
}

var rules = []rule{
	{FieldName, "required", "required", "Name is required"},
	{FieldName, "match", "username", "Name must be in lowercase letters"},
	{FieldEmail, "required", "required", "Email is required"},
	{FieldEmail, "match", "useremail", "Please enter a valid email"},
	{FieldAge, "required", "", "Age is required"},
	{FieldAge, "min", fmt.Sprintf("min=%d", MinAge), "Age cannot be negative"},
	{FieldAge, "max", fmt.Sprintf("max=%d", MaxAge), "Age seems invalid"},
}

// FieldViolation describes one failed rule.
type FieldViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError is returned when one or more fields violate the schema. Err holds the driver error when the
// database rejected the document.
type ValidationError struct {
	Violations []FieldViolation `json:"violations"`
	Err        error            `json:"-"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "user validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Has reports whether the error contains a violation for field.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// Validate checks a normalized candidate against every rule.
// Returns nil if the candidate is valid, *ValidationError otherwise.
func Validate(c Candidate) error {
	values := map[string]interface{}{
		FieldName:  c.Name,
		FieldEmail: c.Email,
	}
	if c.Age != nil {
		values[FieldAge] = *c.Age
	}
	return check(values, false)
}

// ValidatePatch checks the fields present in a normalized patch with the same rules as Validate.
func ValidatePatch(p Patch) error {
	values := map[string]interface{}{}
	if p.Name != nil {
		values[FieldName] = *p.Name
	}
	if p.Age != nil {
		values[FieldAge] = *p.Age
	}
	return check(values, true)
}

// check runs the rule table over values. With partial set, fields missing from values are skipped
// instead of failing their presence rule.
func check(values map[string]interface{}, partial bool) error {
	var violations []FieldViolation
	failed := map[string]bool{}

	for _, r := range rules {
		if failed[r.field] {
			continue
		}
		value, present := values[r.field]
		if !present && partial {
			continue
		}
		if !present || (r.tag != "" && validate.Var(value, r.tag) != nil) {
			failed[r.field] = true
			violations = append(violations, FieldViolation{Field: r.field, Rule: r.kind, Message: r.message})
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}
