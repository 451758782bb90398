package forms

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var ErrUnknownEndpoint = errors.New("unknown form endpoint")

// Field patterns. Name allows letters, spaces, hyphens, and apostrophes;
// email is RFC-shaped rather than fully RFC-compliant; phone is a loose
// E.164-style match.
var (
	namePattern  = regexp.MustCompile(`^[A-Za-z\s'\-]+$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9\s\-().]{7,20}$`)
)

// FieldRule describes the constraints for one form field.
type FieldRule struct {
	Required   bool
	MinLen     int
	MaxLen     int
	Pattern    *regexp.Regexp
	PatternMsg string
}

// Schema is the set of field rules for one form endpoint.
type Schema struct {
	Name   string
	Fields map[string]FieldRule
}

// ValidationError carries per-field messages for rejected input. It is
// always produced before any network call is made.
type ValidationError map[string]string

func (e ValidationError) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	nameRule = FieldRule{
		Required:   true,
		MinLen:     2,
		MaxLen:     100,
		Pattern:    namePattern,
		PatternMsg: "may only contain letters, spaces, hyphens, and apostrophes",
	}
	emailRule = FieldRule{
		Required:   true,
		MaxLen:     255,
		Pattern:    emailPattern,
		PatternMsg: "must be a valid email address",
	}
	phoneRule = FieldRule{
		Pattern:    phonePattern,
		PatternMsg: "must be a valid phone number",
	}
	messageRule = FieldRule{
		Required: true,
		MinLen:   10,
		MaxLen:   1000,
	}
)

// schemas maps endpoint IDs to their validation schemas.
var schemas = map[string]Schema{
	"contact": {
		Name: "contact",
		Fields: map[string]FieldRule{
			"name":    nameRule,
			"email":   emailRule,
			"phone":   phoneRule,
			"message": messageRule,
		},
	},
	"booking": {
		Name: "booking",
		Fields: map[string]FieldRule{
			"name":    nameRule,
			"email":   emailRule,
			"phone":   {Required: true, Pattern: phonePattern, PatternMsg: "must be a valid phone number"},
			"company": {MinLen: 2, MaxLen: 100},
			"message": {MinLen: 10, MaxLen: 1000},
		},
	},
	"newsletter": {
		Name: "newsletter",
		Fields: map[string]FieldRule{
			"email": emailRule,
		},
	},
}

// SchemaFor returns the schema registered for the endpoint.
func SchemaFor(endpointID string) (Schema, bool) {
	schema, ok := schemas[endpointID]
	return schema, ok
}

// Validate checks fields against the endpoint's schema, returning a
// ValidationError with one message per offending field.
func Validate(endpointID string, fields map[string]string) error {
	schema, ok := schemas[endpointID]
	if !ok {
		return ErrUnknownEndpoint
	}

	errs := make(ValidationError)
	for name, rule := range schema.Fields {
		value := strings.TrimSpace(fields[name])

		if value == "" {
			if rule.Required {
				errs[name] = "is required"
			}
			continue
		}

		if rule.MinLen > 0 && len(value) < rule.MinLen {
			errs[name] = fmt.Sprintf("must be at least %d characters", rule.MinLen)
			continue
		}
		if rule.MaxLen > 0 && len(value) > rule.MaxLen {
			errs[name] = fmt.Sprintf("must be at most %d characters", rule.MaxLen)
			continue
		}
		if rule.Pattern != nil && !rule.Pattern.MatchString(value) {
			errs[name] = rule.PatternMsg
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
