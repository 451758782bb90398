package forms

import (
	"errors"
	"strings"
	"testing"
)

func validContactFields() map[string]string {
	return map[string]string{
		"name":    "Ada Lovelace",
		"email":   "ada@example.com",
		"phone":   "+1 555 010 2030",
		"message": "I would like to talk about AI consulting.",
	}
}

func TestValidate_ValidContactForm(t *testing.T) {
	if err := Validate("contact", validContactFields()); err != nil {
		t.Fatalf("expected valid fields, got %v", err)
	}
}

func TestValidate_UnknownEndpoint(t *testing.T) {
	if err := Validate("nonsense", validContactFields()); !errors.Is(err, ErrUnknownEndpoint) {
		t.Errorf("expected ErrUnknownEndpoint, got %v", err)
	}
}

func TestValidate_ShortMessage(t *testing.T) {
	fields := validContactFields()
	fields["message"] = "hi"

	err := Validate("contact", fields)
	var validation ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if msg, ok := validation["message"]; !ok || !strings.Contains(msg, "at least 10 characters") {
		t.Errorf("expected message length error, got %q", msg)
	}
}

func TestValidate_NameConstraints(t *testing.T) {
	cases := []struct {
		name  string
		value string
		valid bool
	}{
		{"accepts apostrophe and hyphen", "Mary-Jane O'Neil", true},
		{"rejects single character", "A", false},
		{"rejects digits", "Ada123", false},
		{"rejects symbols", "Ada <script>", false},
		{"rejects over 100 chars", strings.Repeat("a", 101), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := validContactFields()
			fields["name"] = tc.value
			err := Validate("contact", fields)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.valid {
				var validation ValidationError
				if !errors.As(err, &validation) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if _, ok := validation["name"]; !ok {
					t.Errorf("expected error on name field, got %v", validation)
				}
			}
		})
	}
}

func TestValidate_EmailConstraints(t *testing.T) {
	cases := []struct {
		name  string
		value string
		valid bool
	}{
		{"plain address", "ada@example.com", true},
		{"missing at", "ada.example.com", false},
		{"missing domain dot", "ada@example", false},
		{"contains space", "ada lovelace@example.com", false},
		{"over 255 chars", strings.Repeat("a", 250) + "@example.com", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := validContactFields()
			fields["email"] = tc.value
			err := Validate("contact", fields)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_PhoneOptionalOnContact(t *testing.T) {
	fields := validContactFields()
	delete(fields, "phone")
	if err := Validate("contact", fields); err != nil {
		t.Errorf("expected phone to be optional on contact, got %v", err)
	}

	fields["phone"] = "not-a-phone"
	if err := Validate("contact", fields); err == nil {
		t.Error("expected invalid phone to be rejected when present")
	}
}

func TestValidate_BookingRequiresPhone(t *testing.T) {
	fields := map[string]string{
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
	}

	err := Validate("booking", fields)
	var validation ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validation["phone"] != "is required" {
		t.Errorf("expected phone required, got %v", validation)
	}
}

func TestValidate_RequiredFieldsReported(t *testing.T) {
	err := Validate("contact", map[string]string{})
	var validation ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"name", "email", "message"} {
		if validation[field] != "is required" {
			t.Errorf("expected %s required, got %q", field, validation[field])
		}
	}
	if _, ok := validation["phone"]; ok {
		t.Error("phone is optional on contact, should not be reported")
	}
}

func TestValidationError_MessageIsStable(t *testing.T) {
	err := ValidationError{"email": "must be a valid email address", "name": "is required"}
	want := "validation failed: email: must be a valid email address; name: is required"
	if err.Error() != want {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
