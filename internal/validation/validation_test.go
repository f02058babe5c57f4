package validation_test

import (
	"strings"
	"testing"

	"github.com/arthur-debert/docstore/internal/validation"
)

func TestValidateID(t *testing.T) {
	valid := []string{
		"default",
		"orders",
		"a",
		"with-dash_and.dot",
		"CamelCase123",
		strings.Repeat("x", 255),
	}
	for _, id := range valid {
		t.Run("Valid_"+id[:min(len(id), 16)], func(t *testing.T) {
			if err := validation.ValidateID("collection", id); err != nil {
				t.Errorf("expected %q to validate, got %v", id, err)
			}
		})
	}

	invalid := []struct {
		name string
		id   string
	}{
		{"Empty", ""},
		{"TooLong", strings.Repeat("x", 256)},
		{"Slash", "orders/2024"},
		{"Backslash", `orders\2024`},
		{"Hash", "orders#1"},
		{"QuestionMark", "orders?x=1"},
		{"ControlCharacter", "orders\x00"},
		{"Newline", "orders\n"},
	}
	for _, tt := range invalid {
		t.Run("Invalid_"+tt.name, func(t *testing.T) {
			if err := validation.ValidateID("collection", tt.id); err == nil {
				t.Errorf("expected %q to be rejected", tt.id)
			}
		})
	}

	t.Run("KindNamesTheResource", func(t *testing.T) {
		err := validation.ValidateID("database", "")
		if err == nil || !strings.Contains(err.Error(), "database") {
			t.Errorf("error must name the resource kind, got %v", err)
		}
	})
}
