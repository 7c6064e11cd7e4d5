package errors

import (
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{"0", 0, false},
		{"42", 42, false},
		{"", 0, true},
		{"abc", 0, true},
		{"-3", 0, true},
		{"1.5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ValidateID("student", tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateID(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if err != nil {
				if !Is(err, ErrCodeInvalidID) {
					t.Errorf("error code = %v, want %v", GetCode(err), ErrCodeInvalidID)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ValidateID(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}

func TestValidateText(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"plain", "Population change", false},
		{"multiline", "line one\nline two", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"control", "bad\x07bell", true},
		{"too long", strings.Repeat("a", 257), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateText("topic", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateText(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	for _, u := range []string{"http://localhost:8080/api", "https://example.com"} {
		if err := ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want nil", u, err)
		}
	}
	for _, u := range []string{"", "ftp://example.com", "example.com"} {
		if err := ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) = nil, want error", u)
		}
	}
}
