package render

import (
	"context"
	"testing"

	"github.com/matzehuels/treereplay/pkg/errors"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"svg", FormatSVG, true},
		{" PNG ", FormatPNG, true},
		{"Pdf", FormatPDF, true},
		{"dot", FormatDOT, true},
		{"json", FormatJSON, true},
		{"gif", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.ok != (err == nil) {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
			continue
		}
		if !tt.ok && !errors.Is(err, errors.ErrCodeInvalidFormat) {
			t.Errorf("ParseFormat(%q) code = %s", tt.in, errors.GetCode(err))
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := FormatSVG.ContentType(); got != "image/svg+xml" {
		t.Errorf("svg content type = %q", got)
	}
	if got := FormatJSON.ContentType(); got != "application/json" {
		t.Errorf("json content type = %q", got)
	}
}

func TestToPNG(t *testing.T) {
	if !ConverterAvailable() {
		_, err := ToPNG(context.Background(), []byte("<svg/>"), 1)
		if !errors.Is(err, errors.ErrCodeUnsupported) {
			t.Errorf("expected UNSUPPORTED without rsvg-convert, got %v", err)
		}
		t.Skip("rsvg-convert not installed")
	}
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`)
	png, err := ToPNG(context.Background(), svg, 1)
	if err != nil {
		t.Fatalf("ToPNG: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Error("output is not a PNG")
	}
}
