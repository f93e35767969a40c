package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDiagnosticErrorsCarryTheirPayloads(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantFilename string
		wantPayload  string
	}{
		{
			"malformed page keeps the raw html",
			&MalformedPageError{URL: "https://x", RawBody: []byte("<html>broken</html>")},
			"page.html",
			"<html>broken</html>",
		},
		{
			"empty data keeps the extracted json",
			&EmptyDataError{URL: "https://x", Payload: []byte(`{"props":{}}`)},
			"page_next_data.json",
			`{"props":{}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var diagnostic Diagnostic
			if !errors.As(tt.err, &diagnostic) {
				t.Fatalf("%T must implement Diagnostic", tt.err)
			}
			if diagnostic.DiagnosticFilename() != tt.wantFilename {
				t.Errorf("filename: got %q, want %q", diagnostic.DiagnosticFilename(), tt.wantFilename)
			}
			if string(diagnostic.DiagnosticPayload()) != tt.wantPayload {
				t.Errorf("payload: got %q, want %q", diagnostic.DiagnosticPayload(), tt.wantPayload)
			}
		})
	}
}

func TestFetchErrorUnwrapsTheCause(t *testing.T) {
	cause := fmt.Errorf("connection reset by peer")
	err := fmt.Errorf("page fetch: %w", &FetchError{URL: "https://x", StatusCode: 503, Attempts: 5, Err: cause})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatal("expected a FetchError in the chain")
	}
	if !errors.Is(err, cause) {
		t.Error("the underlying cause must stay reachable through Unwrap")
	}
}

func TestParseLocationPolicy(t *testing.T) {
	tests := []struct {
		raw     string
		want    LocationPolicy
		wantErr bool
	}{
		{"", LocationPolicyFail, false},
		{"fail", LocationPolicyFail, false},
		{"skip", LocationPolicySkip, false},
		{"explode", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLocationPolicy(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLocationPolicy(%q): expected an error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLocationPolicy(%q) failed: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLocationPolicy(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
