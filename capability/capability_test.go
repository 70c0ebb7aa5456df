package capability

import (
	"errors"
	"testing"
)

func TestParseVersion(t *testing.T) {
	cases := []struct {
		in   string
		want Version
	}{
		{"18.9.0", Version{18, 9, 0}},
		{"20.1.2", Version{20, 1, 2}},
		{"13", Version{13, 0, 0}},
		{"16.8-cert1", Version{16, 8, 0}},
		{"GIT-18-abc123", Version{18, 0, 0}},
		{" 18.9.0 ", Version{18, 9, 0}},
	}
	for _, tc := range cases {
		got, err := ParseVersion(tc.in)
		if err != nil {
			t.Errorf("ParseVersion(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseVersion(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseVersionRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "GIT-", "..."} {
		if _, err := ParseVersion(in); err == nil {
			t.Errorf("ParseVersion(%q) should fail", in)
		}
	}
}

func TestAtLeast(t *testing.T) {
	v18 := Version{Major: 18, Minor: 9}
	if !v18.AtLeast(Version{Major: 14}) {
		t.Error("18.9 >= 14 expected")
	}
	if !v18.AtLeast(Version{Major: 18, Minor: 9}) {
		t.Error("18.9 >= 18.9 expected")
	}
	if v18.AtLeast(Version{Major: 20}) {
		t.Error("18.9 >= 20 not expected")
	}
	if (Version{Major: 13, Minor: 2}).AtLeast(Version{Major: 13, Minor: 3}) {
		t.Error("13.2 >= 13.3 not expected")
	}
}

func TestSupportsGatedMethods(t *testing.T) {
	old := FromVersion(Version{Major: 13})
	if old.Supports("channels.create") {
		t.Error("channels.create needs Asterisk 14")
	}
	if old.Supports("channels.externalMedia") {
		t.Error("channels.externalMedia needs Asterisk 16")
	}
	if !old.Supports("channels.answer") {
		t.Error("Ungated methods must be available everywhere")
	}

	modern := FromVersion(Version{Major: 18, Minor: 9})
	for _, method := range []string{"channels.create", "channels.externalMedia", "channels.move", "bridges.setVideoSource"} {
		if !modern.Supports(method) {
			t.Errorf("Asterisk 18 must support %s", method)
		}
	}
}

func TestValidateMethod(t *testing.T) {
	s := FromVersion(Version{Major: 13})
	err := s.ValidateMethod("channels.externalMedia")
	if err == nil {
		t.Fatal("Expected UnsupportedError")
	}
	var unsupported *UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Expected *UnsupportedError, got %T", err)
	}
	if unsupported.Method != "channels.externalMedia" {
		t.Errorf("Error must name the method, got %q", unsupported.Method)
	}

	if err := s.ValidateMethod("channels.answer"); err != nil {
		t.Errorf("Ungated methods must validate, got %v", err)
	}

	// A nil set means version detection failed; nothing gets gated.
	var nilSet *Set
	if err := nilSet.ValidateMethod("channels.externalMedia"); err != nil {
		t.Errorf("Nil set must not gate anything, got %v", err)
	}
}
