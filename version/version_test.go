package version

import (
	"strings"
	"testing"
)

func TestCheckAppBuild(t *testing.T) {
	tests := []struct {
		build    string
		expected string
	}{
		{"", ""},
		{"a1b2c3-dirty", "a1b2c3-dirty"},
		{"feature/branch", ""},
		{"v1.0", ""},
	}
	for _, test := range tests {
		if got := checkAppBuild(test.build); got != test.expected {
			t.Fatalf("TestCheckAppBuild: checkAppBuild(%q): expected %q, got %q", test.build, test.expected, got)
		}
	}
}

func TestVersionStartsWithRelease(t *testing.T) {
	if !strings.HasPrefix(Version(), "0.1.0") {
		t.Fatalf("TestVersionStartsWithRelease: unexpected version %s", Version())
	}
	if Version() != Version() {
		t.Fatalf("TestVersionStartsWithRelease: version is not stable")
	}
}
