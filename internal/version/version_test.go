package version

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
)

func TestShortCommit(t *testing.T) {
	tests := []struct{ in, want string }{
		{"0123456789abcdef", "0123456"},
		{"abc", "abc"},
	}
	for _, tt := range tests {
		if got := shortCommit(tt.in); got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestGetDetailedVersion(t *testing.T) {
	s := GetDetailedVersion()
	if !strings.HasPrefix(s, "nesprobe ") {
		t.Errorf("Expected nesprobe prefix, got %q", s)
	}
	if !strings.Contains(s, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Expected platform in %q", s)
	}
}

func TestGetVersion_Ldflags(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = "1.2.3"
	if got := GetVersion(); got != "1.2.3" {
		t.Errorf("Expected 1.2.3, got %s", got)
	}
}

func TestFprintBuildInfo(t *testing.T) {
	var buf bytes.Buffer
	FprintBuildInfo(&buf)
	if !strings.Contains(buf.String(), "Go Version: "+runtime.Version()) {
		t.Errorf("Expected Go version line, got %q", buf.String())
	}
}
