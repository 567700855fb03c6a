package version

import "testing"

func TestString(t *testing.T) {
	Version, Commit, BuildTime = "1.2.3", "abc123", "2026-01-01T00:00:00Z"
	t.Cleanup(func() { Version, Commit, BuildTime = "dev", "unknown", "unknown" })

	want := "1.2.3 (abc123) built 2026-01-01T00:00:00Z"
	if got := String(); got != want {
		t.Errorf("String(): got %q, want %q", got, want)
	}
}
