package version

import (
	"strings"
	"testing"
)

func TestFullPrefersInjectedCommit(t *testing.T) {
	prevVersion, prevCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = prevVersion, prevCommit })

	Version, Commit = "1.2.3", "abc1234"
	if got := Full(); got != "soulconnect 1.2.3 (abc1234)" {
		t.Fatalf("unexpected version string: %q", got)
	}
}

func TestFullFallsBackWithoutInjection(t *testing.T) {
	prevCommit := Commit
	t.Cleanup(func() { Commit = prevCommit })

	Commit = "dev"
	if got := Full(); !strings.HasPrefix(got, "soulconnect "+Version+" (") {
		t.Fatalf("unexpected version string: %q", got)
	}
}
