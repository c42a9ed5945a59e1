package cli

import (
	"context"
	"testing"

	"github.com/matzehuels/docsmith/pkg/buildinfo"
	"github.com/matzehuels/docsmith/pkg/errors"
)

func TestSetVersion(t *testing.T) {
	oldV, oldC, oldD := buildinfo.Version, buildinfo.Commit, buildinfo.Date
	t.Cleanup(func() {
		buildinfo.Version, buildinfo.Commit, buildinfo.Date = oldV, oldC, oldD
	})

	SetVersion("1.2.3", "abc123", "")

	if buildinfo.Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", buildinfo.Version)
	}
	if buildinfo.Commit != "abc123" {
		t.Errorf("Commit = %q, want abc123", buildinfo.Commit)
	}
	if buildinfo.Date != oldD {
		t.Errorf("empty date should keep %q, got %q", oldD, buildinfo.Date)
	}
}

func TestExecuteReturnsCommandError(t *testing.T) {
	dir := testEnv(t)
	in := writeFile(t, dir, "diagram.mmd", flowchart)

	err := Execute(context.Background(), []string{"render", in, "--format", "gif"})
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Execute error = %v, want %s", err, errors.ErrCodeInvalidFormat)
	}
}
