package buildinfo

import (
	"strings"
	"testing"
)

func TestTemplate(t *testing.T) {
	old := Version
	Version = "v1.2.3"
	defer func() { Version = old }()

	tmpl := Template()
	for _, want := range []string{"{{.Name}} version v1.2.3", "commit: " + Commit, "built: " + Date} {
		if !strings.Contains(tmpl, want) {
			t.Errorf("Template() = %q, missing %q", tmpl, want)
		}
	}
	if got := UserAgent(); got != "docsmith/v1.2.3" {
		t.Errorf("UserAgent() = %q", got)
	}
}
