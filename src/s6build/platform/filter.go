package platform

import (
	"path/filepath"
	"strings"
)

// FilterPackagesToTest decides which candidate packages need a rebuild
// for a given set of changed files. Changes under BaseTools or to the
// shared pipeline definition affect every package, so all candidates
// are returned. Documentation-only BaseTools changes (.txt, .md) do
// not force a rebuild. Anything else touches no shared tooling and
// returns an empty selection.
func FilterPackagesToTest(changedFiles, candidatePackages []string) []string {
	for _, changed := range changedFiles {
		if strings.Contains(changed, "BaseTools") {
			ext := strings.ToLower(filepath.Ext(changed))
			if ext != ".txt" && ext != ".md" {
				return copyStrings(candidatePackages)
			}
		}

		if strings.Contains(changed, "platform-build-run-steps.yml") {
			return copyStrings(candidatePackages)
		}
	}
	return []string{}
}
