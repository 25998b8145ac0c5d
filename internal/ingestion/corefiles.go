package ingestion

import (
	"path"
	"regexp"
	"strings"

	"github.com/src-d/enry/v2"
)

// coreFileNames are fetched wherever they appear at the repository root
var coreFileNames = map[string]bool{
	"package.json":       true,
	"readme.md":          true,
	"readme":             true,
	"readme.rst":         true,
	"dockerfile":         true,
	"docker-compose.yml": true,
	"go.mod":             true,
	"cargo.toml":         true,
	"pyproject.toml":     true,
	"requirements.txt":   true,
	"setup.py":           true,
	"pom.xml":            true,
	"build.gradle":       true,
	"gemfile":            true,
	"composer.json":      true,
	"tsconfig.json":      true,
	"vite.config.ts":     true,
	"makefile":           true,
}

// Conventional entry points: index/main/app/server under a source directory
// (or at the root), e.g. src/index.ts, cmd/api/main.go, app.py.
var entryPointPattern = regexp.MustCompile(
	`(?i)^(?:(?:src|app|cmd|lib|server)/(?:[^/]+/)?)?(?:index|main|app|server)\.(?:[cm]?[jt]sx?|go|py|rs|rb|java|kt|php)$`,
)

// selectCoreFiles picks at most limit allowlisted paths. Root manifests come
// first, then entry points, each group in tree order.
func selectCoreFiles(paths []string, limit int) []string {
	var manifests, entries []string
	for _, p := range paths {
		switch {
		case isRootManifest(p):
			manifests = append(manifests, p)
		case entryPointPattern.MatchString(p) && !enry.IsVendor(p):
			entries = append(entries, p)
		}
	}

	selected := append(manifests, entries...)
	if len(selected) > limit {
		selected = selected[:limit]
	}
	return selected
}

func isRootManifest(p string) bool {
	return !strings.Contains(p, "/") && coreFileNames[strings.ToLower(path.Base(p))]
}
