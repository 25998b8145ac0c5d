package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohankatakam/gitcinema/internal/models"
)

func TestSelectCoreFiles(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		limit int
		want  []string
	}{
		{
			name:  "manifests before entry points",
			paths: []string{"src/index.tsx", "package.json", "docs/guide.md", "README.md"},
			limit: 10,
			want:  []string{"package.json", "README.md", "src/index.tsx"},
		},
		{
			name:  "nested manifests are not core files",
			paths: []string{"examples/package.json", "go.mod", "tools/Dockerfile"},
			limit: 10,
			want:  []string{"go.mod"},
		},
		{
			name:  "entry points under source directories",
			paths: []string{"cmd/api/main.go", "server/app.py", "lib/main.rs", "main.py", "src/deep/nested/index.js", "pkg/main.go"},
			limit: 10,
			want:  []string{"cmd/api/main.go", "server/app.py", "lib/main.rs", "main.py"},
		},
		{
			name:  "vendored entry points skipped",
			paths: []string{"src/node_modules/index.js", "src/index.js"},
			limit: 10,
			want:  []string{"src/index.js"},
		},
		{
			name:  "limit applied",
			paths: []string{"package.json", "Dockerfile", "Makefile", "src/main.ts"},
			limit: 2,
			want:  []string{"package.json", "Dockerfile"},
		},
		{
			name:  "case insensitive names",
			paths: []string{"DOCKERFILE", "Src/Main.TS"},
			limit: 10,
			want:  []string{"DOCKERFILE", "Src/Main.TS"},
		},
		{
			name:  "nothing matches",
			paths: []string{"docs/a.md", "LICENSE"},
			limit: 10,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectCoreFiles(tt.paths, tt.limit)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeMetrics(t *testing.T) {
	m := computeMetrics(nil)
	assert.Zero(t, m)

	m = computeMetrics([]models.Commit{
		{Message: "Fix typo"},
		{Message: "REFACTOR: split"},
		{Message: "prefix handling"},
		{Message: "docs"},
	})
	assert.Equal(t, 2, m.BugFixCount)
	assert.Equal(t, 1, m.RefactorCount)
	assert.Zero(t, m.ChurnRate)
}
