package task

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/afero"
)

// BriefFileName is the active task brief inside the brief directory.
const BriefFileName = "latest.md"

// ErrBriefExists is returned when a brief is already active and force was
// not requested.
var ErrBriefExists = fmt.Errorf("a task brief already exists")

var briefTemplate = template.Must(template.New("brief").Parse(`# Task Brief (Latest)

## Meta
- UpdatedAt: {{.UpdatedAt}}
- Branch: {{.Record.Branch}}
- Title: {{.Record.Title}}
- Type: {{.Record.Type}}
- Agent: {{if .Record.Agent}}{{.Record.Agent}}{{else}}auto{{end}}
- Snapshot: {{.Record.SnapshotID}}

## Description
{{.Record.Description}}

## Scope
### In-scope
- {{.Record.Title}}

### Out-of-scope
- (Define what's not included)

## Files
{{- if .Record.Files}}
{{- range .Record.Files}}
- {{.}}
{{- end}}
{{- else}}
- (To be determined)
{{- end}}

## Acceptance Criteria
- [ ] Task completed as described
- [ ] Tests pass
- [ ] Documentation updated (if needed)

## Notes
- Created by aictx task start
- Snapshot created for rollback capability
`))

// RenderBrief produces the task brief markdown for a record.
func RenderBrief(rec *Record, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	err := briefTemplate.Execute(&buf, struct {
		UpdatedAt string
		Record    *Record
	}{
		UpdatedAt: now.UTC().Format("2006-01-02T15:04:05Z"),
		Record:    rec,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render task brief: %w", err)
	}
	return buf.Bytes(), nil
}

// writeBrief writes the active brief, refusing to overwrite an existing
// one unless force is set.
func writeBrief(appfs afero.Fs, dir string, content []byte, force bool) (string, error) {
	path := filepath.Join(dir, BriefFileName)
	if exists, _ := afero.Exists(appfs, path); exists && !force {
		return "", fmt.Errorf("%w at %s (use --force to overwrite, or finish the task first)", ErrBriefExists, path)
	}
	if err := appfs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create brief directory: %w", err)
	}
	if err := afero.WriteFile(appfs, path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write task brief: %w", err)
	}
	return path, nil
}

// Slugify lowercases a title and keeps only alphanumerics and hyphens,
// for use in archive file names.
func Slugify(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, " ", "-"))
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
