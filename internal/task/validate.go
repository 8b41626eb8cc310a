package task

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Finding is a single validation problem.
type Finding struct {
	Check   string `json:"check"`
	Message string `json:"message"`
}

// Report is the outcome of running validation. A failed report is a
// normal, expected outcome, not a defect.
type Report struct {
	Passed   bool      `json:"passed"`
	Findings []Finding `json:"findings,omitempty"`
}

// Validator is the injected validation capability consumed by finish.
type Validator interface {
	Validate(ctx context.Context) (*Report, error)
}

type checksConfig struct {
	Checks []checkSpec `yaml:"checks"`
}

type checkSpec struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
}

// CheckRunner validates by running the shell commands listed in a YAML
// checks file. A missing file means there is nothing to validate and the
// report passes.
type CheckRunner struct {
	fs   afero.Fs
	root string
	path string
}

// NewCheckRunner creates a runner for the checks file at path, executing
// commands with root as the working directory.
func NewCheckRunner(appfs afero.Fs, root, path string) *CheckRunner {
	return &CheckRunner{fs: appfs, root: root, path: path}
}

// Validate runs every configured check and collects failures as findings.
func (c *CheckRunner) Validate(ctx context.Context) (*Report, error) {
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Report{Passed: true}, nil
		}
		return nil, fmt.Errorf("failed to read checks file: %w", err)
	}

	var cfg checksConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse checks file %s: %w", c.path, err)
	}

	report := &Report{Passed: true}
	for _, check := range cfg.Checks {
		if check.Command == "" {
			continue
		}
		cmd := exec.CommandContext(ctx, "sh", "-c", check.Command)
		cmd.Dir = c.root
		output, err := cmd.CombinedOutput()
		if err != nil {
			report.Passed = false
			report.Findings = append(report.Findings, Finding{
				Check:   check.Name,
				Message: summarize(string(output), err),
			})
		}
	}
	return report, nil
}

func summarize(output string, err error) string {
	out := truncate(strings.TrimSpace(output), 400)
	if out == "" {
		return err.Error()
	}
	return out
}
