// Package integration runs the built tableside binary end to end.
package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var (
	// tablesideBin is the path to the built tableside binary.
	tablesideBin string
	// buildErr captures any build error.
	buildErr error
)

// BuildError wraps a build error with output.
type BuildError struct {
	Err    error
	Output string
}

func (e *BuildError) Error() string {
	return e.Err.Error() + ": " + e.Output
}

// FindProjectRoot walks up from the working directory to the go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// TestEnv is an isolated config and data directory pair.
type TestEnv struct {
	t       *testing.T
	Root    string
	Config  string
	DataDir string
}

// NewTestEnv creates a test environment whose config.yaml points at its
// own data directory.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if buildErr != nil {
		t.Fatalf("failed to build tableside: %v", buildErr)
	}
	if tablesideBin == "" {
		t.Fatal("tableside binary not built")
	}

	root, err := FindProjectRoot()
	if err != nil {
		t.Fatalf("find project root: %v", err)
	}
	tempDir := t.TempDir()
	env := &TestEnv{
		t:       t,
		Root:    root,
		Config:  filepath.Join(tempDir, "config"),
		DataDir: filepath.Join(tempDir, "data"),
	}
	if err := os.MkdirAll(env.Config, 0o755); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	content := "backend: sqlite\ndata_dir: " + env.DataDir + "\n"
	if err := os.WriteFile(filepath.Join(env.Config, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

// Fixture returns the path of a catalog under internal/catalog/testdata.
func (e *TestEnv) Fixture(name string) string {
	return filepath.Join(e.Root, "internal", "catalog", "testdata", name)
}

// CmdResult holds the result of one tableside invocation.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Run executes tableside with stdin and the given arguments. Only
// --config-dir is passed so data_dir comes from config.yaml.
func (e *TestEnv) Run(stdin string, args ...string) CmdResult {
	e.t.Helper()
	cmd := exec.Command(tablesideBin, append([]string{"--config-dir", e.Config}, args...)...)
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			e.t.Fatalf("run tableside: %v", err)
		}
		exitCode = exitErr.ExitCode()
	}
	return CmdResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode}
}

// MustRun executes tableside and fails the test on a non-zero exit.
func (e *TestEnv) MustRun(stdin string, args ...string) CmdResult {
	e.t.Helper()
	r := e.Run(stdin, args...)
	if r.ExitCode != 0 {
		e.t.Fatalf("tableside %v exited %d:\nstdout: %s\nstderr: %s", args, r.ExitCode, r.Stdout, r.Stderr)
	}
	return r
}

// ParseJSON parses JSON output into the target type.
func ParseJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var out T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		t.Fatalf("parse JSON %q: %v", s, err)
	}
	return out
}

// ReadJSONLFile reads one JSON object per non-empty line.
func ReadJSONLFile[T any](t *testing.T, path string) []T {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var records []T
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("parse JSONL line in %s: %v", path, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return records
}
