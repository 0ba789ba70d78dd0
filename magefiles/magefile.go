//go:build mage

// Package main provides build targets for tableside using Mage.
//
// Usage:
//
//	mage build             Compile the tableside binary to bin/
//	mage test:all          Run all tests (unit + integration)
//	mage test:unit         Run only unit tests (exclude tests/)
//	mage test:integration  Build, then run the integration tests
//	mage lint              Run golangci-lint
//	mage demo              Import the sample catalog into ./.tableside-db
//	mage clean             Remove build artifacts
//	mage install           Install tableside to GOPATH/bin
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binaryName = "tableside"
	binaryDir  = "bin"
	cmdDir     = "./cmd/tableside"

	versionVar    = "github.com/mesh-intelligence/tableside/internal/cli.Version"
	sampleCatalog = "internal/catalog/testdata/steakhouse.yaml"
)

// ldflags stamps the version from TABLESIDE_VERSION or the latest git tag.
func ldflags() string {
	version := os.Getenv("TABLESIDE_VERSION")
	if version == "" {
		if tag, err := sh.Output("git", "describe", "--tags", "--always", "--dirty"); err == nil {
			version = strings.TrimPrefix(tag, "v")
		}
	}
	if version == "" {
		return ""
	}
	return fmt.Sprintf("-X %s=%s", versionVar, version)
}

// Build compiles the tableside binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	args := []string{"build", "-v"}
	if flags := ldflags(); flags != "" {
		args = append(args, "-ldflags", flags)
	}
	args = append(args, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
	return sh.RunV(binGo, args...)
}

// Test groups test targets (all, unit, integration).
type Test mg.Namespace

// All runs all tests (unit and integration).
func (Test) All() error {
	return sh.RunV(binGo, "test", "./...")
}

// Unit runs only unit tests, excluding the tests/ directory.
func (Test) Unit() error {
	pkgs, err := sh.Output(binGo, "list", "./...")
	if err != nil {
		return err
	}
	var unitPkgs []string
	for _, pkg := range strings.Split(pkgs, "\n") {
		if pkg != "" && !strings.Contains(pkg, "/tests/") && !strings.HasSuffix(pkg, "/tests") {
			unitPkgs = append(unitPkgs, pkg)
		}
	}
	if len(unitPkgs) == 0 {
		fmt.Println("No unit test packages found.")
		return nil
	}
	return sh.RunV(binGo, append([]string{"test"}, unitPkgs...)...)
}

// Integration builds first, then runs only integration tests.
func (Test) Integration() error {
	mg.Deps(Build)
	return sh.RunV(binGo, "test", "./tests/...")
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Demo imports the sample steakhouse catalog into the default data dir.
func Demo() error {
	mg.Deps(Build)
	bin := filepath.Join(binaryDir, binaryName)
	if err := sh.RunV(bin, "catalog", "import", sampleCatalog); err != nil {
		return err
	}
	return sh.RunV(bin, "catalog", "list")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}
