//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binaryName = "sketchpilot"

// Build builds the worker binary
func Build() error {
	mg.Deps(Lint, Test)

	fmt.Printf("Building %s...\n", binaryName)

	return sh.RunV("go", "build",
		"-o", "bin/"+binaryName,
		"-ldflags", "-s -w",
		".")
}

// Test runs Go unit tests
func Test() error {
	fmt.Println("Running Go tests...")
	return sh.RunV("go", "test", "-v", "-race", "-coverprofile=coverage.out", "./...")
}

// Lint runs golangci-lint
func Lint() error {
	fmt.Println("Running linters...")
	return sh.RunV("golangci-lint", "run")
}

// LintFix runs linters with auto-fix
func LintFix() error {
	fmt.Println("Running linters with auto-fix...")
	return sh.RunV("golangci-lint", "run", "--fix")
}

// Check runs lint + test + build
func Check() error {
	mg.Deps(Lint, Test, Build)
	fmt.Println("✅ Full check passed")
	return nil
}

// Clean removes build artifacts
func Clean() error {
	fmt.Println("Cleaning...")
	os.RemoveAll("bin")
	os.RemoveAll("coverage.out")
	return nil
}

// Run builds and runs the worker
func Run() error {
	mg.Deps(Build)
	return sh.RunV("./bin/" + binaryName)
}
