//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

var (
	buildDir = "bin"
	binName  = "healthd"
	pkgMain  = "./cmd/healthd"
)

type Darwin mg.Namespace

// Builds healthd for the current platform
func Build() error {
	fmt.Println("Building...")
	return sh.RunV("go", "build", "-o", filepath.Join(buildDir, binName), pkgMain)
}

// Runs all package tests
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Runs go vet on all packages
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Runs vet and tests, then builds
func Check() {
	mg.SerialDeps(Lint, Test, Build)
}

// Builds healthd for Apple silicon and Intel Macs
func (Darwin) Build() error {
	for _, arch := range []string{"arm64", "amd64"} {
		fmt.Println("Building darwin/" + arch + "...")
		env := map[string]string{
			"GOOS":   "darwin",
			"GOARCH": arch,
		}
		out := filepath.Join(buildDir, "darwin-"+arch, binName)
		if err := sh.RunWithV(env, "go", "build", "-o", out, pkgMain); err != nil {
			return fmt.Errorf("failed to build darwin/%s: %w", arch, err)
		}
	}
	return nil
}

// Builds and starts the HTTP server with debug logging
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(buildDir, binName), "serve", "--log-level", "debug")
}

// Cleans up the build directory
func Clean() {
	fmt.Println("Cleaning...")
	os.RemoveAll(buildDir)
}
