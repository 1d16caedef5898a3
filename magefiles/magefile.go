// Package main provides build targets for the catchlog project using Mage.
//
// Usage:
//
//	mage build          Compile catchlog binary to bin/
//	mage test           Run all tests
//	mage cover          Run all tests with a coverage profile
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install catchlog to GOPATH/bin
//	mage stats          Print Go lines of code
//	mage services:up    Start local Redis and MinIO containers
//	mage services:down  Stop them
package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo        = "go"
	binLint      = "golangci-lint"
	binaryName   = "catchlog"
	binaryDir    = "bin"
	cmdDir       = "./cmd/catchlog"
	coverProfile = "coverage.out"
)

// Build compiles the catchlog binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV(binGo, "test", "./...")
}

// Cover runs all tests and writes coverage.out.
func Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile="+coverProfile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+coverProfile)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	for _, path := range []string{binaryDir, coverProfile} {
		if err := os.RemoveAll(path); err != nil {
			return err
		}
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

// Stats prints Go lines of code, split into production and test.
func Stats() error {
	var prodLines, testLines int

	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			switch path {
			case "vendor", ".git", binaryDir, "magefiles", "_examples":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		count, countErr := countLines(path)
		if countErr != nil {
			return nil
		}
		if strings.HasSuffix(path, "_test.go") {
			testLines += count
		} else {
			prodLines += count
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testLines)
	fmt.Printf("Lines of code (Go, total):      %d\n", prodLines+testLines)
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}

// Services groups targets for the local Redis and MinIO containers used by
// the redis kv driver and the minio share target.
type Services mg.Namespace

// service is one container started by services:up.
type service struct {
	name  string
	image string
	args  []string
}

var services = []service{
	{
		name:  "catchlog-redis",
		image: "docker.io/library/redis:7-alpine",
		args:  []string{"-p", "6379:6379"},
	},
	{
		name:  "catchlog-minio",
		image: "quay.io/minio/minio:latest",
		args: []string{
			"-p", "9000:9000",
			"-e", "MINIO_ROOT_USER=catchlog",
			"-e", "MINIO_ROOT_PASSWORD=catchlog-secret",
		},
	},
}

// containerRuntime returns "podman" or "docker" if a working runtime is
// available, or "" if neither is usable.
func containerRuntime() string {
	for _, name := range []string{"podman", "docker"} {
		if _, err := exec.LookPath(name); err != nil {
			continue
		}
		if exec.Command(name, "info").Run() != nil {
			fmt.Fprintf(os.Stderr, "WARNING: %s found on PATH but not usable (is the daemon/machine running?)\n", name)
			continue
		}
		return name
	}
	return ""
}

// Up starts Redis on :6379 and MinIO on :9000.
func (Services) Up() error {
	rt := containerRuntime()
	if rt == "" {
		return errors.New("no container runtime found (need podman or docker)")
	}
	for _, s := range services {
		args := append([]string{"run", "-d", "--rm", "--name", s.name}, s.args...)
		args = append(args, s.image)
		if s.name == "catchlog-minio" {
			args = append(args, "server", "/data")
		}
		if err := sh.RunV(rt, args...); err != nil {
			return fmt.Errorf("starting %s: %w", s.name, err)
		}
	}
	fmt.Println("Set CATCHLOG_KV_DRIVER=redis CATCHLOG_KV_REDIS_ADDR=localhost:6379 to use Redis.")
	fmt.Println("Set CATCHLOG_SHARE_TARGET=minio CATCHLOG_SHARE_ENDPOINT=localhost:9000 CATCHLOG_SHARE_BUCKET=catches")
	fmt.Println("    CATCHLOG_SHARE_ACCESS_KEY=catchlog CATCHLOG_SHARE_SECRET_KEY=catchlog-secret to share to MinIO.")
	return nil
}

// Down stops the containers started by Up. Containers that are not running
// are skipped.
func (Services) Down() error {
	rt := containerRuntime()
	if rt == "" {
		return errors.New("no container runtime found (need podman or docker)")
	}
	for _, s := range services {
		if err := exec.Command(rt, "stop", s.name).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "%s not running\n", s.name)
		}
	}
	return nil
}
