//go:build ignore

// build.go - spendtrend build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: build, test, clean, all

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	binary    = "spendtrend"
	sourceDir = "./cmd/spendtrend"
	distDir   = "dist"
)

var (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	version := flag.String("version", "", "Version stamped into the binary")
	flag.Parse()

	start := time.Now()
	var err error
	switch *target {
	case "build":
		err = build(*version, *verbose)
	case "test":
		err = runTests(*verbose)
	case "clean":
		err = clean()
	case "all":
		if err = runTests(*verbose); err == nil {
			err = build(*version, *verbose)
		}
	default:
		showHelp()
		os.Exit(1)
	}
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}
	printSuccess(fmt.Sprintf("Completed %s in %s", *target, time.Since(start).Round(time.Millisecond)))
}

func printInfo(msg string) {
	fmt.Printf("%s[INFO]%s %s\n", colorBlue, colorReset, msg)
}

func printSuccess(msg string) {
	fmt.Printf("%s[SUCCESS]%s %s\n", colorGreen, colorReset, msg)
}

func printError(msg string) {
	fmt.Printf("%s[ERROR]%s %s\n", colorRed, colorReset, msg)
}

func build(version string, verbose bool) error {
	printInfo("Building " + binary + "...")

	ldflags := "-s -w"
	if version != "" {
		ldflags += " -X spendtrend/internal/config.AppVersion=" + version
	}
	out := filepath.Join(distDir, binary)
	args := []string{"build", "-ldflags", ldflags, "-o", out, sourceDir}
	if verbose {
		args = append([]string{"build", "-v"}, args[1:]...)
	}
	if err := run(verbose, "go", args...); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if info, err := os.Stat(out); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", out, float64(info.Size())/1024/1024))
	}
	return nil
}

func runTests(verbose bool) error {
	printInfo("Running Go tests...")
	args := []string{"test", "-race"}
	if verbose {
		args = append(args, "-v")
	}
	args = append(args, "./...")
	if err := run(true, "go", args...); err != nil {
		return fmt.Errorf("tests failed: %w", err)
	}
	return nil
}

func clean() error {
	printInfo("Cleaning build artifacts...")
	for _, dir := range []string{distDir, "output"} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clean %s: %w", dir, err)
		}
	}
	return nil
}

func run(stream bool, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if stream {
		fmt.Printf("Running: %s %s\n", name, strings.Join(args, " "))
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}
	return cmd.Run()
}

func showHelp() {
	fmt.Println("Usage: go run build.go -target=<build|test|clean|all> [-v] [-version=X.Y.Z]")
}
