//go:build ignore

// build.go - tabstat build script
// Usage: go run build.go [-target=TARGET] [-v]
// Targets: all, tabstat, tabstatd, test, bench, clean

package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const versionPkg = "tabstat/pkg/contracts"

var (
	distDir = "dist"

	executables = []string{"tabstat", "tabstatd"}

	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
)

func main() {
	target := flag.String("target", "all", "Build target")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	if runtime.GOOS == "windows" {
		colorReset, colorRed, colorGreen, colorBlue, colorCyan = "", "", "", "", ""
	}

	printHeader()
	startTime := time.Now()

	switch *target {
	case "all":
		for _, name := range executables {
			buildExecutable(name, *verbose)
		}
	case "tabstat", "tabstatd":
		buildExecutable(*target, *verbose)
	case "test":
		runGo(*verbose, "test", "-race", "./...")
	case "bench":
		runGo(*verbose, "test", "-run", "^$", "-bench", ".", "./internal/engine/...")
	case "clean":
		clean()
	default:
		showHelp()
		os.Exit(1)
	}

	printSuccess(fmt.Sprintf("Build completed in %s", time.Since(startTime).Round(time.Millisecond)))
}

func printHeader() {
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println(colorCyan + "          tabstat - Build System           " + colorReset)
	fmt.Println(colorCyan + "===========================================" + colorReset)
	fmt.Println()
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

// ldflags stamps the build time and commit into the contracts package
func ldflags() string {
	commit := "unknown"
	if out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output(); err == nil {
		commit = strings.TrimSpace(string(out))
	}
	return fmt.Sprintf("-s -w -X %s.BuildTime=%s -X %s.GitCommit=%s",
		versionPkg, time.Now().UTC().Format(time.RFC3339), versionPkg, commit)
}

func buildExecutable(name string, verbose bool) {
	printInfo(fmt.Sprintf("Building %s...", name))

	if err := os.MkdirAll(distDir, 0o755); err != nil {
		printError(fmt.Sprintf("Failed to create %s: %v", distDir, err))
		os.Exit(1)
	}

	exeName := name
	if runtime.GOOS == "windows" {
		exeName += ".exe"
	}
	outputPath := filepath.Join(distDir, exeName)

	runGo(verbose, "build", "-ldflags", ldflags(), "-o", outputPath, "./cmd/"+name)

	if info, err := os.Stat(outputPath); err == nil {
		printSuccess(fmt.Sprintf("Built %s (%.1f MB)", outputPath, float64(info.Size())/1024/1024))
	}
}

func runGo(verbose bool, args ...string) {
	if verbose && len(args) > 0 {
		args = append([]string{args[0], "-v"}, args[1:]...)
		fmt.Printf("Running: go %s\n", strings.Join(args, " "))
	}

	cmd := exec.Command("go", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		printError(fmt.Sprintf("go %s failed: %v", args[0], err))
		os.Exit(1)
	}
}

func clean() {
	printInfo("Cleaning build artifacts...")
	if err := os.RemoveAll(distDir); err != nil {
		printError(fmt.Sprintf("Failed to clean %s: %v", distDir, err))
		os.Exit(1)
	}
}

func showHelp() {
	fmt.Println("Usage: go run build.go [-target=TARGET] [-v]")
	fmt.Println()
	fmt.Println("Targets:")
	fmt.Println("  all       Build tabstat and tabstatd into dist/ (default)")
	fmt.Println("  tabstat   Build the command-line tool")
	fmt.Println("  tabstatd  Build the HTTP service")
	fmt.Println("  test      Run all tests with the race detector")
	fmt.Println("  bench     Run the engine benchmarks")
	fmt.Println("  clean     Remove dist/")
}
