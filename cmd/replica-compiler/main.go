// Package main provides the entry point for the Replica compiler.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/replica-lang/replica/internal/cli"
	"github.com/replica-lang/replica/internal/codegen"
	"github.com/replica-lang/replica/internal/parser"
	"github.com/replica-lang/replica/internal/project"
	"github.com/replica-lang/replica/internal/sema"
	"github.com/replica-lang/replica/internal/watch"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion  = flag.Bool("version", false, "show version information")
		showHelp     = flag.Bool("help", false, "show help information")
		emitPath     = flag.String("emit", "", "write bytecode module to the given path")
		jsonOut      = flag.Bool("json", false, "emit diagnostics as JSON")
		watchMode    = flag.Bool("watch", false, "re-verify on source change")
		jobs         = flag.Int("jobs", 0, "max concurrent analyses (0 = GOMAXPROCS)")
		manifestPath = flag.String("manifest", "", "project manifest path (default: replica.yaml next to input)")
		noColor      = flag.Bool("no-color", false, "disable colorized diagnostics")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("Replica Compiler v%s (%s)\n", version, commit)
		return
	}

	if *showHelp {
		showUsage()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Println("Error: No input file specified")
		showUsage()
		os.Exit(1)
	}

	inputFile := args[0]
	opts := driverOptions{
		emitPath:     *emitPath,
		jsonOut:      *jsonOut,
		jobs:         *jobs,
		manifestPath: *manifestPath,
		colorize:     !*noColor && cli.IsTerminal(os.Stdout.Fd()),
	}

	if err := checkManifest(inputFile, opts.manifestPath); err != nil {
		log.Fatalf("Manifest check failed: %v", err)
	}

	if *watchMode {
		if err := watchLoop(inputFile, opts); err != nil {
			log.Fatalf("Watch failed: %v", err)
		}
		return
	}

	ok, err := compileFile(inputFile, opts)
	if err != nil {
		log.Fatalf("Compilation failed: %v", err)
	}
	if !ok {
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("Replica Compiler - actors for distributed systems")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("    replica-compiler [OPTIONS] <INPUT_FILE>")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("    --version        Show version information")
	fmt.Println("    --help           Show this help message")
	fmt.Println("    --emit <path>    Write bytecode module to path")
	fmt.Println("    --json           Emit diagnostics as JSON")
	fmt.Println("    --watch          Re-verify on source change")
	fmt.Println("    --jobs <n>       Max concurrent analyses")
	fmt.Println("    --manifest <p>   Project manifest path")
	fmt.Println("    --no-color       Disable colorized diagnostics")
}

type driverOptions struct {
	emitPath     string
	jsonOut      bool
	jobs         int
	manifestPath string
	colorize     bool
}

// checkManifest validates the project manifest when one exists. An
// explicit --manifest path must load; the default replica.yaml next to
// the input is optional.
func checkManifest(inputFile, explicit string) error {
	path := explicit
	if path == "" {
		path = filepath.Join(filepath.Dir(inputFile), project.DefaultManifestName)
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}

	manifest, err := project.Load(path)
	if err != nil {
		return err
	}

	return manifest.CheckCompiler(version)
}

func compileFile(inputFile string, opts driverOptions) (ok bool, err error) {
	source, err := os.ReadFile(inputFile)
	if err != nil {
		return false, fmt.Errorf("cannot read %s: %w", inputFile, err)
	}

	program, parseErrors := parser.ParseSource(string(source), inputFile)
	if len(parseErrors) > 0 {
		for _, perr := range parseErrors {
			fmt.Fprintln(os.Stderr, perr)
		}
		return false, nil
	}

	result, err := sema.Verify(context.Background(), program, sema.Options{Jobs: opts.jobs})
	if err != nil {
		return false, err
	}

	if opts.jsonOut {
		data, err := json.MarshalIndent(result.Report, "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Println(string(data))
	} else if result.Report.HasFindings() {
		fmt.Print(result.Report.Format(opts.colorize))
	}

	if !result.OK() {
		return false, nil
	}

	if opts.emitPath != "" {
		module, err := codegen.Generate(result)
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(opts.emitPath, module, 0o644); err != nil {
			return false, err
		}
		fmt.Printf("Wrote %s (%d bytes)\n", opts.emitPath, len(module))
	}

	return true, nil
}

// watchLoop re-runs verification whenever the input file changes.
func watchLoop(inputFile string, opts driverOptions) error {
	watcher, err := watch.New()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(inputFile)); err != nil {
		return err
	}

	if _, err := compileFile(inputFile, opts); err != nil {
		return err
	}

	target, _ := filepath.Abs(inputFile)

	for {
		select {
		case ev := <-watcher.Events():
			if ev.Op&(watch.OpWrite|watch.OpCreate|watch.OpRename) == 0 {
				continue
			}
			changed, _ := filepath.Abs(ev.Path)
			if changed != target {
				continue
			}
			fmt.Printf("--- %s changed, re-verifying\n", inputFile)
			if _, err := compileFile(inputFile, opts); err != nil {
				return err
			}
		case err := <-watcher.Errors():
			return err
		}
	}
}
