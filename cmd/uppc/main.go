// cmd/uppc/main.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	"upp/internal/driver"
	"upp/internal/interp"
)

const usage = `uppc - the Upp compiler and interpreter

Usage:
  uppc run <file.upp> [options]     Compile and run a program
  uppc check <file.upp>             Compile without running

Options:
  --entry=<name>       Entry function to run (default: main)
  --bake-cache=<path>  Persist bake-block results to this sqlite file
  --stdin=<path>        Read runtime stdin from a file instead of the terminal
  --project=<name>=<root.upp>[@version]
                       Register a compilation root for 'import project <name>';
                       repeatable
  --verbose            Log phase transitions to stderr

Examples:
  uppc run examples/hello.upp
  uppc run main.upp --entry=start --bake-cache=.uppc-bake.db
  uppc run app.upp --project=util=lib/util.upp@v2
`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Print(usage)
		os.Exit(1)
	}

	switch args[0] {
	case "run":
		os.Exit(runCommand(args[1:], true))
	case "check":
		os.Exit(runCommand(args[1:], false))
	case "--help", "-h", "help":
		fmt.Print(usage)
	case "--version", "version":
		fmt.Println("uppc (Upp compiler) dev build")
	default:
		fmt.Fprintf(os.Stderr, "uppc: unknown command %q\n\n", args[0])
		fmt.Print(usage)
		os.Exit(1)
	}
}

func runCommand(args []string, execute bool) int {
	var sourcePath, entry, bakeCache, stdinPath string
	var verbose bool
	projects := map[string]driver.Project{}
	for _, a := range args {
		switch {
		case strings.HasPrefix(a, "--entry="):
			entry = strings.TrimPrefix(a, "--entry=")
		case strings.HasPrefix(a, "--bake-cache="):
			bakeCache = strings.TrimPrefix(a, "--bake-cache=")
		case strings.HasPrefix(a, "--stdin="):
			stdinPath = strings.TrimPrefix(a, "--stdin=")
		case strings.HasPrefix(a, "--project="):
			name, proj, err := parseProjectFlag(strings.TrimPrefix(a, "--project="))
			if err != nil {
				fmt.Fprintf(os.Stderr, "uppc: %v\n", err)
				return 1
			}
			projects[name] = proj
		case a == "--verbose":
			verbose = true
		case strings.HasPrefix(a, "-"):
			fmt.Fprintf(os.Stderr, "uppc: unknown option %q\n", a)
			return 1
		default:
			sourcePath = a
		}
	}
	if sourcePath == "" {
		fmt.Fprintln(os.Stderr, "uppc: missing source file")
		return 1
	}

	if info, err := os.Stat(sourcePath); err == nil {
		fmt.Fprintf(os.Stderr, "compiling %s (%s)\n", sourcePath, humanize.Bytes(uint64(info.Size())))
	}

	opts := driver.Options{
		SourcePath:    sourcePath,
		EntryFunction: entry,
		BakeCachePath: bakeCache,
		Projects:      projects,
		CheckOnly:     !execute,
		Verbose:       verbose,
	}
	if stdinPath != "" {
		f, err := os.Open(stdinPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "uppc: %v\n", err)
			return 1
		}
		defer f.Close()
		opts.Stdin = f
	} else if execute {
		opts.Stdin = os.Stdin
	}

	result, err := driver.Run(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "uppc: %+v\n", err)
		return 1
	}

	for _, d := range result.Diags.All() {
		fmt.Fprintln(os.Stderr, d)
	}

	if result.Exit.Kind == interp.ExitCompilationFailed {
		return 1
	}
	if !execute {
		fmt.Println("ok")
		return 0
	}

	return exitCodeFor(result.Exit)
}

// exitCodeFor maps the interpreter's own Exit onto a process
// exit code: a value n returned from main (CODE_ERROR) passes n
// straight through, every other non-success kind collapses to 1.
func exitCodeFor(exit interp.Exit) int {
	switch exit.Kind {
	case interp.ExitSuccess:
		return 0
	case interp.ExitCodeError:
		return int(exit.Code)
	default:
		fmt.Fprintln(os.Stderr, exit)
		return 1
	}
}

// parseProjectFlag splits "name=root.upp@version" into its parts; the
// version suffix is optional.
func parseProjectFlag(v string) (string, driver.Project, error) {
	name, rest, ok := strings.Cut(v, "=")
	if !ok || name == "" || rest == "" {
		return "", driver.Project{}, fmt.Errorf("malformed --project value %q (want name=path[@version])", v)
	}
	path, version, _ := strings.Cut(rest, "@")
	return name, driver.Project{Path: path, Version: version}, nil
}
