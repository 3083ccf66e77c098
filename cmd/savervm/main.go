// Command savervm drives the two-pass bytecode verifier from the command
// line, grounded on the teacher's cmd/ailang dispatcher: a flag-based
// subcommand switch over "version", "verify", "repl".
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/sunholo/savervm/internal/config"
	"github.com/sunholo/savervm/internal/loader"
	"github.com/sunholo/savervm/internal/program"
	"github.com/sunholo/savervm/internal/replshell"
)

var (
	// Version info, set by ldflags during build.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "print version information")
		helpFlag    = flag.Bool("help", false, "show help")
		configFlag  = flag.String("config", "", "path to a YAML config file")
		noColor     = flag.Bool("no-color", false, "disable colored output")
	)
	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}
	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	cfg := config.Default()
	if *configFlag != "" {
		loaded, err := config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", red("error"), err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *noColor {
		cfg.ColorOutput = false
	}
	if !cfg.ColorOutput {
		color.NoColor = true
	}

	switch flag.Arg(0) {
	case "verify":
		if flag.NArg() < 2 {
			fmt.Fprintf(os.Stderr, "%s: missing file argument\n", red("error"))
			fmt.Println("Usage: savervm verify <program.json>")
			os.Exit(1)
		}
		runVerify(flag.Arg(1), cfg)

	case "repl":
		replshell.New(cfg, Version).Start(os.Stdin, os.Stdout)

	case "version":
		printVersion()

	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("error"), flag.Arg(0))
		printHelp()
		os.Exit(1)
	}
}

func runVerify(path string, cfg *config.Config) {
	pool, statements, err := loader.LoadProgram(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("error"), err)
		os.Exit(1)
	}

	results, err := program.Verify(pool, statements, program.Options{
		Strict:     cfg.Strict,
		EntryLabel: cfg.EntryLabel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("FAIL"), err)
		os.Exit(1)
	}

	fmt.Printf("%s %d function(s) verified\n", green("PASS"), len(results))
	printed := results
	truncated := 0
	if cfg.MaxErrors > 0 && len(printed) > cfg.MaxErrors {
		truncated = len(printed) - cfg.MaxErrors
		printed = printed[:cfg.MaxErrors]
	}
	for _, r := range printed {
		fmt.Printf("  %s %s : %s (%d elaborated opcodes)\n",
			cyan("label"), fmt.Sprint(r.Label), pool.String(r.Signature), len(r.Opcodes))
	}
	if truncated > 0 {
		fmt.Printf("  %s (%d more result(s) omitted, max_errors=%d)\n", cyan("..."), truncated, cfg.MaxErrors)
	}
}

func printVersion() {
	fmt.Printf("savervm %s\n", bold(Version))
	if Commit != "unknown" {
		fmt.Printf("commit: %s\n", Commit)
	}
	if BuildTime != "unknown" {
		fmt.Printf("built:  %s\n", BuildTime)
	}
}

func printHelp() {
	fmt.Println(bold("savervm - bytecode type-and-capability verifier"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  savervm <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Printf("  %s <file>   verify a JSON-encoded program\n", cyan("verify"))
	fmt.Printf("  %s           start the interactive verification shell\n", cyan("repl"))
	fmt.Printf("  %s         print version information\n", cyan("version"))
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config <path>   load a YAML config file")
	fmt.Println("  --no-color        disable colored output")
	fmt.Println("  --version         print version information")
	fmt.Println("  --help            show this help message")
}
