// Package replshell provides an interactive, liner-backed shell for tracing
// verification one program at a time, grounded on the
// teacher's internal/repl package: a liner.Liner for history and line
// editing, fatih/color for status output, and a ":"-prefixed command
// dispatch loop.
package replshell

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/peterh/liner"

	"github.com/sunholo/savervm/internal/config"
	"github.com/sunholo/savervm/internal/ctypes"
	"github.com/sunholo/savervm/internal/loader"
	"github.com/sunholo/savervm/internal/opcode"
	"github.com/sunholo/savervm/internal/program"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
)

// Shell holds the loaded program and the most recent verification results,
// so :sig and :diff can be run repeatedly against the same load without
// re-parsing.
type Shell struct {
	cfg *config.Config

	pool       *ctypes.Pool
	statements []opcode.Statement
	results    []program.FunctionResult
	lastErr    error

	version string
}

// New creates a Shell using cfg for color and strictness settings.
func New(cfg *config.Config, version string) *Shell {
	if cfg == nil {
		cfg = config.Default()
	}
	if version == "" {
		version = "dev"
	}
	return &Shell{cfg: cfg, version: version}
}

// Start runs the read-eval-print loop, writing to out, until :quit or EOF.
// Input lines come from the controlling terminal through liner; in is not
// read.
func (s *Shell) Start(in io.Reader, out io.Writer) {
	if !s.cfg.ColorOutput {
		color.NoColor = true
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetMultiLineMode(false)

	historyFile := filepath.Join(os.TempDir(), ".savervm_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}

	line.SetCompleter(func(input string) (c []string) {
		if !strings.HasPrefix(input, ":") {
			return nil
		}
		for _, cmd := range []string{":help", ":quit", ":load", ":verify", ":sig", ":diff", ":errors"} {
			if strings.HasPrefix(cmd, input) {
				c = append(c, cmd)
			}
		}
		return c
	})

	fmt.Fprintf(out, "%s %s\n", bold("savervm"), bold(s.version))
	fmt.Fprintln(out, dim("Type :help for commands, :quit to exit"))

	for {
		input, err := line.Prompt(s.prompt())
		if err == io.EOF {
			fmt.Fprintln(out, green("\nGoodbye!"))
			break
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", red("error"), err)
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if input == ":quit" || input == ":q" || input == ":exit" {
			fmt.Fprintln(out, green("Goodbye!"))
			break
		}

		s.dispatch(input, out)
	}

	if f, err := os.Create(historyFile); err == nil {
		_, _ = line.WriteHistory(f)
		f.Close()
	}
}

func (s *Shell) prompt() string {
	if s.lastErr != nil {
		return "verify✗> "
	}
	if s.results != nil {
		return "verify✓> "
	}
	return "verify> "
}

// RunCommand executes a single ":"-command non-interactively, writing its
// output to out. It is the entry point Start's loop uses per line, exposed
// separately so scripting and tests can drive the shell without a real
// terminal (liner.Liner always reads from the controlling tty, not from any
// io.Reader passed in).
func (s *Shell) RunCommand(input string, out io.Writer) {
	s.dispatch(strings.TrimSpace(input), out)
}

func (s *Shell) dispatch(input string, out io.Writer) {
	fields := strings.Fields(input)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case ":help":
		s.printHelp(out)
	case ":load":
		s.cmdLoad(args, out)
	case ":verify":
		s.cmdVerify(out)
	case ":sig":
		s.cmdSig(args, out)
	case ":diff":
		s.cmdDiff(args, out)
	case ":errors":
		s.cmdErrors(out)
	default:
		fmt.Fprintf(out, "%s: unknown command %q (try :help)\n", yellow("warning"), cmd)
	}
}

func (s *Shell) printHelp(out io.Writer) {
	fmt.Fprintln(out, bold("Commands:"))
	fmt.Fprintln(out, "  :load <path>        load a JSON-encoded program")
	fmt.Fprintln(out, "  :verify             run both verification passes over the loaded program")
	fmt.Fprintln(out, "  :sig <label>        print a function's synthesized signature")
	fmt.Fprintln(out, "  :diff <l1> <l2>     structurally diff two functions' elaborated opcodes")
	fmt.Fprintln(out, "  :errors             print the last verification failure, if any")
	fmt.Fprintln(out, "  :quit               exit")
}

func (s *Shell) cmdLoad(args []string, out io.Writer) {
	if len(args) != 1 {
		fmt.Fprintf(out, "%s: usage: :load <path>\n", red("error"))
		return
	}
	pool, statements, err := loader.LoadProgram(args[0])
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", red("error"), err)
		return
	}
	s.pool = pool
	s.statements = statements
	s.results = nil
	s.lastErr = nil
	fmt.Fprintf(out, "%s loaded %d function(s) from %s\n", green("ok"), len(statements), args[0])
}

func (s *Shell) cmdVerify(out io.Writer) {
	if s.statements == nil {
		fmt.Fprintf(out, "%s: no program loaded, run :load first\n", red("error"))
		return
	}
	results, err := program.Verify(s.pool, s.statements, program.Options{
		Strict:     s.cfg.Strict,
		EntryLabel: s.cfg.EntryLabel,
	})
	s.results = results
	s.lastErr = err
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", red("FAIL"), err)
		return
	}
	fmt.Fprintf(out, "%s all %d function(s) verified\n", green("PASS"), len(results))

	printed := results
	if s.cfg.MaxErrors > 0 && len(printed) > s.cfg.MaxErrors {
		omitted := len(printed) - s.cfg.MaxErrors
		printed = printed[:s.cfg.MaxErrors]
		defer fmt.Fprintf(out, "  %s (%d more result(s) omitted, max_errors=%d)\n", cyan("..."), omitted, s.cfg.MaxErrors)
	}
	for _, r := range printed {
		fmt.Fprintf(out, "  %s %d : %s\n", cyan("label"), r.Label, s.pool.String(r.Signature))
	}
}

func (s *Shell) cmdSig(args []string, out io.Writer) {
	if len(args) != 1 {
		fmt.Fprintf(out, "%s: usage: :sig <label>\n", red("error"))
		return
	}
	label, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(out, "%s: %v\n", red("error"), err)
		return
	}
	fr, ok := s.functionResult(int32(label))
	if !ok {
		fmt.Fprintf(out, "%s: no verified function labeled %d (run :verify first)\n", red("error"), label)
		return
	}
	fmt.Fprintf(out, "%s %s\n", cyan(fmt.Sprintf("label %d:", label)), s.pool.String(fr.Signature))
}

func (s *Shell) cmdDiff(args []string, out io.Writer) {
	if len(args) != 2 {
		fmt.Fprintf(out, "%s: usage: :diff <label1> <label2>\n", red("error"))
		return
	}
	l1, err1 := strconv.Atoi(args[0])
	l2, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		fmt.Fprintf(out, "%s: labels must be integers\n", red("error"))
		return
	}
	fr1, ok1 := s.functionResult(int32(l1))
	fr2, ok2 := s.functionResult(int32(l2))
	if !ok1 || !ok2 {
		fmt.Fprintf(out, "%s: both labels must refer to verified functions\n", red("error"))
		return
	}
	diff := cmp.Diff(fr1.Opcodes, fr2.Opcodes)
	if diff == "" {
		fmt.Fprintln(out, green("identical elaborated opcode streams"))
		return
	}
	fmt.Fprintln(out, diff)
}

func (s *Shell) cmdErrors(out io.Writer) {
	if s.lastErr == nil {
		fmt.Fprintln(out, green("no failure recorded"))
		return
	}
	fmt.Fprintf(out, "%s: %v\n", red("last failure"), s.lastErr)
}

func (s *Shell) functionResult(label int32) (program.FunctionResult, bool) {
	for _, r := range s.results {
		if r.Label == label {
			return r, true
		}
	}
	return program.FunctionResult{}, false
}
