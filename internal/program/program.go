// Package program orchestrates the two-pass verification structure over a
// whole program (spec §5): signatures of all functions are synthesized
// before any body is verified, and the first function in program order is
// the distinguished entry point.
package program

import (
	"github.com/sunholo/savervm/internal/ctypes"
	"github.com/sunholo/savervm/internal/errors"
	"github.com/sunholo/savervm/internal/ident"
	"github.com/sunholo/savervm/internal/opcode"
	"github.com/sunholo/savervm/internal/sig"
	"github.com/sunholo/savervm/internal/verify"
)

// FunctionResult is one function's fully verified and elaborated output,
// the per-element shape of spec §6's output list.
type FunctionResult struct {
	Label     int32
	Signature ctypes.Ref
	Opcodes   []opcode.Elaborated
}

// Options controls the two config-driven knobs the verifier exposes beyond
// the core spec.md contract, both sourced from internal/config.Config.
type Options struct {
	// Strict, when true, applies the function-end Σ-emptiness check (spec
	// §4.6, Open Question #7 in SPEC_FULL.md §5) to every function, not just
	// the entry point. When false, only the entry function is held to it,
	// matching original_source/src/verify.rs's narrower epilogue rule.
	Strict bool

	// EntryLabel overrides which function is treated as the program's entry
	// point. Nil means "the first statement in program order" (spec §5's
	// default).
	EntryLabel *int32
}

// Verify runs both phases over statements, in source order (spec §5):
// phase one synthesizes every function's signature before phase two
// verifies any body, so a global-func reference to a later-declared
// function resolves without fixpoint iteration (spec §9, "Two-pass
// structure"). The entry point — the first statement in program order,
// or opts.EntryLabel when set — must synthesize to Func(∅, ()) — zero
// arguments, empty required capability set — else verification fails with
// PRG001 before any body is checked. Capabilities on the Heap region are not
// counted as required: Heap is ambient and always live for every function.
func Verify(pool *ctypes.Pool, statements []opcode.Statement, opts Options) ([]FunctionResult, error) {
	if len(statements) == 0 {
		return nil, errors.New(errors.PRG001, "program has no functions").At(0, 0, "")
	}

	synthResults := make(map[int32]sig.Result, len(statements))
	sigs := make(map[int32]ctypes.Ref, len(statements))

	for _, stmt := range statements {
		r, err := sig.Synthesize(pool, stmt)
		if err != nil {
			return nil, err
		}
		synthResults[stmt.Label] = r
		sigs[stmt.Label] = r.Signature
	}

	entryLabel := statements[0].Label
	if opts.EntryLabel != nil {
		entryLabel = *opts.EntryLabel
	}
	entrySig, ok := sigs[entryLabel]
	if !ok {
		return nil, errors.New(errors.PRG001, "entry label does not name a function in this program").At(entryLabel, 0, "")
	}
	entryType := pool.Get(entrySig)
	requiredCaps := 0
	for _, c := range entryType.Caps.Caps {
		if r, ok := c.RegionOf(); !ok || !r.IsHeap {
			requiredCaps++
		}
	}
	if entryType.Tag != ctypes.TFunc || len(entryType.Args) != 0 || requiredCaps != 0 {
		return nil, errors.New(errors.PRG001,
			"entry function must synthesize to func(){} — zero arguments, no required capabilities beyond the heap").
			At(entryLabel, 0, "")
	}

	results := make([]FunctionResult, 0, len(statements))
	for _, stmt := range statements {
		synth := synthResults[stmt.Label]
		fresh := ident.Resume(stmt.Label, synth.FreshAt)
		startOffset := byteOffset(stmt.Opcodes) - byteOffset(synth.Body)

		bodyResult, err := verify.VerifyBody(pool, fresh, sigs, stmt.Label, stmt.Label == entryLabel, opts.Strict, synth.Body, startOffset)
		if err != nil {
			return nil, err
		}
		results = append(results, FunctionResult{
			Label:     bodyResult.Label,
			Signature: bodyResult.Signature,
			Opcodes:   bodyResult.Opcodes,
		})
	}

	return results, nil
}

func byteOffset(opcodes []opcode.Source) int {
	total := 0
	for _, o := range opcodes {
		total += 1 + len(o.Operands)
	}
	return total
}
