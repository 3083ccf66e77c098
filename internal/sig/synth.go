// Package sig synthesizes a function's type signature by running the
// compile-time interpreter alone over its opcode prefix (spec §4.5). It
// never touches a run-time stack; it only decides where the prefix ends and
// hands the remaining opcodes back to the caller as the function body.
package sig

import (
	"github.com/sunholo/savervm/internal/ctinterp"
	"github.com/sunholo/savervm/internal/ctypes"
	"github.com/sunholo/savervm/internal/errors"
	"github.com/sunholo/savervm/internal/ident"
	"github.com/sunholo/savervm/internal/opcode"
)

// Result is a synthesized signature together with the opcodes left over
// after the prefix that built it — the function body, handed to
// internal/verify.
type Result struct {
	Label     int32
	Signature ctypes.Ref
	Body      []opcode.Source
	FreshAt   int32 // the fresh-counter value synthesis left off at
}

// Synthesize drives the compile-time interpreter over stmt's opcodes until
// the compile-time stack holds exactly one Type slot that is a function
// type (optionally wrapped in quantifier frames all closed by emos/END),
// per spec §4.5. Opcodes consumed past that point are returned as Body.
func Synthesize(pool *ctypes.Pool, stmt opcode.Statement) (Result, error) {
	fresh := ident.NewSource(stmt.Label)
	it := ctinterp.New(pool, fresh)

	offset := 0
	i := 0
	for ; i < len(stmt.Opcodes); i++ {
		src := stmt.Opcodes[i]

		if !it.FramesOpen() && it.Depth() == 1 {
			if top, ok := it.Top(); ok && top.Kind == ctypes.KindType {
				if t := pool.Get(top.Type); t.Tag == ctypes.TFunc || t.Tag == ctypes.TForall {
					break
				}
			}
		}

		if err := it.Step(stmt.Label, offset, src); err != nil {
			return Result{}, err
		}
		offset += 1 + len(src.Operands)
	}

	if it.FramesOpen() {
		return Result{}, errors.New(errors.QNT001, "unclosed quantifier frame at end of signature prefix").
			At(stmt.Label, offset, "")
	}

	top, ok := it.Top()
	if !ok || it.Depth() != 1 || top.Kind != ctypes.KindType {
		return Result{}, errors.New(errors.SHP002, "function signature prefix did not produce a single function type").
			At(stmt.Label, offset, "")
	}
	finalType := pool.Get(top.Type)
	if finalType.Tag != ctypes.TFunc && finalType.Tag != ctypes.TForall {
		return Result{}, errors.New(errors.SHP002, "signature prefix's result is not a function type").
			At(stmt.Label, offset, "")
	}

	return Result{
		Label:     stmt.Label,
		Signature: top.Type,
		Body:      stmt.Opcodes[i:],
		FreshAt:   fresh.Counter(),
	}, nil
}
