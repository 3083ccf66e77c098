// Package ctinterp is the compile-time interpreter (spec §4.4): a
// single-threaded stack machine over region/type/capability values, driven
// by the constructor-producing opcodes. It is shared, unmodified in
// behavior, by the signature synthesizer (internal/sig) and the body
// verifier (internal/verify) — spec §2 describes both as re-interpreting
// the same opcode list, the body pass simply interleaving this machine with
// a run-time stack the interpreter itself never touches.
package ctinterp

import (
	"github.com/sunholo/savervm/internal/ctypes"
	"github.com/sunholo/savervm/internal/errors"
	"github.com/sunholo/savervm/internal/ident"
	"github.com/sunholo/savervm/internal/opcode"
)

// Value is one compile-time stack slot: exactly one of Region, Type, Cap is
// meaningful, selected by Kind (spec §3, "Kinds"). A Kind-Capability value
// produced by `both` carries a whole CapSet (IsCapSet true, CapSetResult
// populated) rather than a single Capability, since `both`'s result is the
// union of two capability sets, not a single capability constructor.
type Value struct {
	Kind   ctypes.Kind
	Region ctypes.Region
	Type   ctypes.Ref
	Cap    ctypes.Capability

	IsCapSet     bool
	CapSetResult ctypes.CapSet
}

func regionValue(r ctypes.Region) Value { return Value{Kind: ctypes.KindRegion, Region: r} }
func typeValue(t ctypes.Ref) Value      { return Value{Kind: ctypes.KindType, Type: t} }
func capValue(c ctypes.Capability) Value { return Value{Kind: ctypes.KindCapability, Cap: c} }

// RegionValue, TypeValue, and CapValue construct compile-time stack values of
// the given kind. They are exported so internal/verify can seed a function's
// interpreter with the binder values already bound by its own signature
// before replaying body opcodes, and push values synthesized mid-body
// (unpack's witness, global-func's callee type).
func RegionValue(r ctypes.Region) Value  { return regionValue(r) }
func TypeValue(t ctypes.Ref) Value       { return typeValue(t) }
func CapValue(c ctypes.Capability) Value { return capValue(c) }

// Push appends v to the compile-time stack directly, bypassing opcode
// dispatch — used by internal/verify for signature seeding and for the
// handful of body opcodes (unpack, global-func) that push a compile-time
// value the constructor table itself does not produce.
func (it *Interp) Push(v Value) {
	it.push(v)
}

// Pop removes and returns the top compile-time value, reported the same way
// as Top — used by internal/verify's body opcodes (malloc, call, unpack,
// pack) that consume a compile-time value without going through Step.
func (it *Interp) Pop() (Value, bool) {
	return it.pop()
}

// frameTag names which binder shape a quantifier frame represents.
type frameTag int

const (
	frameForallType frameTag = iota
	frameForallRegion
	frameForallCapability
	frameExists
)

type frame struct {
	tag frameTag
	id  ident.ID
}

// Interp is one function's compile-time interpreter state: the compile-time
// stack and the open-quantifier-frame stack. It does not know about the
// run-time stack or elaboration output — those belong exclusively to the
// body verifier (spec §4.6).
type Interp struct {
	Pool    *ctypes.Pool
	Builder *ctypes.Builder
	Fresh   *ident.Source

	stack  []Value
	frames []frame

	// Params collects the types declared by `req` during a signature prefix
	// (spec §4.4: "req declares τ as an incoming argument"). It is only
	// meaningful while synthesizing a signature; the body pass ignores it.
	Params []ctypes.Ref
}

// New creates an interpreter over pool that mints fresh identifiers from
// fresh (the per-function source of the function being interpreted).
func New(pool *ctypes.Pool, fresh *ident.Source) *Interp {
	return &Interp{Pool: pool, Builder: ctypes.NewBuilder(pool), Fresh: fresh}
}

// Depth returns the number of live compile-time stack slots.
func (it *Interp) Depth() int {
	return len(it.stack)
}

// Top returns the top-of-stack value without popping, and whether one exists.
func (it *Interp) Top() (Value, bool) {
	if len(it.stack) == 0 {
		return Value{}, false
	}
	return it.stack[len(it.stack)-1], true
}

// FramesOpen reports whether any quantifier frame is still open — used by
// the signature synthesizer's stopping condition (spec §4.5) and the body
// verifier's function-end check (spec §4.6, "quantifier balance").
func (it *Interp) FramesOpen() bool {
	return len(it.frames) > 0
}

func (it *Interp) push(v Value) {
	it.stack = append(it.stack, v)
}

func (it *Interp) pop() (Value, bool) {
	if len(it.stack) == 0 {
		return Value{}, false
	}
	v := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
	return v, true
}

func emptyStackErr(label int32, offset int, op opcode.Tag) *errors.VerifyError {
	return errors.New(errors.ART001, "compile-time stack is empty").At(label, offset, op.String())
}

func kindErr(label int32, offset int, op opcode.Tag, want ctypes.Kind, got ctypes.Kind) *errors.VerifyError {
	code := errors.KND002
	switch want {
	case ctypes.KindRegion:
		code = errors.KND001
	case ctypes.KindCapability:
		code = errors.KND003
	}
	return errors.New(code, "expected "+want.String()+", found "+got.String()).At(label, offset, op.String())
}

// Step interprets one constructor opcode (spec §4.4's table), mutating the
// compile-time stack and quantifier-frame stack in place. It does not
// recognize body-only opcodes (get, init, malloc, proj, call, unpack,
// clean, new-region, free-region, literals, print, halt, pack,
// global-func); the body verifier dispatches those itself and calls Step
// only for the shared constructor subset.
func (it *Interp) Step(label int32, offset int, src opcode.Source) error {
	switch src.Tag {
	case opcode.Req:
		top, ok := it.pop()
		if !ok {
			return emptyStackErr(label, offset, src.Tag)
		}
		if top.Kind != ctypes.KindType {
			return kindErr(label, offset, src.Tag, ctypes.KindType, top.Kind)
		}
		it.Params = append(it.Params, top.Type)
		return nil

	case opcode.Region:
		id := it.Fresh.Fresh()
		r := ctypes.NewVar(id, false)
		it.push(regionValue(r))
		it.frames = append(it.frames, frame{tag: frameForallRegion, id: id})
		return nil

	case opcode.Heap:
		it.push(regionValue(ctypes.Heap))
		return nil

	case opcode.Cap:
		id := it.Fresh.Fresh()
		c := ctypes.Var(id)
		it.push(capValue(c))
		it.frames = append(it.frames, frame{tag: frameForallCapability, id: id})
		return nil

	case opcode.CapLe:
		top, ok := it.pop()
		if !ok {
			return emptyStackErr(label, offset, src.Tag)
		}
		if top.Kind != ctypes.KindCapability {
			return kindErr(label, offset, src.Tag, ctypes.KindCapability, top.Kind)
		}
		id := it.Fresh.Fresh()
		it.push(capValue(ctypes.VarBounded(id, top.Cap)))
		return nil

	case opcode.Own, opcode.Read:
		top, ok := it.pop()
		if !ok {
			return emptyStackErr(label, offset, src.Tag)
		}
		if top.Kind != ctypes.KindRegion {
			return kindErr(label, offset, src.Tag, ctypes.KindRegion, top.Kind)
		}
		if src.Tag == opcode.Own {
			it.push(capValue(ctypes.Owned(top.Region)))
		} else {
			it.push(capValue(ctypes.NotOwned(top.Region)))
		}
		return nil

	case opcode.Both:
		second, ok := it.pop()
		if !ok {
			return emptyStackErr(label, offset, src.Tag)
		}
		if second.Kind != ctypes.KindCapability {
			return kindErr(label, offset, src.Tag, ctypes.KindCapability, second.Kind)
		}
		first, ok := it.pop()
		if !ok {
			return emptyStackErr(label, offset, src.Tag)
		}
		if first.Kind != ctypes.KindCapability {
			return kindErr(label, offset, src.Tag, ctypes.KindCapability, first.Kind)
		}
		// `both`'s result is the concatenation of its two operand sets
		// (SPEC_FULL.md §4); operands may themselves already be the result
		// of a nested `both`, so both sides are normalized to a CapSet
		// before concatenating.
		merged := ctypes.Concat(first.asCapSet(), second.asCapSet())
		it.push(Value{Kind: ctypes.KindCapability, CapSetResult: merged, IsCapSet: true})
		return nil

	case opcode.Handle:
		top, ok := it.pop()
		if !ok {
			return emptyStackErr(label, offset, src.Tag)
		}
		if top.Kind != ctypes.KindRegion {
			return kindErr(label, offset, src.Tag, ctypes.KindRegion, top.Kind)
		}
		it.push(typeValue(it.Builder.Handle(top.Region)))
		return nil

	case opcode.I32:
		it.push(typeValue(it.Builder.I32()))
		return nil

	case opcode.Mut:
		top, ok := it.pop()
		if !ok {
			return emptyStackErr(label, offset, src.Tag)
		}
		if top.Kind != ctypes.KindType {
			return kindErr(label, offset, src.Tag, ctypes.KindType, top.Kind)
		}
		it.push(typeValue(it.Builder.Mutable(top.Type)))
		return nil

	case opcode.Tuple:
		n := int(src.Operand())
		components := make([]ctypes.Ref, n)
		for i := n - 1; i >= 0; i-- {
			top, ok := it.pop()
			if !ok {
				return emptyStackErr(label, offset, src.Tag)
			}
			if top.Kind != ctypes.KindType {
				return kindErr(label, offset, src.Tag, ctypes.KindType, top.Kind)
			}
			components[i] = top.Type
		}
		it.push(typeValue(it.Builder.Tuple(components, ctypes.Heap)))
		return nil

	case opcode.Arr:
		top, ok := it.pop()
		if !ok {
			return emptyStackErr(label, offset, src.Tag)
		}
		if top.Kind != ctypes.KindType {
			return kindErr(label, offset, src.Tag, ctypes.KindType, top.Kind)
		}
		it.push(typeValue(it.Builder.Array(top.Type)))
		return nil

	case opcode.All:
		id := it.Fresh.Fresh()
		it.push(typeValue(it.Builder.Var(id)))
		it.frames = append(it.frames, frame{tag: frameForallType, id: id})
		return nil

	case opcode.Some:
		id := it.Fresh.Fresh()
		it.push(typeValue(it.Builder.Var(id)))
		it.frames = append(it.frames, frame{tag: frameExists, id: id})
		return nil

	case opcode.Emos, opcode.End:
		return it.closeFrame(label, offset, src.Tag)

	case opcode.Func:
		n := int(src.Operand())
		args := make([]ctypes.Ref, n)
		for i := n - 1; i >= 0; i-- {
			top, ok := it.pop()
			if !ok {
				return emptyStackErr(label, offset, src.Tag)
			}
			if top.Kind != ctypes.KindType {
				return kindErr(label, offset, src.Tag, ctypes.KindType, top.Kind)
			}
			args[i] = top.Type
		}
		capTop, ok := it.pop()
		if !ok {
			return emptyStackErr(label, offset, src.Tag)
		}
		if capTop.Kind != ctypes.KindCapability {
			return kindErr(label, offset, src.Tag, ctypes.KindCapability, capTop.Kind)
		}
		it.push(typeValue(it.Builder.Func(capTop.asCapSet(), args)))
		return nil

	case opcode.CTGet:
		i := int(src.Operand())
		if i >= len(it.stack) {
			return errors.New(errors.ART003, "ct_get index out of range").
				WithIndex(i).At(label, offset, src.Tag.String())
		}
		it.push(it.stack[len(it.stack)-1-i])
		return nil

	case opcode.CTPop:
		if _, ok := it.pop(); !ok {
			return emptyStackErr(label, offset, src.Tag)
		}
		return nil

	default:
		return errors.New(errors.SYN001, "not a constructor opcode").At(label, offset, src.Tag.String())
	}
}

// asCapSet normalizes a compile-time Capability value to a CapSet: `both`'s
// result already carries one; any other capability value is a singleton set.
func (v Value) asCapSet() ctypes.CapSet {
	if v.IsCapSet {
		return v.CapSetResult
	}
	return ctypes.CapSet{Caps: []ctypes.Capability{v.Cap}}
}

func (it *Interp) closeFrame(label int32, offset int, op opcode.Tag) error {
	bodyVal, ok := it.pop()
	if !ok {
		return emptyStackErr(label, offset, op)
	}
	if bodyVal.Kind != ctypes.KindType {
		return kindErr(label, offset, op, ctypes.KindType, bodyVal.Kind)
	}
	body := bodyVal.Type

	if len(it.frames) == 0 {
		return errors.New(errors.QNT002, "no open quantifier frame to close").At(label, offset, op.String())
	}
	top := it.frames[len(it.frames)-1]

	marker, ok := it.pop()
	if !ok {
		return emptyStackErr(label, offset, op)
	}

	switch top.tag {
	case frameForallType, frameExists:
		if marker.Kind != ctypes.KindType {
			return kindErr(label, offset, op, ctypes.KindType, marker.Kind)
		}
		markerType := it.Pool.Get(marker.Type)
		if markerType.Tag != ctypes.TVar || !markerType.VarID.Equal(top.id) {
			return errors.New(errors.QNT002, "closing opcode does not match the innermost bound variable").
				At(label, offset, op.String())
		}
	case frameForallRegion:
		if marker.Kind != ctypes.KindRegion || !marker.Region.ID.Equal(top.id) {
			return errors.New(errors.QNT002, "closing opcode does not match the innermost bound region").
				At(label, offset, op.String())
		}
	case frameForallCapability:
		if marker.Kind != ctypes.KindCapability || marker.Cap.Kind != ctypes.CapVar || !marker.Cap.VarID.Equal(top.id) {
			return errors.New(errors.QNT002, "closing opcode does not match the innermost bound capability").
				At(label, offset, op.String())
		}
	}

	it.frames = it.frames[:len(it.frames)-1]

	switch top.tag {
	case frameExists:
		it.push(typeValue(it.Builder.Exists(top.id, body)))
	case frameForallType:
		it.push(typeValue(it.Builder.Forall(top.id, ctypes.KindType, body)))
	case frameForallRegion:
		it.push(typeValue(it.Builder.Forall(top.id, ctypes.KindRegion, body)))
	case frameForallCapability:
		it.push(typeValue(it.Builder.Forall(top.id, ctypes.KindCapability, body)))
	}
	return nil
}
