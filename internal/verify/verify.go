// Package verify is the body verifier and elaborator (spec §4.6): it
// re-interprets a function's body opcodes, interleaving the shared
// compile-time interpreter (internal/ctinterp) with a symbolic run-time
// stack of types, an active capability set, and a region liveness table,
// producing a layout-resolved elaborated opcode stream or the first
// VerifyError encountered.
package verify

import (
	"fmt"

	"github.com/sunholo/savervm/internal/ctinterp"
	"github.com/sunholo/savervm/internal/ctypes"
	"github.com/sunholo/savervm/internal/errors"
	"github.com/sunholo/savervm/internal/ident"
	"github.com/sunholo/savervm/internal/layout"
	"github.com/sunholo/savervm/internal/opcode"
)

// regionState tracks a region minted by new-region: whether it is still
// live, so free-region can detect a double-free or a free of something it
// never minted. Checked eagerly at new-region rather than re-derived from
// the capability set's shape each time (SPEC_FULL.md §4).
type regionState struct {
	unique bool
	freed  bool
}

// Result is one function's fully verified and elaborated body.
type Result struct {
	Label     int32
	Signature ctypes.Ref
	Opcodes   []opcode.Elaborated
}

// Verifier holds one function's body-verification state.
type Verifier struct {
	Pool  *ctypes.Pool
	Fresh *ident.Source
	Sigs  map[int32]ctypes.Ref

	CT *ctinterp.Interp

	label     int32
	isEntry   bool
	strict    bool
	signature ctypes.Ref

	stack []ctypes.Ref // Σ, the symbolic run-time stack
	caps  ctypes.CapSet

	startCaps ctypes.CapSet
	startArgs []ctypes.Ref

	regions  map[ident.ID]*regionState
	captured map[ident.ID]bool // region IDs already bound by this function's own signature

	out []opcode.Elaborated
}

// New constructs a Verifier for the function labeled label, seeding its
// compile-time stack and run-time stack from sigs[label] (spec §4.6,
// "Signature round-trip": body verification starts with Σ equal to the
// argument list in the synthesized Func(C,τ̄)). strict selects which
// reading of the function-end Σ-emptiness check applies to non-entry
// functions: Open Question #7 (SPEC_FULL.md §5) generalizes the original's
// entry-only epilogue to every function when strict is true; with strict
// false, only the distinguished entry function (isEntry) is held to that
// rule, matching original_source/src/verify.rs's narrower epilogue.
func New(pool *ctypes.Pool, fresh *ident.Source, sigs map[int32]ctypes.Ref, label int32, isEntry, strict bool) (*Verifier, error) {
	sig, ok := sigs[label]
	if !ok {
		return nil, errors.New(errors.SYN001, "no signature recorded for function").At(label, 0, "")
	}
	inner, seeds := openSignature(pool, sig)
	fnType := pool.Get(inner)
	if fnType.Tag != ctypes.TFunc {
		return nil, errors.New(errors.SHP002, "signature is not a function type after peeling quantifiers").At(label, 0, "")
	}

	ct := ctinterp.New(pool, fresh)
	captured := make(map[ident.ID]bool)
	for _, s := range seeds {
		ct.Push(s)
		if s.Kind == ctypes.KindRegion {
			captured[s.Region.ID] = true
		}
	}

	return &Verifier{
		Pool:      pool,
		Fresh:     fresh,
		Sigs:      sigs,
		CT:        ct,
		label:     label,
		isEntry:   isEntry,
		strict:    strict,
		signature: sig,
		stack:     append([]ctypes.Ref{}, fnType.Args...),
		caps:      fnType.Caps,
		startCaps: fnType.Caps,
		startArgs: fnType.Args,
		regions:   make(map[ident.ID]*regionState),
		captured:  captured,
	}, nil
}

// VerifyBody drives a fresh Verifier over body, starting byte offsets at
// startOffset (wherever signature synthesis left off), and returns the
// function's elaborated opcodes.
func VerifyBody(pool *ctypes.Pool, fresh *ident.Source, sigs map[int32]ctypes.Ref, label int32, isEntry, strict bool, body []opcode.Source, startOffset int) (Result, error) {
	v, err := New(pool, fresh, sigs, label, isEntry, strict)
	if err != nil {
		return Result{}, err
	}

	offset := startOffset
	for _, src := range body {
		if err := v.Step(offset, src); err != nil {
			return Result{}, err
		}
		offset += 1 + len(src.Operands)
	}

	return v.Finish(offset)
}

func (v *Verifier) popSigma() (ctypes.Ref, bool) {
	if len(v.stack) == 0 {
		return 0, false
	}
	top := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return top, true
}

func (v *Verifier) pushSigma(t ctypes.Ref) {
	v.stack = append(v.stack, t)
}

func emptyRuntimeErr(label int32, offset int, op opcode.Tag) *errors.VerifyError {
	return errors.New(errors.ART002, "run-time stack is empty").At(label, offset, op.String())
}

// capFor returns the capability in force for r, if any. Heap needs no
// explicit capability — it is the ambient, always-live shared region.
func (v *Verifier) capFor(r ctypes.Region) (ctypes.Capability, bool) {
	if r.IsHeap {
		return ctypes.Owned(ctypes.Heap), true
	}
	for _, c := range v.caps.Caps {
		if reg, ok := c.RegionOf(); ok && reg.Equal(r) {
			return c, true
		}
	}
	return ctypes.Capability{}, false
}

func (v *Verifier) requireLive(offset int, op string, r ctypes.Region) error {
	if _, ok := v.capFor(r); !ok {
		return errors.New(errors.RGN001, "access to a region not in the active capability set").
			WithExtra(r.String()).At(v.label, offset, op)
	}
	return nil
}

func (v *Verifier) requireOwned(offset int, op string, r ctypes.Region) error {
	c, ok := v.capFor(r)
	if !ok || !c.Ownable() {
		return errors.New(errors.RGN001, "mutation through a region not owned in the active capability set").
			WithExtra(r.String()).At(v.label, offset, op)
	}
	return nil
}

func fieldTypes(fields []ctypes.Field) []ctypes.Ref {
	out := make([]ctypes.Ref, len(fields))
	for i, f := range fields {
		out[i] = f.Type
	}
	return out
}

// Step interprets one body opcode. Constructor opcodes shared with the
// signature phase are delegated to the embedded compile-time interpreter
// unchanged and never appear in the elaborated output — the execution engine
// has no use for pure type-level bookkeeping (spec §6's ElaboratedOpcode
// vocabulary only names run-time-relevant forms).
func (v *Verifier) Step(offset int, src opcode.Source) error {
	switch src.Tag {
	case opcode.Req, opcode.Region, opcode.Heap, opcode.Cap, opcode.CapLe, opcode.Own, opcode.Read,
		opcode.Both, opcode.Handle, opcode.I32, opcode.Mut, opcode.Tuple, opcode.Arr,
		opcode.All, opcode.Some, opcode.Emos, opcode.End, opcode.Func, opcode.CTGet, opcode.CTPop:
		return v.CT.Step(v.label, offset, src)

	case opcode.Get:
		return v.get(offset, src)
	case opcode.Init:
		return v.init(offset, src)
	case opcode.Malloc:
		return v.malloc(offset, src)
	case opcode.Proj:
		return v.proj(offset, src)
	case opcode.Call:
		return v.call(offset, src)
	case opcode.Unpack:
		return v.unpack(offset, src)
	case opcode.Pack:
		return v.pack(offset, src)
	case opcode.Clean:
		return v.clean(offset, src)
	case opcode.NewRegion:
		return v.newRegion(offset, src)
	case opcode.FreeRegion:
		return v.freeRegion(offset, src)
	case opcode.Lit:
		return v.lit(offset, src)
	case opcode.Print:
		return v.print(offset, src)
	case opcode.Halt:
		return v.halt(offset, src)
	case opcode.GlobalFunc:
		return v.globalFunc(offset, src)
	default:
		return errors.New(errors.SYN001, "not a recognized opcode").At(v.label, offset, src.Tag.String())
	}
}

func (v *Verifier) get(offset int, src opcode.Source) error {
	i := int(src.Operand())
	if i >= len(v.stack) {
		return errors.New(errors.ART003, "get index out of range").WithIndex(i).At(v.label, offset, "get")
	}
	idx := len(v.stack) - 1 - i
	t := v.stack[idx]

	off := 0
	for j := idx + 1; j < len(v.stack); j++ {
		off += layout.Size(v.Pool, v.stack[j])
	}
	sz := layout.Size(v.Pool, t)

	v.pushSigma(t)
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.Get, Offset: off, Size: sz})
	return nil
}

func (v *Verifier) asTuple(ref ctypes.Ref) (tuple ctypes.Type, tupleRef ctypes.Ref, wrapMut bool) {
	t := v.Pool.Get(ref)
	if t.Tag == ctypes.TMutable {
		return v.Pool.Get(t.Elem), t.Elem, true
	}
	return t, ref, false
}

func (v *Verifier) init(offset int, src opcode.Source) error {
	i := int(src.Operand())
	valRef, ok := v.popSigma()
	if !ok {
		return emptyRuntimeErr(v.label, offset, opcode.Init)
	}
	containerRef, ok := v.popSigma()
	if !ok {
		return emptyRuntimeErr(v.label, offset, opcode.Init)
	}

	tuple, _, wrapMut := v.asTuple(containerRef)
	if tuple.Tag != ctypes.TTuple {
		return errors.New(errors.SHP001, "init target is not a tuple").At(v.label, offset, "init")
	}
	if i >= len(tuple.Fields) {
		return errors.New(errors.ART004, "init field index out of range").WithIndex(i).At(v.label, offset, "init")
	}
	if tuple.Fields[i].Init {
		return errors.New(errors.INI002, "field is already initialized").WithIndex(i).At(v.label, offset, "init")
	}
	if err := v.requireOwned(offset, "init", tuple.TupleRegion); err != nil {
		return err
	}
	if !v.Pool.TypeEq(tuple.Fields[i].Type, valRef) {
		return errors.New(errors.EQL001, "initializer does not match the declared field type").
			WithIndex(i).WithTypes(v.Pool.String(tuple.Fields[i].Type), v.Pool.String(valRef)).
			At(v.label, offset, "init")
	}

	updated := v.Pool.WithFieldInit(tuple, i, valRef)
	newRef := v.Pool.Intern(updated)
	if wrapMut {
		newRef = v.CT.Builder.Mutable(newRef)
	}
	v.pushSigma(newRef)

	fields := fieldTypes(tuple.Fields)
	off := layout.OffsetOf(v.Pool, fields, i)
	sz := layout.Size(v.Pool, valRef)
	total := layout.TotalSize(v.Pool, fields)
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.Init, Offset: off, Size: sz, TotalSize: total})
	return nil
}

// topIsHandle reports whether Σ's top is a region handle, without popping.
func (v *Verifier) topIsHandle() (ctypes.Ref, bool) {
	if len(v.stack) == 0 {
		return 0, false
	}
	top := v.stack[len(v.stack)-1]
	if v.Pool.Get(top).Tag == ctypes.THandle {
		return top, true
	}
	return 0, false
}

// malloc pops a Tuple type off the compile-time stack. If a region handle
// sits on top of Σ, the tuple is allocated behind it (Malloc); otherwise it
// is allocated stack-local, homed at Heap (Alloca) — spec §4.6's
// "un-regioned tuple" case.
func (v *Verifier) malloc(offset int, src opcode.Source) error {
	top, ok := v.CT.Pop()
	if !ok {
		return errors.New(errors.ART001, "compile-time stack is empty").At(v.label, offset, "malloc")
	}
	if top.Kind != ctypes.KindType {
		return errors.New(errors.KND002, "malloc expects a Type on the compile-time stack").At(v.label, offset, "malloc")
	}
	tuple := v.Pool.Get(top.Type)
	if tuple.Tag != ctypes.TTuple {
		return errors.New(errors.SHP001, "malloc target is not a tuple").At(v.label, offset, "malloc")
	}
	fields := fieldTypes(tuple.Fields)
	size := layout.TotalSize(v.Pool, fields)

	if handleRef, ok := v.topIsHandle(); ok {
		handle := v.Pool.Get(handleRef)
		if err := v.requireOwned(offset, "malloc", handle.Region); err != nil {
			return err
		}
		v.popSigma()
		v.pushSigma(v.CT.Builder.TupleUninit(fields, handle.Region))
		v.out = append(v.out, opcode.Elaborated{Tag: opcode.Malloc, Size: size})
		return nil
	}

	v.pushSigma(v.CT.Builder.TupleUninit(fields, ctypes.Heap))
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.Alloca, Size: size})
	return nil
}

func (v *Verifier) proj(offset int, src opcode.Source) error {
	i := int(src.Operand())
	containerRef, ok := v.popSigma()
	if !ok {
		return emptyRuntimeErr(v.label, offset, opcode.Proj)
	}
	tuple, _, _ := v.asTuple(containerRef)
	if tuple.Tag != ctypes.TTuple {
		return errors.New(errors.SHP001, "proj target is not a tuple").At(v.label, offset, "proj")
	}
	if err := v.requireLive(offset, "proj", tuple.TupleRegion); err != nil {
		return err
	}
	if i >= len(tuple.Fields) {
		return errors.New(errors.ART004, "proj field index out of range").WithIndex(i).At(v.label, offset, "proj")
	}
	if !tuple.Fields[i].Init {
		return errors.New(errors.INI001, "proj on an uninitialized field").WithIndex(i).At(v.label, offset, "proj")
	}

	fieldRef := tuple.Fields[i].Type
	v.pushSigma(fieldRef)

	fields := fieldTypes(tuple.Fields)
	off := layout.OffsetOf(v.Pool, fields, i)
	sz := layout.Size(v.Pool, fieldRef)
	total := layout.TotalSize(v.Pool, fields)
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.Proj, Offset: off, Size: sz, TotalSize: total})
	return nil
}

func (v *Verifier) call(offset int, src opcode.Source) error {
	top, ok := v.CT.Pop()
	if !ok {
		return errors.New(errors.ART001, "compile-time stack is empty").At(v.label, offset, "call")
	}
	if top.Kind != ctypes.KindType {
		return errors.New(errors.KND002, "call expects a Type on the compile-time stack").At(v.label, offset, "call")
	}
	calleeRef := top.Type

	for {
		t := v.Pool.Get(calleeRef)
		if t.Tag != ctypes.TForall {
			break
		}
		instTop, ok := v.CT.Pop()
		if !ok {
			return errors.New(errors.ART001, "call ran out of compile-time instantiation arguments").At(v.label, offset, "call")
		}
		switch t.BindKind {
		case ctypes.KindType:
			if instTop.Kind != ctypes.KindType {
				return errors.New(errors.KND002, "call instantiation expects a Type").At(v.label, offset, "call")
			}
			calleeRef = v.Pool.Substitute(t.Body, ctypes.TypeSubst{t.BindID: instTop.Type}, nil)
		case ctypes.KindRegion:
			if instTop.Kind != ctypes.KindRegion {
				return errors.New(errors.KND001, "call instantiation expects a Region").At(v.label, offset, "call")
			}
			if instTop.Region.Unique && v.captured[instTop.Region.ID] {
				return errors.New(errors.RGN003, "unique region would be captured by a polymorphic value").
					WithExtra(instTop.Region.String()).At(v.label, offset, "call")
			}
			calleeRef = v.Pool.Substitute(t.Body, nil, ctypes.RegionSubst{t.BindID: instTop.Region})
		case ctypes.KindCapability:
			if instTop.Kind != ctypes.KindCapability {
				return errors.New(errors.KND003, "call instantiation expects a Capability").At(v.label, offset, "call")
			}
			// This constructor set has no capability-variable substitution
			// map (regions and types are the only things a capability set's
			// members mention); a Forall(Capability) body passes through
			// unchanged, since nothing downstream keys off the bound Id.
			calleeRef = t.Body
		}
	}

	callee := v.Pool.Get(calleeRef)
	if callee.Tag != ctypes.TFunc {
		return errors.New(errors.SHP002, "call target is not a function").At(v.label, offset, "call")
	}
	if !v.caps.Subset(callee.Caps) {
		return errors.New(errors.RGN004, "call's required capabilities are not a subset of the active set").
			WithExtra(callee.Caps.String()).At(v.label, offset, "call")
	}

	for i := len(callee.Args) - 1; i >= 0; i-- {
		argRef, ok := v.popSigma()
		if !ok {
			return emptyRuntimeErr(v.label, offset, opcode.Call)
		}
		if !v.Pool.TypeEq(callee.Args[i], argRef) {
			return errors.New(errors.EQL002, "call argument does not match the callee's signature").
				WithIndex(i).WithTypes(v.Pool.String(callee.Args[i]), v.Pool.String(argRef)).
				At(v.label, offset, "call")
		}
	}

	v.out = append(v.out, opcode.Elaborated{Tag: opcode.Call})
	return nil
}

func (v *Verifier) unpack(offset int, src opcode.Source) error {
	top, ok := v.CT.Pop()
	if !ok {
		return errors.New(errors.ART001, "compile-time stack is empty").At(v.label, offset, "unpack")
	}
	if top.Kind != ctypes.KindType {
		return errors.New(errors.KND002, "unpack expects a Type").At(v.label, offset, "unpack")
	}
	ex := v.Pool.Get(top.Type)
	if ex.Tag != ctypes.TExists {
		return errors.New(errors.SHP003, "unpack target is not existential").At(v.label, offset, "unpack")
	}
	// The witness's Id is already unique within this function (minted when
	// the Exists was built); pushing its body as-is makes it the Skolem
	// variable, live until the matching ct_pop (spec §3 Invariants).
	v.CT.Push(ctinterp.TypeValue(ex.Body))
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.Unpack})
	return nil
}

func (v *Verifier) pack(offset int, src opcode.Source) error {
	witTop, ok := v.CT.Pop()
	if !ok {
		return errors.New(errors.ART001, "compile-time stack is empty").At(v.label, offset, "pack")
	}
	if witTop.Kind != ctypes.KindType {
		return errors.New(errors.KND002, "pack expects a witness Type").At(v.label, offset, "pack")
	}
	exTop, ok := v.CT.Pop()
	if !ok {
		return errors.New(errors.ART001, "compile-time stack is empty").At(v.label, offset, "pack")
	}
	if exTop.Kind != ctypes.KindType {
		return errors.New(errors.KND002, "pack expects an existential Type").At(v.label, offset, "pack")
	}
	ex := v.Pool.Get(exTop.Type)
	if ex.Tag != ctypes.TExists {
		return errors.New(errors.SHP003, "pack target is not existential").At(v.label, offset, "pack")
	}
	expected := v.Pool.Substitute(ex.Body, ctypes.TypeSubst{ex.BindID: witTop.Type}, nil)

	valRef, ok := v.popSigma()
	if !ok {
		return emptyRuntimeErr(v.label, offset, opcode.Pack)
	}
	if !v.Pool.TypeEq(valRef, expected) {
		return errors.New(errors.EQL003, "pack witness does not match the existential's instantiated body").
			WithTypes(v.Pool.String(expected), v.Pool.String(valRef)).At(v.label, offset, "pack")
	}
	v.pushSigma(exTop.Type)
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.Pack})
	return nil
}

func (v *Verifier) clean(offset int, src opcode.Source) error {
	if len(src.Operands) < 2 {
		return errors.New(errors.SYN002, "clean requires two operands").At(v.label, offset, "clean")
	}
	count := int(src.Operands[0])
	base := int(src.Operands[1])
	idx := len(v.stack) - base - count
	if count < 0 || base < 0 || idx < 0 || idx+count > len(v.stack) {
		return errors.New(errors.ART002, "clean range exceeds the run-time stack's depth").At(v.label, offset, "clean")
	}
	v.stack = append(v.stack[:idx], v.stack[idx+count:]...)
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.Clean, Offset: base, Size: count})
	return nil
}

func (v *Verifier) newRegion(offset int, src opcode.Source) error {
	id := v.Fresh.Fresh()
	r := ctypes.NewVar(id, true)
	v.CT.Push(ctinterp.RegionValue(r))
	v.regions[id] = &regionState{unique: true}
	v.caps = v.caps.WithCapability(ctypes.Owned(r))
	v.pushSigma(v.CT.Builder.Handle(r))
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.NewRegion})
	return nil
}

func (v *Verifier) freeRegion(offset int, src opcode.Source) error {
	handleRef, ok := v.popSigma()
	if !ok {
		return emptyRuntimeErr(v.label, offset, opcode.FreeRegion)
	}
	handle := v.Pool.Get(handleRef)
	if handle.Tag != ctypes.THandle {
		return errors.New(errors.SHP004, "free-region target is not a region handle").At(v.label, offset, "free-region")
	}
	r := handle.Region
	state, ok := v.regions[r.ID]
	if !ok || !state.unique || state.freed {
		return errors.New(errors.RGN002, "free-region on a non-unique or already-freed region").
			WithExtra(r.String()).At(v.label, offset, "free-region")
	}
	c, ok := v.capFor(r)
	if !ok || !c.Ownable() {
		return errors.New(errors.RGN001, "free-region without an owning capability").
			WithExtra(r.String()).At(v.label, offset, "free-region")
	}
	state.freed = true
	v.caps = v.caps.WithoutRegion(r)
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.FreeRegion})
	return nil
}

func (v *Verifier) lit(offset int, src opcode.Source) error {
	v.pushSigma(v.CT.Builder.I32())
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.Lit, Literal: int32(src.Operand())})
	return nil
}

func (v *Verifier) print(offset int, src opcode.Source) error {
	top, ok := v.popSigma()
	if !ok {
		return emptyRuntimeErr(v.label, offset, opcode.Print)
	}
	if v.Pool.Get(top).Tag != ctypes.TI32 {
		return errors.New(errors.KND002, "print requires an i32 on top of the run-time stack").At(v.label, offset, "print")
	}
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.Print})
	return nil
}

func (v *Verifier) halt(offset int, src opcode.Source) error {
	top, ok := v.popSigma()
	if !ok {
		return emptyRuntimeErr(v.label, offset, opcode.Halt)
	}
	if v.Pool.Get(top).Tag != ctypes.TI32 {
		return errors.New(errors.KND002, "halt requires an i32 on top of the run-time stack").At(v.label, offset, "halt")
	}
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.Halt})
	return nil
}

func (v *Verifier) globalFunc(offset int, src opcode.Source) error {
	label := int32(src.Operand())
	sig, ok := v.Sigs[label]
	if !ok {
		return errors.New(errors.SYN001, "global-func references an unknown label").
			WithExtra(fmt.Sprintf("label %d", label)).At(v.label, offset, "global-func")
	}
	v.CT.Push(ctinterp.TypeValue(sig))
	v.out = append(v.out, opcode.Elaborated{Tag: opcode.GlobalFunc, Label: label})
	return nil
}

// Finish checks the function-end invariants (spec §4.6): the quantification
// stack is empty, Σ is empty (this calculus has no return type — every
// function ends via halt or a terminal call, spec.md §8 scenario 1/2), and
// the active capability set has returned to the one the signature declares.
// The Σ-emptiness check applies unconditionally to the entry function; for
// every other function it applies only when strict is set (Open Question #7,
// SPEC_FULL.md §5).
func (v *Verifier) Finish(offset int) (Result, error) {
	if v.CT.FramesOpen() {
		return Result{}, errors.New(errors.QNT001, "unclosed quantifier frame at function end").At(v.label, offset, "")
	}
	if (v.isEntry || v.strict) && len(v.stack) != 0 {
		return Result{}, errors.New(errors.PRG002, "run-time stack is not empty at function end").At(v.label, offset, "")
	}
	if !ctypes.CapSetEqual(v.caps, v.startCaps) {
		return Result{}, errors.New(errors.PRG003, "active capability set at function end does not match the signature").
			WithExtra(v.caps.String()).At(v.label, offset, "")
	}
	return Result{Label: v.label, Signature: v.signature, Opcodes: v.out}, nil
}
