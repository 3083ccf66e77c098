package ctypes

import (
	"fmt"
	"strings"

	"github.com/sunholo/savervm/internal/ident"
)

// Ref is an opaque handle into a Pool. Types reference their components by
// Ref rather than by value, so recursive structures (a Forall's body, a
// Tuple's fields) are cheap to build and never deep-copied (spec §4.1).
type Ref int

// Type is the sum of the nine type constructors in spec §3. Exactly one of
// the embedded variants (selected by Tag) is meaningful for a given value.
type Type struct {
	Tag TypeTag

	// THandle
	Region Region

	// TMutable, TArray: element
	Elem Ref

	// TTuple
	Fields       []Field
	TupleRegion  Region

	// TVar
	VarID ident.ID

	// TForall, TExists
	BindID   ident.ID
	BindKind Kind // meaningful only for TForall
	Body     Ref

	// TFunc
	Caps CapSet
	Args []Ref
}

// TypeTag names which of Type's constructors is populated.
type TypeTag int

const (
	TI32 TypeTag = iota
	THandle
	TMutable
	TTuple
	TArray
	TVar
	TForall
	TExists
	TFunc
)

func (t TypeTag) String() string {
	switch t {
	case TI32:
		return "i32"
	case THandle:
		return "handle"
	case TMutable:
		return "mut"
	case TTuple:
		return "tuple"
	case TArray:
		return "array"
	case TVar:
		return "var"
	case TForall:
		return "forall"
	case TExists:
		return "exists"
	case TFunc:
		return "func"
	default:
		return "?type"
	}
}

// Field is a tuple component together with its initialization flag (spec
// §3, "Tuple"). Flags are part of the type, not metadata alongside it: two
// tuple types with the same component types but different init flags are
// not alpha-equivalent (spec §4.2).
type Field struct {
	Init bool
	Type Ref
}

// Pool is an append-only interning table for Type values, keyed by their
// canonical string form, addressed by Ref (spec §4.1). It never mutates a
// stored type; "updating" a tuple field builds a new Type and re-interns it.
type Pool struct {
	types []Type
	index map[string]Ref
}

// NewPool creates an empty type pool.
func NewPool() *Pool {
	return &Pool{index: make(map[string]Ref)}
}

// Intern stores t if it is not already present and returns its Ref.
// Structurally identical types (per Key) always resolve to the same Ref.
func (p *Pool) Intern(t Type) Ref {
	key := p.key(t)
	if ref, ok := p.index[key]; ok {
		return ref
	}
	ref := Ref(len(p.types))
	p.types = append(p.types, t)
	p.index[key] = ref
	return ref
}

// Get dereferences a Ref. It panics on an out-of-range Ref, which can only
// happen on a Ref minted by a different pool — a programmer error, not a
// verification failure.
func (p *Pool) Get(r Ref) Type {
	return p.types[r]
}

// key computes the canonical string form of t used for structural interning.
// It must agree with String(t) on everything Equal/alpha-equivalence cares
// about, including tuple init flags.
func (p *Pool) key(t Type) string {
	return p.str(t, nil)
}

// String renders the type at ref in spec notation, for diagnostics.
func (p *Pool) String(r Ref) string {
	return p.str(p.Get(r), nil)
}

func (p *Pool) str(t Type, bound map[ident.ID]string) string {
	switch t.Tag {
	case TI32:
		return "i32"
	case THandle:
		return "handle(" + t.Region.String() + ")"
	case TMutable:
		return "mut(" + p.str(p.Get(t.Elem), bound) + ")"
	case TArray:
		return "arr(" + p.str(p.Get(t.Elem), bound) + ")"
	case TTuple:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			mark := "u"
			if f.Init {
				mark = "i"
			}
			parts[i] = mark + ":" + p.str(p.Get(f.Type), bound)
		}
		return fmt.Sprintf("tuple(%s)@%s", strings.Join(parts, ","), t.TupleRegion)
	case TVar:
		if bound != nil {
			if name, ok := bound[t.VarID]; ok {
				return name
			}
		}
		return "var" + t.VarID.String()
	case TForall:
		inner := cloneBound(bound)
		name := fmt.Sprintf("#%d", len(inner))
		inner[t.BindID] = name
		return fmt.Sprintf("forall(%s:%s).%s", name, t.BindKind, p.str(p.Get(t.Body), inner))
	case TExists:
		inner := cloneBound(bound)
		name := fmt.Sprintf("#%d", len(inner))
		inner[t.BindID] = name
		return fmt.Sprintf("exists(%s).%s", name, p.str(p.Get(t.Body), inner))
	case TFunc:
		parts := make([]string, len(t.Args))
		for i, a := range t.Args {
			parts[i] = p.str(p.Get(a), bound)
		}
		return fmt.Sprintf("func%s(%s)", t.Caps, strings.Join(parts, ","))
	default:
		return "?"
	}
}

func cloneBound(bound map[ident.ID]string) map[ident.ID]string {
	out := make(map[ident.ID]string, len(bound)+1)
	for k, v := range bound {
		out[k] = v
	}
	return out
}

// Builder is a thin, fluent constructor layer over a Pool, grounded on the
// teacher's type Builder: it exists purely to keep call sites in the
// interpreter and synthesizer free of verbose struct literals.
type Builder struct {
	Pool *Pool
}

// NewBuilder creates a Builder backed by pool.
func NewBuilder(pool *Pool) *Builder {
	return &Builder{Pool: pool}
}

func (b *Builder) I32() Ref {
	return b.Pool.Intern(Type{Tag: TI32})
}

func (b *Builder) Handle(r Region) Ref {
	return b.Pool.Intern(Type{Tag: THandle, Region: r})
}

func (b *Builder) Mutable(elem Ref) Ref {
	return b.Pool.Intern(Type{Tag: TMutable, Elem: elem})
}

func (b *Builder) Array(elem Ref) Ref {
	return b.Pool.Intern(Type{Tag: TArray, Elem: elem})
}

// Tuple builds a tuple type; fields are born initialized as true, matching
// the `tuple(n)` constructor opcode (spec §4.4).
func (b *Builder) Tuple(componentTypes []Ref, region Region) Ref {
	fields := make([]Field, len(componentTypes))
	for i, t := range componentTypes {
		fields[i] = Field{Init: true, Type: t}
	}
	return b.Pool.Intern(Type{Tag: TTuple, Fields: fields, TupleRegion: region})
}

// TupleUninit builds a tuple type with every field uninitialized, the shape
// produced by `malloc` (spec §4.6, "malloc").
func (b *Builder) TupleUninit(componentTypes []Ref, region Region) Ref {
	fields := make([]Field, len(componentTypes))
	for i, t := range componentTypes {
		fields[i] = Field{Init: false, Type: t}
	}
	return b.Pool.Intern(Type{Tag: TTuple, Fields: fields, TupleRegion: region})
}

func (b *Builder) Var(id ident.ID) Ref {
	return b.Pool.Intern(Type{Tag: TVar, VarID: id})
}

func (b *Builder) Forall(id ident.ID, kind Kind, body Ref) Ref {
	return b.Pool.Intern(Type{Tag: TForall, BindID: id, BindKind: kind, Body: body})
}

func (b *Builder) Exists(id ident.ID, body Ref) Ref {
	return b.Pool.Intern(Type{Tag: TExists, BindID: id, Body: body})
}

func (b *Builder) Func(caps CapSet, args []Ref) Ref {
	return b.Pool.Intern(Type{Tag: TFunc, Caps: caps, Args: args})
}

// WithFieldInit returns a tuple type (not yet interned) identical to t except
// that field i is marked initialized with value type v — the "mutation is by
// value" rule for `init` (spec §4.6).
func (p *Pool) WithFieldInit(t Type, i int, v Ref) Type {
	fields := make([]Field, len(t.Fields))
	copy(fields, t.Fields)
	fields[i] = Field{Init: true, Type: v}
	return Type{Tag: TTuple, Fields: fields, TupleRegion: t.TupleRegion}
}
