package ctypes

import "github.com/sunholo/savervm/internal/ident"

// TypeSubst maps a type variable ID to its replacement Ref.
type TypeSubst map[ident.ID]Ref

// RegionSubst maps a region variable ID to its replacement Region.
type RegionSubst map[ident.ID]Region

// SubstituteRegion applies rsubs to r, leaving it unchanged if r's ID (or
// Heap) is absent from the map.
func SubstituteRegion(r Region, rsubs RegionSubst) Region {
	if r.IsHeap {
		return r
	}
	if r2, ok := rsubs[r.ID]; ok {
		return r2
	}
	return r
}

func substituteCap(c Capability, rsubs RegionSubst) Capability {
	switch c.Kind {
	case CapOwned:
		return Owned(SubstituteRegion(c.Region, rsubs))
	case CapNotOwned:
		return NotOwned(SubstituteRegion(c.Region, rsubs))
	case CapVarBounded:
		bound := substituteCap(*c.Bound, rsubs)
		return VarBounded(c.VarID, bound)
	default:
		return c
	}
}

func substituteCapSet(cs CapSet, rsubs RegionSubst) CapSet {
	out := make([]Capability, len(cs.Caps))
	for i, c := range cs.Caps {
		out[i] = substituteCap(c, rsubs)
	}
	return CapSet{Caps: out}
}

// Substitute rebuilds the type at ref, replacing each Var(α) per tsubs and
// each region mention per rsubs, identity where absent (spec §4.2,
// "subst_type"). Substitution is capture-avoiding by construction: binder
// IDs minted during signature synthesis are globally unique within a
// function, so a textual replacement can never shadow a free variable in
// the substituted-in type. Tuple initialization flags are carried through
// unchanged, per spec.
func (p *Pool) Substitute(ref Ref, tsubs TypeSubst, rsubs RegionSubst) Ref {
	t := p.Get(ref)
	switch t.Tag {
	case TI32:
		return ref
	case THandle:
		return p.Intern(Type{Tag: THandle, Region: SubstituteRegion(t.Region, rsubs)})
	case TMutable:
		return p.Intern(Type{Tag: TMutable, Elem: p.Substitute(t.Elem, tsubs, rsubs)})
	case TArray:
		return p.Intern(Type{Tag: TArray, Elem: p.Substitute(t.Elem, tsubs, rsubs)})
	case TTuple:
		fields := make([]Field, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = Field{Init: f.Init, Type: p.Substitute(f.Type, tsubs, rsubs)}
		}
		return p.Intern(Type{Tag: TTuple, Fields: fields, TupleRegion: SubstituteRegion(t.TupleRegion, rsubs)})
	case TVar:
		if repl, ok := tsubs[t.VarID]; ok {
			return repl
		}
		return ref
	case TForall:
		return p.Intern(Type{
			Tag:      TForall,
			BindID:   t.BindID,
			BindKind: t.BindKind,
			Body:     p.Substitute(t.Body, tsubs, rsubs),
		})
	case TExists:
		return p.Intern(Type{
			Tag:    TExists,
			BindID: t.BindID,
			Body:   p.Substitute(t.Body, tsubs, rsubs),
		})
	case TFunc:
		args := make([]Ref, len(t.Args))
		for i, a := range t.Args {
			args[i] = p.Substitute(a, tsubs, rsubs)
		}
		return p.Intern(Type{Tag: TFunc, Caps: substituteCapSet(t.Caps, rsubs), Args: args})
	default:
		return ref
	}
}
