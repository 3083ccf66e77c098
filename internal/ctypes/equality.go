package ctypes

// TypeEq decides alpha-equivalence between a and b (spec §4.2, "type_eq"):
// same head constructor, recursing componentwise; Forall/Exists are
// compared by renaming the second binder to the first's before recursing
// (type and region binders; a capability-kind binder is not renamed, so
// its bound capability variables must carry the same Id on both sides);
// Tuple compares (init flag, type) pairs positionally under the same
// region; Func compares capability sets and argument lists.
func (p *Pool) TypeEq(a, b Ref) bool {
	return p.typeEq(a, b)
}

func (p *Pool) typeEq(a, b Ref) bool {
	ta := p.Get(a)
	tb := p.Get(b)
	if ta.Tag != tb.Tag {
		return false
	}
	switch ta.Tag {
	case TI32:
		return true
	case THandle:
		return ta.Region.Equal(tb.Region)
	case TMutable, TArray:
		return p.typeEq(ta.Elem, tb.Elem)
	case TTuple:
		if !ta.TupleRegion.Equal(tb.TupleRegion) {
			return false
		}
		if len(ta.Fields) != len(tb.Fields) {
			return false
		}
		for i := range ta.Fields {
			if ta.Fields[i].Init != tb.Fields[i].Init {
				return false
			}
			if !p.typeEq(ta.Fields[i].Type, tb.Fields[i].Type) {
				return false
			}
		}
		return true
	case TVar:
		return ta.VarID.Equal(tb.VarID)
	case TForall:
		if ta.BindKind != tb.BindKind {
			return false
		}
		var renamed Ref
		if ta.BindKind == KindRegion {
			renamed = p.Substitute(tb.Body, nil, RegionSubst{tb.BindID: NewVar(ta.BindID, false)})
		} else {
			renamed = p.Substitute(tb.Body, TypeSubst{tb.BindID: p.Intern(Type{Tag: TVar, VarID: ta.BindID})}, nil)
		}
		return p.typeEq(ta.Body, renamed)
	case TExists:
		renamed := p.Substitute(tb.Body, TypeSubst{tb.BindID: p.Intern(Type{Tag: TVar, VarID: ta.BindID})}, nil)
		return p.typeEq(ta.Body, renamed)
	case TFunc:
		if !capSetEq(ta.Caps, tb.Caps) {
			return false
		}
		if len(ta.Args) != len(tb.Args) {
			return false
		}
		for i := range ta.Args {
			if !p.typeEq(ta.Args[i], tb.Args[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CapSetEqual exports capSetEq for consumers outside ctypes (internal/verify's
// function-end capability check) that need multiset-equality of two
// capability sets without reimplementing the matching logic.
func CapSetEqual(a, b CapSet) bool {
	return capSetEq(a, b)
}

// capSetEq is structural equality of capability sets after canonical sort
// (spec §9, "Set-equality is by structural equality after canonical sort").
func capSetEq(a, b CapSet) bool {
	if len(a.Caps) != len(b.Caps) {
		return false
	}
	used := make([]bool, len(b.Caps))
	for _, ca := range a.Caps {
		found := false
		for j, cb := range b.Caps {
			if !used[j] && ca.Equal(cb) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
