package verify

import (
	"github.com/sunholo/savervm/internal/ctinterp"
	"github.com/sunholo/savervm/internal/ctypes"
)

// openSignature peels every Forall layer off sig in source order, returning
// the closed Func type underneath together with the compile-time values a
// body verifier must seed its interpreter with — one per binder, so the body
// can still ct_get/handle/call against a quantifier its own signature
// already closed (spec §4.6: "a compile-time stack seeded with the
// quantifier binders drawn from the signature, in source order").
func openSignature(pool *ctypes.Pool, sig ctypes.Ref) (ctypes.Ref, []ctinterp.Value) {
	var seeds []ctinterp.Value
	ref := sig
	for {
		t := pool.Get(ref)
		if t.Tag != ctypes.TForall {
			break
		}
		switch t.BindKind {
		case ctypes.KindType:
			v := pool.Intern(ctypes.Type{Tag: ctypes.TVar, VarID: t.BindID})
			seeds = append(seeds, ctinterp.TypeValue(v))
		case ctypes.KindRegion:
			seeds = append(seeds, ctinterp.RegionValue(ctypes.NewVar(t.BindID, false)))
		case ctypes.KindCapability:
			seeds = append(seeds, ctinterp.CapValue(ctypes.Var(t.BindID)))
		}
		ref = t.Body
	}
	return ref, seeds
}
