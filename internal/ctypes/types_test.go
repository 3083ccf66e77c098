package ctypes

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/sunholo/savervm/internal/ident"
)

func TestPoolInternDedups(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)

	r1 := b.I32()
	r2 := b.I32()
	assert.Equal(t, r1, r2, "two identical I32 constructions must intern to the same Ref")

	h1 := b.Handle(Heap)
	h2 := b.Handle(Heap)
	assert.Equal(t, h1, h2)
}

func TestTupleFieldsCarryInitFlags(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)

	i32 := b.I32()
	uninit := b.TupleUninit([]Ref{i32, i32}, Heap)
	init := b.Tuple([]Ref{i32, i32}, Heap)

	assert.NotEqual(t, uninit, init, "init flags are part of the type, not ignored")
	assert.False(t, pool.TypeEq(uninit, init))
}

func TestTypeEqAlphaRenamesForallBinder(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)

	alpha := ident.ID{Owner: 1, Counter: 0}
	beta := ident.ID{Owner: 1, Counter: 7}

	f1 := b.Forall(alpha, KindType, b.Var(alpha))
	f2 := b.Forall(beta, KindType, b.Var(beta))

	assert.True(t, pool.TypeEq(f1, f2), "forall(a).a and forall(b).b are alpha-equivalent")
}

func TestTypeEqRejectsDifferentBodies(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)

	alpha := ident.ID{Owner: 1, Counter: 0}
	beta := ident.ID{Owner: 1, Counter: 7}

	f1 := b.Forall(alpha, KindType, b.I32())
	f2 := b.Forall(beta, KindType, b.Var(beta))

	assert.False(t, pool.TypeEq(f1, f2))
}

func TestSubstituteIsCaptureAvoiding(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)

	alpha := ident.ID{Owner: 1, Counter: 0}
	beta := ident.ID{Owner: 1, Counter: 1}

	// forall(beta). Var(alpha) — alpha is free here.
	quantified := b.Forall(beta, KindType, b.Var(alpha))

	// Substituting alpha -> Var(beta) must not let the substituted beta be
	// captured by the forall's own beta binder, because beta here (the
	// substitution's target) and the forall's beta are distinct fresh IDs
	// by construction whenever they come from different synthesis runs.
	freshBeta := ident.ID{Owner: 2, Counter: 1}
	result := pool.Substitute(quantified, TypeSubst{alpha: b.Var(freshBeta)}, nil)

	got := pool.Get(result)
	assert.Equal(t, TForall, got.Tag)
	body := pool.Get(got.Body)
	assert.Equal(t, TVar, body.Tag)
	assert.True(t, body.VarID.Equal(freshBeta))
}

func TestSubstitutionCommutesWithEquality(t *testing.T) {
	// Property from spec §8: type_eq(subst(t,θ), subst(t',θ)) iff type_eq(t,t').
	pool := NewPool()
	b := NewBuilder(pool)

	alpha := ident.ID{Owner: 1, Counter: 0}
	beta := ident.ID{Owner: 1, Counter: 1}
	target := ident.ID{Owner: 9, Counter: 0}

	t1 := b.Forall(alpha, KindType, b.Var(alpha))
	t2 := b.Forall(beta, KindType, b.Var(beta))
	require := pool.TypeEq(t1, t2)
	assert.True(t, require)

	theta := TypeSubst{alpha: b.I32(), beta: b.I32()}
	s1 := pool.Substitute(t1, theta, nil)
	s2 := pool.Substitute(t2, theta, nil)
	assert.Equal(t, pool.TypeEq(s1, s2), require)
	_ = target
}

func TestRegionEquality(t *testing.T) {
	id := ident.ID{Owner: 1, Counter: 0}
	r1 := NewVar(id, true)
	r2 := NewVar(id, false)
	assert.True(t, r1.Equal(r2), "uniqueness is not part of region identity")
	assert.False(t, r1.Equal(Heap))
	assert.True(t, Heap.Equal(Heap))
}

func TestCapSetSubsetIgnoresOrder(t *testing.T) {
	id := ident.ID{Owner: 1, Counter: 0}
	r := NewVar(id, true)
	active := CapSet{Caps: []Capability{NotOwned(Heap), Owned(r)}}
	required := CapSet{Caps: []Capability{Owned(r)}}
	assert.True(t, active.Subset(required))

	missing := CapSet{Caps: []Capability{Owned(Heap)}}
	assert.False(t, active.Subset(missing))
}

func TestCapSetConcatIsBoth(t *testing.T) {
	id := ident.ID{Owner: 1, Counter: 0}
	r := NewVar(id, true)
	a := CapSet{Caps: []Capability{Owned(r)}}
	c := CapSet{Caps: []Capability{NotOwned(Heap)}}
	got := Concat(a, c)
	if diff := cmp.Diff(2, len(got.Caps)); diff != "" {
		t.Fatalf("Concat length mismatch (-want +got):\n%s", diff)
	}
}
