// Package commitment implements Pedersen commitments C = v·G + r·H over the
// prime-order subgroup of edwards25519.
//
// G is the standard base point. H is derived by hashing a fixed label to the
// curve, so nobody knows log_G(H); that is what makes a commitment binding.
// With a uniformly random r the commitment is perfectly hiding.
//
// Every operation on secret scalars (value, blinding) goes through the
// constant-time ScalarBaseMult/ScalarMult routines, and point comparison uses
// the constant-time Equal. Variable-time routines are never used here.
package commitment

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"filippo.io/edwards25519"

	dErrors "pedersen-identity/pkg/domain-errors"
)

// Size is the length of an encoded commitment.
const Size = 32

// Commitment is a compressed curve point. The zero value is "no commitment"
// and never verifies.
type Commitment [Size]byte

// ParseCommitment decodes an encoded point and checks that it is a non-identity
// element of the prime-order subgroup. Anything else fails with
// ERR_INVALID_SCALAR.
func ParseCommitment(b []byte) (Commitment, error) {
	var c Commitment
	if len(b) != Size {
		return c, dErrors.New(dErrors.CodeInvalidScalar, fmt.Sprintf("commitment must be %d bytes", Size))
	}
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return c, dErrors.Wrap(err, dErrors.CodeInvalidScalar, "commitment is not a curve point")
	}
	if !inPrimeSubgroup(p) || p.Equal(edwards25519.NewIdentityPoint()) == 1 {
		return c, dErrors.New(dErrors.CodeInvalidScalar, "commitment is outside the prime-order subgroup")
	}
	copy(c[:], p.Bytes())
	return c, nil
}

// ParseCommitmentHex decodes a hex-encoded commitment.
func ParseCommitmentHex(s string) (Commitment, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Commitment{}, dErrors.Wrap(err, dErrors.CodeInvalidScalar, "commitment is not valid hex")
	}
	return ParseCommitment(b)
}

// IsZero reports whether c is unset.
func (c Commitment) IsZero() bool { return c == Commitment{} }

func (c Commitment) String() string { return hex.EncodeToString(c[:]) }

// MarshalJSON encodes the commitment as a hex string.
func (c Commitment) MarshalJSON() ([]byte, error) {
	if c.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a hex string; the empty string yields the zero value.
func (c *Commitment) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*c = Commitment{}
		return nil
	}
	parsed, err := ParseCommitmentHex(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c Commitment) point() (*edwards25519.Point, bool) {
	if c.IsZero() {
		return nil, false
	}
	p, err := new(edwards25519.Point).SetBytes(c[:])
	if err != nil {
		return nil, false
	}
	return p, true
}

// Relation selects what VerifyEquality proves about two commitments.
type Relation int

const (
	// RelationEqual holds when both commitments are the same point.
	RelationEqual Relation = iota
	// RelationSameValue holds when both commit to the same value and differ
	// only by a known blinding delta: c1 - c2 = Δr·H.
	RelationSameValue
)

// Engine builds and verifies commitments. It is stateless apart from the
// fixed generators and safe for concurrent use.
type Engine struct {
	h    *edwards25519.Point
	inv8 *edwards25519.Scalar
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
)

// New returns the engine with the fixed generators. H is derived once per
// process.
func New() *Engine {
	defaultOnce.Do(func() {
		defaultEngine = &Engine{h: deriveH(), inv8: inverseOfEight()}
	})
	return defaultEngine
}

// Commit returns v·G + r·H. It is deterministic in its inputs.
func (e *Engine) Commit(value, blinding Scalar) Commitment {
	vg := new(edwards25519.Point).ScalarBaseMult(&value.s)
	rh := new(edwards25519.Point).ScalarMult(&blinding.s, e.h)
	var c Commitment
	copy(c[:], new(edwards25519.Point).Add(vg, rh).Bytes())
	return c
}

// Open recomputes v·G + r·H and compares it with c. It is a predicate: a
// malformed or mismatching commitment yields false, never an error.
func (e *Engine) Open(c Commitment, value, blinding Scalar) bool {
	stored, ok := c.point()
	if !ok {
		return false
	}
	vg := new(edwards25519.Point).ScalarBaseMult(&value.s)
	rh := new(edwards25519.Point).ScalarMult(&blinding.s, e.h)
	return new(edwards25519.Point).Add(vg, rh).Equal(stored) == 1
}

// VerifyEquality checks relation between c1 and c2. For RelationSameValue,
// delta is r1 - r2; the check is c1 - c2 == delta·H, which shows the committed
// values match without revealing them. delta is ignored for RelationEqual.
func (e *Engine) VerifyEquality(c1, c2 Commitment, relation Relation, delta Scalar) bool {
	p1, ok1 := c1.point()
	p2, ok2 := c2.point()
	if !ok1 || !ok2 {
		return false
	}
	switch relation {
	case RelationEqual:
		return p1.Equal(p2) == 1
	case RelationSameValue:
		diff := new(edwards25519.Point).Subtract(p1, p2)
		return diff.Equal(new(edwards25519.Point).ScalarMult(&delta.s, e.h)) == 1
	default:
		return false
	}
}

// H returns the encoding of the second generator, for publication.
func (e *Engine) H() Commitment {
	var c Commitment
	copy(c[:], e.h.Bytes())
	return c
}

// deriveH hashes the fixed label to the curve by try-and-increment: each
// candidate digest is decoded as a point and the cofactor is cleared. The first
// candidate that lands on a non-identity point of the prime-order subgroup wins.
func deriveH() *edwards25519.Point {
	identity := edwards25519.NewIdentityPoint()
	for counter := uint32(0); ; counter++ {
		digest := hashParts(labelH, counter)
		p, err := new(edwards25519.Point).SetBytes(digest[:Size])
		if err != nil {
			continue
		}
		h := new(edwards25519.Point).MultByCofactor(p)
		if h.Equal(identity) == 1 {
			continue
		}
		return h
	}
}

func inverseOfEight() *edwards25519.Scalar {
	var eight [ScalarSize]byte
	eight[0] = 8
	s, err := edwards25519.NewScalar().SetCanonicalBytes(eight[:])
	if err != nil {
		panic(err)
	}
	return edwards25519.NewScalar().Invert(s)
}

// inPrimeSubgroup reports whether p has no torsion component: clearing the
// cofactor and multiplying back by 8⁻¹ mod ℓ returns p only for subgroup points.
func inPrimeSubgroup(p *edwards25519.Point) bool {
	e := New()
	cleared := new(edwards25519.Point).MultByCofactor(p)
	back := new(edwards25519.Point).ScalarMult(e.inv8, cleared)
	return back.Equal(p) == 1
}
