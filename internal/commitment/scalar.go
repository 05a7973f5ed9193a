package commitment

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/blake2b"

	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
)

// ScalarSize is the length of a canonical scalar encoding.
const ScalarSize = 32

// Domain labels keep value, blinding and generator hashes in disjoint spaces.
const (
	labelValue    = "pedersen-identity/value/v1"
	labelBlinding = "pedersen-identity/blinding/v1"
	labelH        = "pedersen-identity/H/v1"
)

// Scalar is an integer modulo the order ℓ of the prime-order subgroup.
// The zero value is the scalar 0.
type Scalar struct {
	s edwards25519.Scalar
}

// ParseScalar decodes a 32-byte little-endian canonical encoding (< ℓ).
// Anything else fails with ERR_INVALID_SCALAR.
func ParseScalar(b []byte) (Scalar, error) {
	var out Scalar
	if len(b) != ScalarSize {
		return out, dErrors.New(dErrors.CodeInvalidScalar, fmt.Sprintf("scalar must be %d bytes", ScalarSize))
	}
	if _, err := out.s.SetCanonicalBytes(b); err != nil {
		return out, dErrors.Wrap(err, dErrors.CodeInvalidScalar, "scalar is not canonical")
	}
	return out, nil
}

// ParseScalarHex decodes a hex-encoded canonical scalar.
func ParseScalarHex(s string) (Scalar, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Scalar{}, dErrors.Wrap(err, dErrors.CodeInvalidScalar, "scalar is not valid hex")
	}
	return ParseScalar(b)
}

// Bytes returns the canonical encoding.
func (s Scalar) Bytes() []byte { return s.s.Bytes() }

// Hex returns the canonical encoding as lowercase hex.
func (s Scalar) Hex() string { return hex.EncodeToString(s.Bytes()) }

// Equal reports whether two scalars are equal, in constant time.
func (s Scalar) Equal(t Scalar) bool { return s.s.Equal(&t.s) == 1 }

// Sub returns s - t mod ℓ.
func (s Scalar) Sub(t Scalar) Scalar {
	var out Scalar
	out.s.Subtract(&s.s, &t.s)
	return out
}

// NewBlinding draws a uniformly random blinding factor from rand. Wallets call
// this before submitting a call; ledger execution never does.
func NewBlinding(rand io.Reader) (Scalar, error) {
	var wide [64]byte
	if _, err := io.ReadFull(rand, wide[:]); err != nil {
		return Scalar{}, fmt.Errorf("read randomness: %w", err)
	}
	return fromWide(wide[:]), nil
}

// ValueFromAttribute maps attribute text to the committed value v. The field
// name is part of the hash so equal text under different fields commits to
// different values.
func ValueFromAttribute(field, text string) Scalar {
	return hashToScalar(labelValue, []byte(field), []byte(text))
}

// DeriveBlinding is the deterministic blinding used when a call carries none.
// Anyone who knows the attribute can recompute it, so commitments built with
// it are binding but not hiding.
func DeriveBlinding(owner id.Principal, height id.Height, text string) Scalar {
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], uint64(height))
	return hashToScalar(labelBlinding, []byte(owner), h[:], []byte(text))
}

// hashToScalar hashes length-prefixed parts with BLAKE2b-512 and reduces the
// 64-byte digest modulo ℓ.
func hashToScalar(label string, parts ...[]byte) Scalar {
	digest := hashParts(label, 0, parts...)
	return fromWide(digest[:])
}

func hashParts(label string, counter uint32, parts ...[]byte) [64]byte {
	h, err := blake2b.New512(nil)
	if err != nil {
		// Unkeyed BLAKE2b construction cannot fail.
		panic(err)
	}
	var lenBuf [4]byte
	writePart := func(b []byte) {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		h.Write(lenBuf[:])
		h.Write(b)
	}
	writePart([]byte(label))
	for _, p := range parts {
		writePart(p)
	}
	binary.BigEndian.PutUint32(lenBuf[:], counter)
	h.Write(lenBuf[:])

	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

func fromWide(b []byte) Scalar {
	var out Scalar
	if _, err := out.s.SetUniformBytes(b); err != nil {
		// Only reachable with a length other than 64.
		panic(err)
	}
	return out
}
