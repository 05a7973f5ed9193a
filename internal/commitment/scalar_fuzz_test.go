package commitment

import (
	"bytes"
	"testing"

	dErrors "pedersen-identity/pkg/domain-errors"
)

// FuzzParseScalar checks that accepted scalars are canonical and that every
// rejection carries the scalar error code.
func FuzzParseScalar(f *testing.F) {
	f.Add(make([]byte, ScalarSize))
	f.Add(bytes.Repeat([]byte{0xff}, ScalarSize))
	f.Add([]byte{1, 2, 3})
	f.Add(append([]byte{1}, make([]byte, ScalarSize)...))

	f.Fuzz(func(t *testing.T, input []byte) {
		s, err := ParseScalar(input)
		if err != nil {
			if !dErrors.HasCode(err, dErrors.CodeInvalidScalar) {
				t.Errorf("rejection without scalar code: %v", err)
			}
			return
		}
		if !bytes.Equal(s.Bytes(), input) {
			t.Errorf("accepted non-canonical scalar %x", input)
		}
	})
}

// FuzzParseCommitment checks that parsing normalizes: the stored encoding of
// an accepted point parses back to itself.
func FuzzParseCommitment(f *testing.F) {
	f.Add(make([]byte, Size))
	f.Add(bytes.Repeat([]byte{0xff}, Size))
	h := New().H()
	f.Add(h[:])

	f.Fuzz(func(t *testing.T, input []byte) {
		c, err := ParseCommitment(input)
		if err != nil {
			if !dErrors.HasCode(err, dErrors.CodeInvalidScalar) {
				t.Errorf("rejection without scalar code: %v", err)
			}
			return
		}
		again, err := ParseCommitment(c[:])
		if err != nil || again != c {
			t.Errorf("normalized commitment %x does not parse back: %v", c[:], err)
		}
	})
}
