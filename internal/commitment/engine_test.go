package commitment

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"testing"

	"filippo.io/edwards25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
)

func randomScalar(t *testing.T) Scalar {
	t.Helper()
	s, err := NewBlinding(rand.Reader)
	require.NoError(t, err)
	return s
}

// TestOpen_Correctness: open(commit(v, r), v, r) holds for every pair.
func TestOpen_Correctness(t *testing.T) {
	engine := New()
	for i := 0; i < 32; i++ {
		v := randomScalar(t)
		r := randomScalar(t)
		c := engine.Commit(v, r)
		assert.True(t, engine.Open(c, v, r), "iteration %d", i)
	}
}

// TestOpen_Binding: changing either the value or the blinding breaks the opening.
func TestOpen_Binding(t *testing.T) {
	engine := New()
	v := ValueFromAttribute("display-name", "Test User")
	r := randomScalar(t)
	c := engine.Commit(v, r)

	t.Run("different value", func(t *testing.T) {
		other := ValueFromAttribute("display-name", "Test Userr")
		assert.False(t, engine.Open(c, other, r))
	})

	t.Run("different blinding", func(t *testing.T) {
		assert.False(t, engine.Open(c, v, randomScalar(t)))
	})

	t.Run("both swapped", func(t *testing.T) {
		assert.False(t, engine.Open(c, r, v))
	})

	t.Run("zero commitment never opens", func(t *testing.T) {
		assert.False(t, engine.Open(Commitment{}, v, r))
	})
}

func TestCommit_Deterministic(t *testing.T) {
	engine := New()
	v := ValueFromAttribute("display-name", "Test Provider")
	r := randomScalar(t)

	assert.Equal(t, engine.Commit(v, r), engine.Commit(v, r))
}

// TestCommit_Hiding: the same value under two blindings gives unrelated points.
func TestCommit_Hiding(t *testing.T) {
	engine := New()
	v := ValueFromAttribute("display-name", "Test User")

	c1 := engine.Commit(v, randomScalar(t))
	c2 := engine.Commit(v, randomScalar(t))
	assert.NotEqual(t, c1, c2)
}

func TestGenerators_Independent(t *testing.T) {
	engine := New()
	g := edwards25519.NewGeneratorPoint().Bytes()
	h := engine.H()

	assert.False(t, bytes.Equal(g, h[:]), "H must differ from G")
	_, err := ParseCommitment(h[:])
	require.NoError(t, err, "H must be a prime-order subgroup point")
	assert.Equal(t, h, New().H(), "H is fixed")
}

func TestVerifyEquality(t *testing.T) {
	engine := New()
	v := ValueFromAttribute("display-name", "Test User")
	r1 := randomScalar(t)
	r2 := randomScalar(t)
	c1 := engine.Commit(v, r1)
	c2 := engine.Commit(v, r2)

	t.Run("equal relation", func(t *testing.T) {
		assert.True(t, engine.VerifyEquality(c1, c1, RelationEqual, Scalar{}))
		assert.False(t, engine.VerifyEquality(c1, c2, RelationEqual, Scalar{}))
	})

	t.Run("same value under rotated blinding", func(t *testing.T) {
		assert.True(t, engine.VerifyEquality(c1, c2, RelationSameValue, r1.Sub(r2)))
	})

	t.Run("different value is detected", func(t *testing.T) {
		c3 := engine.Commit(ValueFromAttribute("display-name", "Someone Else"), r2)
		assert.False(t, engine.VerifyEquality(c1, c3, RelationSameValue, r1.Sub(r2)))
	})

	t.Run("unknown relation is false", func(t *testing.T) {
		assert.False(t, engine.VerifyEquality(c1, c1, Relation(99), Scalar{}))
	})
}

func TestParseScalar(t *testing.T) {
	t.Run("accepts canonical encoding", func(t *testing.T) {
		s := randomScalar(t)
		parsed, err := ParseScalar(s.Bytes())
		require.NoError(t, err)
		assert.True(t, s.Equal(parsed))
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseScalar(make([]byte, 31))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidScalar))
	})

	t.Run("rejects value at or above group order", func(t *testing.T) {
		over := bytes.Repeat([]byte{0xff}, ScalarSize)
		_, err := ParseScalar(over)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidScalar))
	})

	t.Run("rejects bad hex", func(t *testing.T) {
		_, err := ParseScalarHex("zz")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidScalar))
	})

	t.Run("hex round trip", func(t *testing.T) {
		s := randomScalar(t)
		parsed, err := ParseScalarHex(s.Hex())
		require.NoError(t, err)
		assert.True(t, s.Equal(parsed))
	})
}

func TestParseCommitment(t *testing.T) {
	engine := New()

	t.Run("accepts engine output", func(t *testing.T) {
		c := engine.Commit(randomScalar(t), randomScalar(t))
		parsed, err := ParseCommitment(c[:])
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	})

	t.Run("rejects identity", func(t *testing.T) {
		_, err := ParseCommitment(edwards25519.NewIdentityPoint().Bytes())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidScalar))
	})

	t.Run("rejects torsion component", func(t *testing.T) {
		// (0, -1) has order 2; adding it moves a subgroup point out of the subgroup.
		orderTwo, err := hex.DecodeString("ecffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff7f")
		require.NoError(t, err)
		torsion, err := new(edwards25519.Point).SetBytes(orderTwo)
		require.NoError(t, err)

		c := engine.Commit(randomScalar(t), randomScalar(t))
		p, err := new(edwards25519.Point).SetBytes(c[:])
		require.NoError(t, err)
		mixed := new(edwards25519.Point).Add(p, torsion)

		_, err = ParseCommitment(mixed.Bytes())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidScalar))
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseCommitment([]byte{1, 2, 3})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidScalar))
	})
}

func TestCommitment_JSON(t *testing.T) {
	engine := New()
	c := engine.Commit(randomScalar(t), randomScalar(t))

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `"`+c.String()+`"`, string(data))

	var decoded Commitment
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c, decoded)

	var empty Commitment
	require.NoError(t, json.Unmarshal([]byte(`""`), &empty))
	assert.True(t, empty.IsZero())
}

func TestDeriveBlinding(t *testing.T) {
	owner := id.Principal("ST1SJ3DTE5DN7X54YDH5D64R3BCB6A2AG2ZQ8YPD5")

	a := DeriveBlinding(owner, 7, "Test User")
	assert.True(t, a.Equal(DeriveBlinding(owner, 7, "Test User")))
	assert.False(t, a.Equal(DeriveBlinding(owner, 8, "Test User")))
	assert.False(t, a.Equal(DeriveBlinding(owner, 7, "Test Userx")))
}

func TestValueFromAttribute_FieldSeparation(t *testing.T) {
	a := ValueFromAttribute("display-name", "x")
	b := ValueFromAttribute("email", "x")
	assert.False(t, a.Equal(b))
}
