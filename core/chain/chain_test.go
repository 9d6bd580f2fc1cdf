package chain

import (
	"testing"

	"github.com/echocog/aril/core/energy"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, n int) []Declaration {
	t.Helper()
	decls := make([]Declaration, 0, n)
	prev := GenesisHash
	for i := 0; i < n; i++ {
		d := CreateDeclaration(i%3, 0.1*float64(i), "note", prev)
		decls = append(decls, d)
		h, err := d.Hash()
		require.NoError(t, err)
		prev = h
	}
	return decls
}

func TestVerifyChainValid(t *testing.T) {
	decls := buildChain(t, 5)
	result, err := VerifyChain(decls)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Empty(t, result.FailedLinks)
}

func TestTamperBreaksNextLink(t *testing.T) {
	decls := buildChain(t, 5)
	decls[2].Value = 0.99

	result, err := VerifyChain(decls)
	require.Error(t, err)
	require.False(t, result.Valid)
	require.Contains(t, result.FailedLinks, 3)
}

func TestApplyDeclarationNeverWorsensCoherence(t *testing.T) {
	s := &energy.State{W: []float64{0.1, 0.9}, M: []float64{0.5, 0.5}}
	before := energy.Coherence(s)

	d := CreateDeclaration(0, 0.5, "aligning", GenesisHash)
	require.NoError(t, ApplyDeclaration(s, d))

	after := energy.Coherence(s)
	require.LessOrEqual(t, after, before)
}

func TestCanonicalJSONFieldOrder(t *testing.T) {
	d := CreateDeclaration(1, 0.5, "x", GenesisHash)
	data, err := d.CanonicalJSON()
	require.NoError(t, err)
	require.Equal(t, byte('{'), data[0])
	require.Contains(t, string(data), `"content":`)
}

func TestContinuityProofEmptyChain(t *testing.T) {
	proof, err := BuildContinuityProof(nil, 1.0, 0.0)
	require.NoError(t, err)
	require.Equal(t, GenesisHash, proof.CurrentHash)
	require.Equal(t, 1.0, proof.ContinuityScore)
}

func TestContinuityProofDetectsTamper(t *testing.T) {
	decls := buildChain(t, 5)
	proof, err := BuildContinuityProof(decls, 1.0, 0.0)
	require.NoError(t, err)
	require.Equal(t, 1.0, proof.ContinuityScore)

	decls[2].Value = 0.42
	tampered, err := BuildContinuityProof(decls, 1.0, 0.0)
	require.NoError(t, err)
	require.Less(t, tampered.ContinuityScore, proof.ContinuityScore)
}
