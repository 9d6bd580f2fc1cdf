// Package chain implements the tamper-evident, hash-linked declaration
// chain (§4.3): an append-only log of identity-update records where each
// entry's SHA-256 commits to the next entry's previousHash field.
package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/echocog/aril/core/energy"
	multierror "github.com/hashicorp/go-multierror"
)

// GenesisHash is the previousHash of the first entry in any chain: 64 zero
// hex digits.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Declaration is a single append-only identity-update record.
type Declaration struct {
	Index        int       `json:"index"`
	Value        float64   `json:"value"`
	Timestamp    time.Time `json:"timestamp"`
	PreviousHash string    `json:"previousHash"`
	Content      string    `json:"content"`
}

// canonicalFields mirrors Declaration with alphabetically sorted JSON keys
// for bit-exact canonical serialization (§6: content, index, previousHash,
// timestamp, value).
type canonicalFields struct {
	Content      string  `json:"content"`
	Index        int     `json:"index"`
	PreviousHash string  `json:"previousHash"`
	Timestamp    int64   `json:"timestamp"`
	Value        float64 `json:"value"`
}

// CanonicalJSON returns the bit-exact canonical encoding used for hashing:
// UTF-8, no whitespace, sorted keys, timestamp as a Unix-nanosecond
// integer so the encoding is independent of time.Time's internal
// monotonic reading.
func (d Declaration) CanonicalJSON() ([]byte, error) {
	cf := canonicalFields{
		Content:      d.Content,
		Index:        d.Index,
		PreviousHash: d.PreviousHash,
		Timestamp:    d.Timestamp.UnixNano(),
		Value:        d.Value,
	}
	return json.Marshal(cf)
}

// Hash returns the lowercase hex SHA-256 digest of the declaration's
// canonical JSON.
func (d Declaration) Hash() (string, error) {
	data, err := d.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("chain: canonicalize declaration: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// CreateDeclaration returns a fresh record with the current timestamp.
func CreateDeclaration(index int, value float64, content, previousHash string) Declaration {
	return Declaration{
		Index:        index,
		Value:        value,
		Timestamp:    time.Now(),
		PreviousHash: previousHash,
		Content:      content,
	}
}

// ApplyDeclaration sets both w[index] and m[index] to decl.Value.
// Corollary 9.2: this preserves or improves coherence (||w-m|| never
// worsens), because it moves both components to the same value.
func ApplyDeclaration(s *energy.State, decl Declaration) error {
	if decl.Index < 0 || decl.Index >= len(s.W) {
		return fmt.Errorf("chain: declaration index %d out of range [0,%d)", decl.Index, len(s.W))
	}
	s.W[decl.Index] = decl.Value
	s.M[decl.Index] = decl.Value
	return nil
}

// VerificationResult reports whether a chain verified, with the index of
// each failing link.
type VerificationResult struct {
	Valid       bool
	FailedLinks []int
}

// VerifyChain walks the sequence, checking that each entry's previousHash
// equals the canonical hash of the prior entry. The first entry must carry
// GenesisHash. Every failing link is collected via a multierror so a
// caller inspecting the error sees the full list, not just the first
// break.
func VerifyChain(decls []Declaration) (VerificationResult, error) {
	result := VerificationResult{Valid: true}
	var errs *multierror.Error

	for i, d := range decls {
		var want string
		if i == 0 {
			want = GenesisHash
		} else {
			h, err := decls[i-1].Hash()
			if err != nil {
				return VerificationResult{}, fmt.Errorf("chain: hashing link %d: %w", i-1, err)
			}
			want = h
		}
		if d.PreviousHash != want {
			result.Valid = false
			result.FailedLinks = append(result.FailedLinks, i)
			errs = multierror.Append(errs, fmt.Errorf("chain: link %d previousHash mismatch: got %s want %s", i, d.PreviousHash, want))
		}
	}

	if errs != nil {
		return result, errs
	}
	return result, nil
}

// ContinuityProof summarizes the chain's tamper-evidence state.
type ContinuityProof struct {
	GenesisHash     string
	CurrentHash     string
	ChainLength     int
	MerkleRoot      string
	ContinuityScore float64
	StabilityScore  float64
	CoherenceScore  float64
}

// BuildContinuityProof derives a ContinuityProof from the current chain
// state plus the stability/coherence scores from the energy subsystem.
func BuildContinuityProof(decls []Declaration, stability, coherence float64) (ContinuityProof, error) {
	proof := ContinuityProof{
		GenesisHash:    GenesisHash,
		ChainLength:    len(decls),
		StabilityScore: stability,
		CoherenceScore: coherence,
	}

	if len(decls) == 0 {
		proof.CurrentHash = GenesisHash
		proof.MerkleRoot = GenesisHash
		proof.ContinuityScore = 1.0
		return proof, nil
	}

	hashes := make([]string, len(decls))
	for i, d := range decls {
		h, err := d.Hash()
		if err != nil {
			return ContinuityProof{}, fmt.Errorf("chain: continuity proof: %w", err)
		}
		hashes[i] = h
	}
	proof.CurrentHash = hashes[len(hashes)-1]
	proof.MerkleRoot = merkleRoot(hashes)

	verification, _ := VerifyChain(decls)
	score := 1.0
	if len(decls) > 0 {
		score = 1.0 - float64(len(verification.FailedLinks))/float64(len(decls))
	}
	if score <= 0 {
		score = 1e-9
	}
	proof.ContinuityScore = score

	return proof, nil
}

// merkleRoot computes the standard pairwise hash of per-entry canonical
// hashes, duplicating the last element on an odd count at each level.
func merkleRoot(hashes []string) string {
	level := make([]string, len(hashes))
	copy(level, hashes)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]string, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			combined := level[i] + level[i+1]
			sum := sha256.Sum256([]byte(combined))
			next = append(next, hex.EncodeToString(sum[:]))
		}
		level = next
	}
	return level[0]
}
