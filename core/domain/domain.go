// Package domain classifies tool calls by the technology domain they
// touch (typescript, rust, solana, react, python, ...) and tracks, per
// domain, a blended expertise estimate from session exposure and energy
// curvature (§4.13).
package domain

import (
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/echocog/aril/core/numerics"
)

// extensionTags maps a normalized file extension to its primary domain
// tag.
var extensionTags = map[string]string{
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".rs":   "rust",
	".py":   "python",
	".go":   "go",
	".sol":  "solidity",
	".rb":   "ruby",
	".java": "java",
	".kt":   "kotlin",
	".c":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".h":    "c",
	".hpp":  "cpp",
}

// pathKeywordTags adds a secondary tag when a normalized path contains one
// of these substrings, layered on top of the extension tag (e.g. a .tsx
// file under a components/ directory is both typescript and react).
var pathKeywordTags = []struct {
	substr string
	tag    string
}{
	{"programs/", "solana"},
	{"anchor", "solana"},
	{"components/", "react"},
	{"hooks/", "react"},
	{".next/", "react"},
}

// fuzzyMatchMaxDistance bounds how far an unrecognized extension may sit
// (Levenshtein distance) from a known one before it's still classified
// under that known tag — catches near-miss extensions like ".tsxx" from a
// malformed tool call without misclassifying unrelated file types.
const fuzzyMatchMaxDistance = 1

// Classify returns the domain tags for a tool call touching path.
func Classify(path string) []string {
	var tags []string
	ext := strings.ToLower(filepath.Ext(path))
	if tag, ok := extensionTags[ext]; ok {
		tags = append(tags, tag)
	} else if ext != "" {
		if tag, ok := fuzzyExtensionMatch(ext); ok {
			tags = append(tags, tag)
		}
	}

	normalized := strings.ToLower(filepath.ToSlash(path))
	for _, kw := range pathKeywordTags {
		if strings.Contains(normalized, kw.substr) {
			tags = append(tags, kw.tag)
		}
	}
	return dedupe(tags)
}

// fuzzyExtensionMatch returns the tag of the known extension nearest to ext
// by Levenshtein distance. Among equally near extensions, one that ext is a
// prefix of (or that is a prefix of ext) wins, then the first in sorted
// order, so the result never depends on map iteration order.
func fuzzyExtensionMatch(ext string) (string, bool) {
	known := make([]string, 0, len(extensionTags))
	for k := range extensionTags {
		known = append(known, k)
	}
	sort.Strings(known)
	best := ""
	bestDist := fuzzyMatchMaxDistance + 1
	bestPrefix := false
	for _, k := range known {
		d := levenshtein.ComputeDistance(ext, k)
		prefix := strings.HasPrefix(k, ext) || strings.HasPrefix(ext, k)
		if d < bestDist || (d == bestDist && prefix && !bestPrefix) {
			bestDist, best, bestPrefix = d, extensionTags[k], prefix
		}
	}
	if bestDist <= fuzzyMatchMaxDistance {
		return best, true
	}
	return "", false
}

func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// exposureEMARate and hessianEMARate govern how quickly a domain's
// running exposure and curvature estimates track new sessions.
const exposureEMARate = 0.1
const hessianEMARate = 0.1

// kMid and kScale parameterize the curvature-to-expertise sigmoid.
const kMid = 1.0
const kScale = 0.5

// Profile is one domain tag's accumulated exposure and curvature state.
type Profile struct {
	SessionExposureEMA float64
	CurvatureSessions  int
	MeanHessianDiagEMA float64
}

// Tracker holds every observed domain's Profile.
type Tracker struct {
	profiles map[string]*Profile
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{profiles: make(map[string]*Profile)}
}

// Profile returns tag's profile, creating it on first touch.
func (t *Tracker) Profile(tag string) *Profile {
	p, ok := t.profiles[tag]
	if !ok {
		p = &Profile{}
		t.profiles[tag] = p
	}
	return p
}

// Observe folds one session's outcome and mean Hessian diagonal into
// tag's running exposure and curvature estimates.
func (t *Tracker) Observe(tag string, r, meanHessianDiag float64) {
	p := t.Profile(tag)
	exposureWeight := numerics.SafeClamp((r+1)/2, 0, 1, 0.5)
	p.SessionExposureEMA = ema(p.SessionExposureEMA, exposureWeight, exposureEMARate, p.CurvatureSessions == 0)
	p.MeanHessianDiagEMA = ema(p.MeanHessianDiagEMA, meanHessianDiag, hessianEMARate, p.CurvatureSessions == 0)
	p.CurvatureSessions++
}

func ema(current, next, rate float64, first bool) float64 {
	if first {
		return next
	}
	return (1-rate)*current + rate*next
}

// Expertise blends session-exposure expertise with curvature-derived
// expertise, weighted by how many curvature-bearing sessions this domain
// has accumulated (caps the blend at 10 sessions).
func (p *Profile) Expertise() float64 {
	lambdaBlend := math.Min(1, float64(p.CurvatureSessions)/10)
	curvatureExpertise := sigmoid((kMid - p.MeanHessianDiagEMA) / kScale)
	return (1-lambdaBlend)*p.SessionExposureEMA + lambdaBlend*curvatureExpertise
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Snapshot returns a copy of every tracked domain's Profile, for
// persistence.
func (t *Tracker) Snapshot() map[string]Profile {
	out := make(map[string]Profile, len(t.profiles))
	for tag, p := range t.profiles {
		out[tag] = *p
	}
	return out
}

// Restore rebuilds a Tracker from a previously persisted profile snapshot.
func Restore(profiles map[string]Profile) *Tracker {
	t := New()
	for tag, p := range profiles {
		cp := p
		t.profiles[tag] = &cp
	}
	return t
}
