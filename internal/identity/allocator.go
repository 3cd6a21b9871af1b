// Package identity allocates the two identifiers every catalog song carries:
// the sequential RS-<year>-NNNN song id and the four-letter legacy code.
//
// Both allocators are pure functions over a view of the current catalog.
// They are not safe against concurrent callers working from separate
// snapshots; the catalog writer serializes every allocation.
package identity

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"

	"github.com/franz/ridgemont-catalog/internal/util"
	"golang.org/x/text/unicode/norm"
)

// CodeLength is the fixed width of a legacy code
const CodeLength = 4

// randomAttempts bounds the final, random strategy
const randomAttempts = 100

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// SongIDPrefix returns the prefix shared by every id allocated in year
func SongIDPrefix(year int) string {
	return fmt.Sprintf("RS-%d-", year)
}

// NextSongID counts the ids already issued for year and returns the next
// one, zero-padded to four digits. If the counted slot is occupied (legacy
// documents with gaps) the first free slot after it is used so an id is
// never handed out twice.
func NextSongID(existing []string, year int) string {
	prefix := SongIDPrefix(year)
	taken := make(map[string]bool, len(existing))
	count := 0
	for _, id := range existing {
		if strings.HasPrefix(id, prefix) {
			count++
		}
		taken[id] = true
	}

	for n := count + 1; ; n++ {
		id := fmt.Sprintf("%s%04d", prefix, n)
		if !taken[id] {
			return id
		}
	}
}

// ValidateCode normalizes an explicitly supplied legacy code and rejects
// anything that is not exactly four letters. Codes are never padded or
// truncated to fit.
func ValidateCode(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if len(normalized) != CodeLength {
		return "", fmt.Errorf("%w: code must be exactly %d characters, got %q", util.ErrValidation, CodeLength, normalized)
	}
	for _, r := range normalized {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: code must contain only letters A-Z, got %q", util.ErrValidation, normalized)
		}
	}
	return normalized, nil
}

// LooksLikeCode reports whether tok is already a well-formed code as typed:
// four uppercase ASCII letters
func LooksLikeCode(tok string) bool {
	if len(tok) != CodeLength {
		return false
	}
	for _, r := range tok {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Allocator derives a unique legacy code from a song title
type Allocator struct {
	isUnique func(code string) bool
	rng      *rand.Rand
}

// NewAllocator builds an allocator. isUnique must report whether a code is
// unused in the catalog. A nil rng uses the process-wide random source.
func NewAllocator(isUnique func(code string) bool, rng *rand.Rand) *Allocator {
	return &Allocator{isUnique: isUnique, rng: rng}
}

// Allocate tries, in order: the first four letters of the title; the
// initials of the first four words; initials of a two- or three-word title
// padded with title letters and then X; the first three letters followed by
// A-Z; and finally random codes. It fails with util.ErrAllocationExhausted
// only when every random attempt collides.
func (a *Allocator) Allocate(title string) (string, error) {
	for _, candidate := range a.candidates(title) {
		if a.isUnique(candidate) {
			return candidate, nil
		}
	}

	for i := 0; i < randomAttempts; i++ {
		candidate := a.randomCode()
		if a.isUnique(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: no free code for %q after %d random attempts", util.ErrAllocationExhausted, title, randomAttempts)
}

// candidates lists the deterministic strategies in priority order
func (a *Allocator) candidates(title string) []string {
	clean := letters(title)
	words := titleWords(title)
	out := make([]string, 0, 30)

	if len(clean) >= CodeLength {
		out = append(out, clean[:CodeLength])
	}

	switch {
	case len(words) >= 4:
		var b strings.Builder
		for _, w := range words[:4] {
			b.WriteByte(w[0])
		}
		out = append(out, b.String())
	case len(words) >= 2:
		var b strings.Builder
		for _, w := range words {
			b.WriteByte(w[0])
		}
		candidate := b.String()
		remaining := CodeLength - len(candidate)
		if len(clean) > len(words) {
			end := min(len(words)+remaining, len(clean))
			candidate += clean[len(words):end]
		}
		out = append(out, padCode(candidate))
	}

	base := padTo(clean, 3)[:3]
	for _, suffix := range alphabet {
		out = append(out, base+string(suffix))
	}
	return out
}

func (a *Allocator) randomCode() string {
	b := make([]byte, CodeLength)
	for i := range b {
		var n int
		if a.rng != nil {
			n = a.rng.IntN(len(alphabet))
		} else {
			n = rand.IntN(len(alphabet))
		}
		b[i] = alphabet[n]
	}
	return string(b)
}

// letters folds a title to its uppercase A-Z letters, dropping accents
// ("Café" -> "CAFE") and everything that is not a Latin letter
func letters(s string) string {
	var b strings.Builder
	for _, r := range norm.NFD.String(s) {
		r = unicode.ToUpper(r)
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// titleWords returns the folded form of each whitespace-separated word that
// starts with a letter
func titleWords(title string) []string {
	var words []string
	for _, w := range strings.Fields(title) {
		first := []rune(w)[0]
		if !unicode.IsLetter(first) {
			continue
		}
		if folded := letters(w); folded != "" {
			words = append(words, folded)
		}
	}
	return words
}

func padCode(s string) string {
	if len(s) > CodeLength {
		return s[:CodeLength]
	}
	return padTo(s, CodeLength)
}

func padTo(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat("X", n-len(s))
}
