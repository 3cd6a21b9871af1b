package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Act is a publishing entity that groups songs
type Act struct {
	ID            string        `mapstructure:"id" json:"id"`
	Abbreviation  string        `mapstructure:"abbreviation" json:"abbreviation"`
	DisplayName   string        `mapstructure:"display_name" json:"display_name"`
	DefaultSplits []WriterShare `mapstructure:"default_splits" json:"default_splits"`
}

// Acts resolves act ids, abbreviations and artist aliases
type Acts struct {
	acts    []Act
	lookup  map[string]*Act
	aliases map[string]string
	// fallback is the act whose splits apply to unknown act ids
	fallback string
}

// DefaultActs returns the studio's three acts and the artist aliases used
// by ingestion
func DefaultActs() *Acts {
	return NewActs([]Act{
		{
			ID: "FROZEN_CLOUD", Abbreviation: "FC", DisplayName: "Frozen Cloud",
			DefaultSplits: []WriterShare{{WriterID: "W-0001", Percentage: 50}, {WriterID: "W-0002", Percentage: 50}},
		},
		{
			ID: "PARK_BELLEVUE", Abbreviation: "PB", DisplayName: "Park Bellevue",
			DefaultSplits: []WriterShare{{WriterID: "W-0001", Percentage: 50}, {WriterID: "W-0003", Percentage: 50}},
		},
		{
			ID: "BAJAN_SUN", Abbreviation: "BS", DisplayName: "Bajan Sun",
			DefaultSplits: []WriterShare{{WriterID: "W-0001", Percentage: 100}},
		},
	}, map[string]string{
		"frozen cloud":     "FROZEN_CLOUD",
		"park bellevue":    "PARK_BELLEVUE",
		"bajan sun":        "BAJAN_SUN",
		"honest mile":      "FROZEN_CLOUD",
		"echoes of jahara": "FROZEN_CLOUD",
	})
}

// NewActs builds a registry. The first act supplies fallback splits.
func NewActs(acts []Act, aliases map[string]string) *Acts {
	r := &Acts{
		acts:    acts,
		lookup:  make(map[string]*Act, len(acts)*2),
		aliases: make(map[string]string, len(aliases)),
	}
	for i := range r.acts {
		a := &r.acts[i]
		a.ID = strings.ToUpper(a.ID)
		r.lookup[a.ID] = a
		if a.Abbreviation != "" {
			r.lookup[strings.ToUpper(a.Abbreviation)] = a
		}
	}
	if len(r.acts) > 0 {
		r.fallback = r.acts[0].ID
	}
	for name, id := range aliases {
		r.aliases[strings.ToLower(strings.TrimSpace(name))] = strings.ToUpper(id)
	}
	return r
}

// Resolve maps an abbreviation or full act id to the act
func (r *Acts) Resolve(key string) (*Act, bool) {
	a, ok := r.lookup[strings.ToUpper(strings.TrimSpace(key))]
	return a, ok
}

// All returns the registered acts in registration order
func (r *Acts) All() []Act {
	return r.acts
}

// Splits returns a copy of the act's default writer splits, falling back
// to the first registered act
func (r *Acts) Splits(actID string) []WriterShare {
	a, ok := r.Resolve(actID)
	if !ok {
		a, ok = r.Resolve(r.fallback)
	}
	if !ok {
		return []WriterShare{}
	}
	return append([]WriterShare(nil), a.DefaultSplits...)
}

// DisplayName returns the act's display name. Unknown ids are title-cased
// with underscores turned into spaces.
func (r *Acts) DisplayName(actID string) string {
	if a, ok := r.Resolve(actID); ok && a.DisplayName != "" {
		return a.DisplayName
	}
	if actID == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(strings.ToLower(actID), "_", " "))
}

// ActIDForArtist maps a tagged artist name to an act id. Unmapped names
// become UPPER_SNAKE_CASE; names with no letters or digits map to UNKNOWN.
func (r *Acts) ActIDForArtist(artist string) string {
	key := strings.ToLower(strings.TrimSpace(artist))
	if id, ok := r.aliases[key]; ok {
		return id
	}
	var b strings.Builder
	pendingSep := false
	for _, c := range strings.ToUpper(artist) {
		switch {
		case unicode.IsLetter(c) || unicode.IsDigit(c):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(c)
		default:
			pendingSep = true
		}
	}
	if b.Len() == 0 {
		return "UNKNOWN"
	}
	return b.String()
}

// WithAliases returns a registry with the same acts and extra artist
// aliases layered over the existing ones
func (r *Acts) WithAliases(extra map[string]string) *Acts {
	merged := make(map[string]string, len(r.aliases)+len(extra))
	for k, v := range r.aliases {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	acts := make([]Act, len(r.acts))
	copy(acts, r.acts)
	return NewActs(acts, merged)
}
