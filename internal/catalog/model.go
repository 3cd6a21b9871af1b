package catalog

import (
	"encoding/json"
	"slices"
	"strings"
)

// SchemaVersion is written into every saved catalog document
const SchemaVersion = 1

// Status is a song's production stage
type Status string

const (
	StatusIdea      Status = "idea"
	StatusDemo      Status = "demo"
	StatusMixing    Status = "mixing"
	StatusMastered  Status = "mastered"
	StatusCopyright Status = "copyright"
	StatusReleased  Status = "released"
	// StatusFinished is only assigned by the ingestion pipeline
	StatusFinished Status = "finished"
)

// EditorStatuses are the stages a person can pick when adding a song
var EditorStatuses = []Status{StatusIdea, StatusDemo, StatusMixing, StatusMastered, StatusCopyright, StatusReleased}

// ParseStatus matches a keyword case-insensitively against EditorStatuses
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(EditorStatuses, st) {
		return st, true
	}
	return "", false
}

// Catalog is the on-disk catalog document
type Catalog struct {
	SchemaVersion int     `json:"schema_version,omitempty"`
	Songs         []*Song `json:"songs"`

	// Carried through untouched; nothing in this module reads them
	Writers       json.RawMessage `json:"writers,omitempty"`
	Contacts      json.RawMessage `json:"contacts,omitempty"`
	Opportunities json.RawMessage `json:"opportunities,omitempty"`
}

// Song is one musical work/recording
type Song struct {
	SongID          string         `json:"song_id"`
	Title           string         `json:"title"`
	AltTitles       []string       `json:"alt_titles,omitempty"`
	ActID           string         `json:"act_id"`
	Artist          string         `json:"artist,omitempty"`
	Album           string         `json:"album,omitempty"`
	Writers         []WriterShare  `json:"writers"`
	LegacyCode      string         `json:"legacy_code"`
	Status          Status         `json:"status"`
	CopyrightNumber string         `json:"copyright_number,omitempty"`
	MusicalInfo     *MusicalInfo   `json:"musical_info,omitempty"`
	SyncMetadata    *SyncMetadata  `json:"sync_metadata,omitempty"`
	Dates           Dates          `json:"dates"`
	Registration    Registration   `json:"registration"`
	Rights          *Rights        `json:"rights,omitempty"`
	Revenue         Revenue        `json:"revenue"`
	Links           Links          `json:"links"`
	Events          []SongEvent    `json:"events,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	SyncChecklist   *SyncChecklist `json:"sync_checklist,omitempty"`
	Deployments     Deployments    `json:"deployments"`

	IsCover bool `json:"is_cover,omitempty"`
	// CoverOfID is the original's song_id; CoverOf keeps its title for
	// display and for documents written before ids were recorded
	CoverOfID string `json:"cover_of_id,omitempty"`
	CoverOf   string `json:"cover_of,omitempty"`
}

// WriterShare is one writer's percentage of a song. Shares on a song are
// expected to total 100 but nothing enforces it.
type WriterShare struct {
	WriterID   string  `json:"writer_id" mapstructure:"writer_id"`
	Percentage float64 `json:"percentage" mapstructure:"percentage"`
}

// MusicalInfo holds the audio facts captured at ingestion
type MusicalInfo struct {
	Genre           string `json:"genre,omitempty"`
	Subgenre        string `json:"subgenre,omitempty"`
	BPM             int    `json:"bpm,omitempty"`
	Key             string `json:"key,omitempty"`
	TimeSignature   string `json:"time_signature,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Instrumental    bool   `json:"instrumental"`
}

// SyncMetadata describes a song for sync licensing searches
type SyncMetadata struct {
	Moods          []string `json:"moods"`
	Themes         []string `json:"themes"`
	Keywords       []string `json:"keywords"`
	SimilarArtists []string `json:"similar_artists"`
	UseCases       []string `json:"use_cases"`
	Explicit       bool     `json:"explicit"`
	OneStop        bool     `json:"one_stop"`
}

// FirstMood returns the leading mood or fallback when none is recorded
func (s *SyncMetadata) FirstMood(fallback string) string {
	if s == nil || len(s.Moods) == 0 || s.Moods[0] == "" {
		return fallback
	}
	return s.Moods[0]
}

// Dates are kept as strings: older documents mix plain dates and RFC 3339
type Dates struct {
	Created       string `json:"created,omitempty"`
	DemoCompleted string `json:"demo_completed,omitempty"`
	Mastered      string `json:"mastered,omitempty"`
	Released      string `json:"released,omitempty"`
	LastModified  string `json:"last_modified,omitempty"`
}

// Year returns the first four characters of the creation date
func (d Dates) Year() string {
	if len(d.Created) < 4 {
		return ""
	}
	return d.Created[:4]
}

// Registration holds rights-society identifiers
type Registration struct {
	ISRC           string   `json:"isrc,omitempty"`
	ISWC           string   `json:"iswc,omitempty"`
	PROWorkID      string   `json:"pro_work_id,omitempty"`
	CopyrightReg   string   `json:"copyright_reg,omitempty"`
	RegisteredWith []string `json:"registered_with,omitempty"`
}

// Rights records ownership and licensing
type Rights struct {
	MasterOwner  string   `json:"master_owner"`
	Publisher    string   `json:"publisher"`
	Territories  []string `json:"territories"`
	Restrictions []string `json:"restrictions"`
	Licenses     []string `json:"licenses"`
}

// Expense is one dated cost logged against a song
type Expense struct {
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

// Revenue accumulates expenses and earnings
type Revenue struct {
	Expenses    []Expense `json:"expenses"`
	TotalEarned float64   `json:"total_earned"`
}

// Links points at external assets
type Links struct {
	R2Path string `json:"r2_path,omitempty"`
}

// SongEvent is an audit entry on a song
type SongEvent struct {
	Timestamp   string `json:"timestamp"`
	EventType   string `json:"event_type"`
	Description string `json:"description"`
	User        string `json:"user"`
}

// SyncChecklist tracks sync-licensing readiness
type SyncChecklist struct {
	SyncStatus            string `json:"sync_status"`
	MasterCleared         bool   `json:"master_cleared"`
	PublishingCleared     bool   `json:"publishing_cleared"`
	OneStopAvailable      bool   `json:"one_stop_available"`
	StemsAvailable        bool   `json:"stems_available"`
	InstrumentalAvailable bool   `json:"instrumental_available"`
	SyncRepAssigned       string `json:"sync_rep_assigned,omitempty"`
	PitchDeckReady        bool   `json:"pitch_deck_ready"`
}

// PlatformSet is a set of platform names that keeps insertion order
type PlatformSet []string

// Add appends name unless already present (case-insensitive)
func (p PlatformSet) Add(name string) PlatformSet {
	name = strings.TrimSpace(name)
	if name == "" {
		return p
	}
	for _, existing := range p {
		if strings.EqualFold(existing, name) {
			return p
		}
	}
	return append(p, name)
}

// normalizePlatforms rebuilds names as a set, first occurrence wins
func normalizePlatforms(names []string) PlatformSet {
	out := PlatformSet{}
	for _, n := range names {
		out = out.Add(n)
	}
	return out
}

// Deployments lists where a song has been placed
type Deployments struct {
	Distribution  PlatformSet `json:"distribution"`
	SyncLibraries PlatformSet `json:"sync_libraries"`
	Streaming     PlatformSet `json:"streaming"`
}

// EmptyDeployments returns deployments with all three sets present
func EmptyDeployments() Deployments {
	return Deployments{Distribution: PlatformSet{}, SyncLibraries: PlatformSet{}, Streaming: PlatformSet{}}
}

// SupervisorBook is the supervisors document
type SupervisorBook struct {
	Supervisors []*Supervisor `json:"supervisors"`
}

// Supervisor is a pitch contact
type Supervisor struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	History []PitchEntry `json:"history"`
}

// PitchEntry records one pitch to a supervisor
type PitchEntry struct {
	Date    string `json:"date"`
	Song    string `json:"song"`
	Project string `json:"project"`
}

// Clone returns a deep copy of the document through its JSON form
func (c *Catalog) Clone() (*Catalog, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out Catalog
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID returns the song with id, or nil
func (c *Catalog) FindByID(id string) *Song {
	for _, s := range c.Songs {
		if s.SongID == id {
			return s
		}
	}
	return nil
}

// FindByTitle matches titles case-insensitively and returns the first hit
func (c *Catalog) FindByTitle(title string) *Song {
	for _, s := range c.Songs {
		if strings.EqualFold(s.Title, title) {
			return s
		}
	}
	return nil
}

// FindByCode matches legacy codes case-insensitively; empty codes never match
func (c *Catalog) FindByCode(code string) *Song {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	for _, s := range c.Songs {
		if strings.ToUpper(s.LegacyCode) == code {
			return s
		}
	}
	return nil
}

// IsCodeUnique reports whether no song carries code
func (c *Catalog) IsCodeUnique(code string) bool {
	return c.FindByCode(code) == nil
}

// SongIDs lists every song id in catalog order
func (c *Catalog) SongIDs() []string {
	ids := make([]string, 0, len(c.Songs))
	for _, s := range c.Songs {
		ids = append(ids, s.SongID)
	}
	return ids
}

// ResolveCoverOriginal finds the song a cover points at, preferring the
// recorded id and falling back to the title reference
func (c *Catalog) ResolveCoverOriginal(cover *Song) *Song {
	if cover == nil || !cover.IsCover {
		return nil
	}
	if cover.CoverOfID != "" {
		if s := c.FindByID(cover.CoverOfID); s != nil {
			return s
		}
	}
	if cover.CoverOf != "" {
		return c.FindByTitle(cover.CoverOf)
	}
	return nil
}
