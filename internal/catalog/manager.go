package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/franz/ridgemont-catalog/internal/identity"
	"github.com/franz/ridgemont-catalog/internal/util"
)

// Config holds everything the catalog writer needs
type Config struct {
	CatalogPath     string
	SupervisorsPath string
	BackupDir       string
	Retention       int
	Acts            *Acts            // nil means DefaultActs
	Now             func() time.Time // nil means time.Now
	Rand            *rand.Rand       // random code strategy; nil means seeded from the clock
}

// Manager is the single writer for one catalog file. It owns the Store in
// a dedicated goroutine and every read or mutation runs there, in arrival
// order. An advisory file lock keeps a second process from opening the
// same catalog for writing.
type Manager struct {
	cfg         Config
	store       *Store
	supervisors *supervisorStore
	acts        *Acts
	alloc       *identity.Allocator
	lock        *flock.Flock

	reqs      chan func()
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewManager acquires the writer lock, loads both documents and starts
// the writer goroutine. A catalog already held by another writer fails
// with util.ErrWriterBusy.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil || cfg.CatalogPath == "" {
		return nil, fmt.Errorf("%w: catalog path is required", util.ErrInvalidConfig)
	}
	c := *cfg
	if c.Acts == nil {
		c.Acts = DefaultActs()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Rand == nil {
		seed := uint64(c.Now().UnixNano())
		c.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}

	if err := os.MkdirAll(filepath.Dir(c.CatalogPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog dir: %w", err)
	}
	lock := flock.New(c.CatalogPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire catalog lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrWriterBusy, c.CatalogPath)
	}

	store, err := OpenStore(StoreConfig{
		Path:      c.CatalogPath,
		BackupDir: c.BackupDir,
		Retention: c.Retention,
		Now:       c.Now,
	})
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	sups, err := openSupervisors(c.SupervisorsPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	m := &Manager{
		cfg:         c,
		store:       store,
		supervisors: sups,
		acts:        c.Acts,
		lock:        lock,
		reqs:        make(chan func()),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	m.alloc = identity.NewAllocator(func(code string) bool {
		return m.store.Catalog().IsCodeUnique(code)
	}, c.Rand)

	go m.loop()
	return m, nil
}

func (m *Manager) loop() {
	defer close(m.stopped)
	for {
		select {
		case fn := <-m.reqs:
			fn()
		case <-m.done:
			return
		}
	}
}

// do runs fn on the writer goroutine and waits for its result. ctx only
// bounds the wait for the writer; once fn has been accepted it runs to
// completion and its result is returned.
func (m *Manager) do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	errc := make(chan error, 1)
	select {
	case m.reqs <- func() { errc <- fn() }:
	case <-m.done:
		return util.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-errc
}

// Close stops the writer and releases the file lock. Pending callers get
// util.ErrClosed.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		<-m.stopped
		err = m.lock.Unlock()
	})
	return err
}

// Acts returns the act registry the manager was built with
func (m *Manager) Acts() *Acts {
	return m.acts
}

// Snapshot returns a deep copy of the catalog document
func (m *Manager) Snapshot(ctx context.Context) (*Catalog, error) {
	var out *Catalog
	err := m.do(ctx, func() error {
		var err error
		out, err = m.store.Catalog().Clone()
		return err
	})
	return out, err
}

// FindSongByTitle returns a copy of the first song whose title matches
// case-insensitively
func (m *Manager) FindSongByTitle(ctx context.Context, title string) (*Song, error) {
	var out *Song
	err := m.do(ctx, func() error {
		song := m.store.Catalog().FindByTitle(title)
		if song == nil {
			return fmt.Errorf("%w: song '%s'", util.ErrNotFound, title)
		}
		out = cloneSong(song)
		return nil
	})
	return out, err
}

// SongsByAct returns copies of the act's songs in catalog order
func (m *Manager) SongsByAct(ctx context.Context, actID string) ([]*Song, error) {
	var out []*Song
	err := m.do(ctx, func() error {
		for _, s := range m.store.Catalog().Songs {
			if s.ActID == actID {
				out = append(out, cloneSong(s))
			}
		}
		return nil
	})
	return out, err
}

// NewSong describes a song added by hand
type NewSong struct {
	Title       string
	ActID       string
	Status      Status
	LegacyCode  string
	Artist      string
	IsCover     bool
	CoverOf     string // title or song id of the original
	Deployments *Deployments
}

// AddSong validates req, allocates the song's identity and persists it.
// A cover takes its original's legacy code; an explicit code must be four
// letters and unused; otherwise a code is allocated from the title.
func (m *Manager) AddSong(ctx context.Context, req NewSong) (*Song, error) {
	var out *Song
	err := m.do(ctx, func() error {
		song, err := m.newSong(req)
		if err != nil {
			return err
		}
		doc := m.store.Catalog()
		doc.Songs = append(doc.Songs, song)
		out = cloneSong(song)
		if err := m.store.Save(); err != nil {
			return fmt.Errorf("song %s added in memory but not saved: %w", song.SongID, err)
		}
		util.InfoLog("Added %s %q (%s, code %s)", song.SongID, song.Title, song.ActID, displayCode(song.LegacyCode))
		return nil
	})
	return out, err
}

func (m *Manager) newSong(req NewSong) (*Song, error) {
	doc := m.store.Catalog()
	now := m.cfg.Now()

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", util.ErrValidation)
	}
	act, ok := m.acts.Resolve(req.ActID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown act %q", util.ErrValidation, req.ActID)
	}
	status := StatusIdea
	if req.Status != "" {
		if status, ok = ParseStatus(string(req.Status)); !ok {
			return nil, fmt.Errorf("%w: unknown status %q", util.ErrValidation, req.Status)
		}
	}

	song := &Song{
		Title:       title,
		ActID:       act.ID,
		Artist:      strings.TrimSpace(req.Artist),
		Writers:     m.acts.Splits(act.ID),
		Status:      status,
		Dates:       Dates{Created: now.Format("2006-01-02")},
		Revenue:     Revenue{Expenses: []Expense{}},
		Deployments: EmptyDeployments(),
	}
	if song.Artist == "" {
		song.Artist = m.acts.DisplayName(act.ID)
	}
	if req.Deployments != nil {
		song.Deployments = Deployments{
			Distribution:  normalizePlatforms(req.Deployments.Distribution),
			SyncLibraries: normalizePlatforms(req.Deployments.SyncLibraries),
			Streaming:     normalizePlatforms(req.Deployments.Streaming),
		}
	}

	switch {
	case req.IsCover:
		if strings.TrimSpace(req.CoverOf) == "" {
			return nil, fmt.Errorf("%w: a cover must name the song it covers", util.ErrValidation)
		}
		song.IsCover = true
		song.CoverOf = strings.TrimSpace(req.CoverOf)
		original := doc.FindByID(song.CoverOf)
		if original == nil {
			original = doc.FindByTitle(song.CoverOf)
		}
		if original != nil {
			song.CoverOfID = original.SongID
			song.CoverOf = original.Title
		}
		if original != nil && original.LegacyCode != "" {
			song.LegacyCode = original.LegacyCode
			break
		}
		code, err := m.alloc.Allocate(title)
		if err != nil {
			return nil, err
		}
		song.LegacyCode = code
	case strings.TrimSpace(req.LegacyCode) != "":
		code, err := validateCodeFor(doc, req.LegacyCode, nil)
		if err != nil {
			return nil, err
		}
		song.LegacyCode = code
	default:
		code, err := m.alloc.Allocate(title)
		if err != nil {
			return nil, err
		}
		song.LegacyCode = code
	}

	song.SongID = identity.NextSongID(doc.SongIDs(), now.Year())
	return song, nil
}

// UpdateSong merges u into the song and saves. It reports false, without
// saving, when songID is unknown.
func (m *Manager) UpdateSong(ctx context.Context, songID string, u SongUpdate) (bool, error) {
	var found bool
	err := m.do(ctx, func() error {
		var err error
		found, err = m.store.Update(songID, u)
		if err != nil || !found {
			return err
		}
		return m.store.Save()
	})
	return found, err
}

// AddExpense logs a dated cost against the song with the given title
func (m *Manager) AddExpense(ctx context.Context, title string, amount float64, category string) (*Song, error) {
	var out *Song
	err := m.do(ctx, func() error {
		song := m.store.Catalog().FindByTitle(title)
		if song == nil {
			return fmt.Errorf("%w: song '%s'", util.ErrNotFound, title)
		}
		song.Revenue.Expenses = append(song.Revenue.Expenses, Expense{
			Date:     m.cfg.Now().Format("2006-01-02"),
			Amount:   amount,
			Category: strings.TrimSpace(category),
		})
		out = cloneSong(song)
		return m.store.Save()
	})
	return out, err
}

// PitchLog is the outcome of recording a pitch
type PitchLog struct {
	Song       *Song
	Supervisor *Supervisor
	Created    bool // supervisor did not exist before this pitch
}

// LogPitch records a pitch of the titled song to the named supervisor,
// creating the supervisor on first contact
func (m *Manager) LogPitch(ctx context.Context, title, supervisorName string) (*PitchLog, error) {
	var out *PitchLog
	err := m.do(ctx, func() error {
		song := m.store.Catalog().FindByTitle(title)
		if song == nil {
			return fmt.Errorf("%w: song '%s'", util.ErrNotFound, title)
		}
		name := strings.TrimSpace(supervisorName)
		if name == "" {
			return fmt.Errorf("%w: supervisor name is required", util.ErrValidation)
		}

		sup := m.supervisors.find(name)
		created := sup == nil
		if created {
			sup = &Supervisor{
				ID:      "SUP-" + strings.ToUpper(uuid.NewString()[:8]),
				Name:    name,
				Email:   "TBD",
				History: []PitchEntry{},
			}
			m.supervisors.book.Supervisors = append(m.supervisors.book.Supervisors, sup)
		}
		sup.History = append(sup.History, PitchEntry{
			Date:    m.cfg.Now().Format("2006-01-02"),
			Song:    song.Title,
			Project: "General Pitch",
		})

		if err := m.supervisors.save(); err != nil {
			return fmt.Errorf("failed to save supervisors: %w", err)
		}
		supCopy := *sup
		supCopy.History = append([]PitchEntry(nil), sup.History...)
		out = &PitchLog{Song: cloneSong(song), Supervisor: &supCopy, Created: created}
		return nil
	})
	return out, err
}

// IngestedTrack is what the ingestion pipeline knows about an uploaded file
type IngestedTrack struct {
	Title           string
	Artist          string
	Album           string
	Genre           string
	BPM             int
	DurationSeconds int
	RemoteKey       string
	Source          string
}

// IngestSong catalogs an uploaded track. The song id and legacy code come
// from the same allocators as hand-added songs. If no code can be found the
// song is still cataloged with an empty code, since the upload already
// happened.
func (m *Manager) IngestSong(ctx context.Context, t IngestedTrack) (*Song, error) {
	var out *Song
	err := m.do(ctx, func() error {
		doc := m.store.Catalog()
		now := m.cfg.Now()
		stamp := now.Format(time.RFC3339)

		actID := m.acts.ActIDForArtist(t.Artist)
		writers := []WriterShare{}
		if _, ok := m.acts.Resolve(actID); ok {
			writers = m.acts.Splits(actID)
		}
		genre := t.Genre
		if genre == "" {
			genre = "Unknown"
		}

		code, err := m.alloc.Allocate(t.Title)
		if err != nil {
			if !errors.Is(err, util.ErrAllocationExhausted) {
				return err
			}
			util.WarnLog("No legacy code available for %q, cataloging without one", t.Title)
			code = ""
		}

		song := &Song{
			SongID:     identity.NextSongID(doc.SongIDs(), now.Year()),
			Title:      t.Title,
			AltTitles:  []string{},
			ActID:      actID,
			Artist:     t.Artist,
			Album:      t.Album,
			Writers:    writers,
			LegacyCode: code,
			Status:     StatusFinished,
			MusicalInfo: &MusicalInfo{
				Genre:           genre,
				BPM:             t.BPM,
				TimeSignature:   "4/4",
				DurationSeconds: t.DurationSeconds,
			},
			SyncMetadata: &SyncMetadata{
				Moods: []string{}, Themes: []string{}, Keywords: []string{},
				SimilarArtists: []string{}, UseCases: []string{}, OneStop: true,
			},
			Dates:        Dates{Created: stamp, DemoCompleted: stamp, Mastered: stamp, LastModified: stamp},
			Registration: Registration{RegisteredWith: []string{}},
			Rights: &Rights{
				MasterOwner:  "Ridgemont Studio",
				Publisher:    "Ridgemont Studio",
				Territories:  []string{"Worldwide"},
				Restrictions: []string{},
				Licenses:     []string{},
			},
			Revenue: Revenue{Expenses: []Expense{}},
			Links:   Links{R2Path: t.RemoteKey},
			Events: []SongEvent{{
				Timestamp:   stamp,
				EventType:   "created",
				Description: "Auto-uploaded from " + t.Source,
				User:        "System",
			}},
			SyncChecklist: &SyncChecklist{
				SyncStatus:        "available",
				MasterCleared:     true,
				PublishingCleared: true,
				OneStopAvailable:  true,
			},
			Deployments: EmptyDeployments(),
		}

		doc.Songs = append(doc.Songs, song)
		out = cloneSong(song)
		return m.store.Save()
	})
	return out, err
}

// Backup writes a snapshot of the catalog now and returns its path
func (m *Manager) Backup(ctx context.Context) (string, error) {
	var path string
	err := m.do(ctx, func() error {
		var err error
		path, err = m.store.Backup()
		return err
	})
	return path, err
}

// Summary counts songs by act and status
type Summary struct {
	TotalSongs int
	ByAct      map[string]int
	ByStatus   map[string]int
}

// ActIDs returns the act ids in Summary sorted by name
func (s Summary) ActIDs() []string {
	return sortedKeys(s.ByAct)
}

// Statuses returns the statuses in Summary sorted by name
func (s Summary) Statuses() []string {
	return sortedKeys(s.ByStatus)
}

// CatalogSummary counts the catalog by act and by status
func (m *Manager) CatalogSummary(ctx context.Context) (Summary, error) {
	sum := Summary{ByAct: map[string]int{}, ByStatus: map[string]int{}}
	err := m.do(ctx, func() error {
		for _, s := range m.store.Catalog().Songs {
			sum.TotalSongs++
			act := s.ActID
			if act == "" {
				act = "Unknown"
			}
			status := string(s.Status)
			if status == "" {
				status = "unknown"
			}
			sum.ByAct[act]++
			sum.ByStatus[status]++
		}
		return nil
	})
	return sum, err
}

// RevenueSummary holds catalog-wide earnings
type RevenueSummary struct {
	TotalRevenue  float64
	TotalExpenses float64
}

// RevenueSummary sums earnings and logged expenses across the catalog
func (m *Manager) RevenueSummary(ctx context.Context) (RevenueSummary, error) {
	var rs RevenueSummary
	err := m.do(ctx, func() error {
		for _, s := range m.store.Catalog().Songs {
			rs.TotalRevenue += s.Revenue.TotalEarned
			for _, e := range s.Revenue.Expenses {
				rs.TotalExpenses += e.Amount
			}
		}
		return nil
	})
	return rs, err
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func displayCode(code string) string {
	if code == "" {
		return "none"
	}
	return code
}

func cloneSong(s *Song) *Song {
	doc := &Catalog{Songs: []*Song{s}}
	c, err := doc.Clone()
	if err != nil || len(c.Songs) != 1 {
		cp := *s
		return &cp
	}
	return c.Songs[0]
}

// Listing builds the public track listing from the current catalog
func (m *Manager) Listing(ctx context.Context) (Listing, error) {
	var l Listing
	err := m.do(ctx, func() error {
		l = BuildListing(m.store.Catalog(), m.cfg.Now())
		return nil
	})
	return l, err
}
