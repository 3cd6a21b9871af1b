// Package ingest moves audio files from the watch folder into the catalog:
// settle, extract, upload, catalog, publish, relocate.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/ridgemont-catalog/internal/catalog"
	"github.com/franz/ridgemont-catalog/internal/ledger"
	"github.com/franz/ridgemont-catalog/internal/meta"
	"github.com/franz/ridgemont-catalog/internal/remote"
	"github.com/franz/ridgemont-catalog/internal/report"
	"github.com/franz/ridgemont-catalog/internal/util"
)

// State is a step of the per-file state machine
type State string

const (
	StateDetected       State = "detected"
	StateStabilityCheck State = "stability_check"
	StateExtracting     State = "extracting"
	StatePathBuilding   State = "path_building"
	StateDedupCheck     State = "dedup_check"
	StateUploading      State = "uploading"
	StateCataloging     State = "cataloging"
	StatePublishing     State = "publishing_listing"
	StateRelocating     State = "relocating"
	StateDone           State = "done"
	StateFailed         State = "failed"
	// StateAbandoned ends a run whose file vanished before it settled
	StateAbandoned State = "abandoned"
)

// ErrInFlight is returned when the path is already being processed
var ErrInFlight = errors.New("already in flight")

// maxDedupAttempts bounds the counter appended after the date suffix
const maxDedupAttempts = 100

// Cataloger records uploaded tracks and produces the public listing
type Cataloger interface {
	IngestSong(ctx context.Context, t catalog.IngestedTrack) (*catalog.Song, error)
	Listing(ctx context.Context) (catalog.Listing, error)
}

// Extractor reads metadata from an audio file
type Extractor interface {
	Extract(ctx context.Context, path string) *meta.Record
}

// Config holds pipeline configuration
type Config struct {
	Catalog   Cataloger
	Remote    remote.Store
	Extractor Extractor
	Ledger    *ledger.Store // nil disables run history
	Logger    *report.EventLogger

	// CompletedDir receives processed source files
	CompletedDir string

	// SettleDelay is waited before the first size reading, RecheckDelay
	// between the first and second, GrowDelay between later readings of
	// a file that is still growing. MaxSettle bounds the whole check.
	SettleDelay  time.Duration
	RecheckDelay time.Duration
	GrowDelay    time.Duration
	MaxSettle    time.Duration

	RetryConfig *util.RetryConfig // relocation moves (nil = no retries)

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Result describes the outcome of one file
type Result struct {
	RunID     string
	SrcPath   string
	State     State
	RemoteKey string
	SongID    string
	DestPath  string
	Bytes     int64
	Err       error
}

// Pipeline runs files through the ingestion state machine. It is safe for
// concurrent use; a path is processed by at most one caller at a time.
type Pipeline struct {
	cfg Config

	mu       sync.Mutex
	inFlight map[string]struct{}

	// keyMu serializes dedup checks; reserved holds keys chosen by runs
	// whose upload has not finished
	keyMu    sync.Mutex
	reserved map[string]struct{}
}

// New creates a pipeline, filling in default delays
func New(cfg *Config) *Pipeline {
	c := *cfg
	if c.SettleDelay <= 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.RecheckDelay <= 0 {
		c.RecheckDelay = time.Second
	}
	if c.GrowDelay <= 0 {
		c.GrowDelay = 3 * time.Second
	}
	if c.MaxSettle <= 0 {
		c.MaxSettle = 2 * time.Minute
	}
	if c.RetryConfig == nil {
		c.RetryConfig = util.NoRetry()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
	return &Pipeline{cfg: c, inFlight: make(map[string]struct{}), reserved: make(map[string]struct{})}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Accepts reports whether path is a candidate for ingestion: a supported
// audio file that is not hidden, not a partial download and not already
// inside the completed folder
func (p *Pipeline) Accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".part") {
		return false
	}
	if !meta.IsSupported(path) {
		return false
	}
	if p.cfg.CompletedDir != "" {
		if rel, err := filepath.Rel(p.cfg.CompletedDir, path); err == nil && !strings.HasPrefix(rel, "..") {
			return false
		}
	}
	return true
}

func (p *Pipeline) acquire(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[path]; busy {
		return false
	}
	p.inFlight[path] = struct{}{}
	return true
}

func (p *Pipeline) release(path string) {
	p.mu.Lock()
	delete(p.inFlight, path)
	p.mu.Unlock()
}

// run carries the state of one file through the pipeline
type run struct {
	rec    *ledger.Run
	result *Result
}

func (p *Pipeline) transition(r *run, s State) {
	r.result.State = s
	r.rec.State = string(s)
	if err := p.cfg.Ledger.UpdateRun(r.rec); err != nil {
		util.WarnLog("Failed to record state %s for %s: %v", s, r.result.SrcPath, err)
	}
	p.cfg.Logger.LogState(r.rec.ID, r.result.SrcPath, string(s))
	util.DebugLog("[%s] %s", s, filepath.Base(r.result.SrcPath))
}

// finish moves the run into a terminal state
func (p *Pipeline) finish(r *run, s State, err error) (*Result, error) {
	r.result.Err = err
	if err != nil {
		r.rec.Error = err.Error()
	}
	r.rec.CompletedAt = p.cfg.Now()
	p.transition(r, s)
	return r.result, err
}

func (p *Pipeline) fail(r *run, event report.EventType, err error) (*Result, error) {
	util.ErrorLog("Failed to process %s: %v", filepath.Base(r.result.SrcPath), err)
	p.cfg.Logger.LogError(event, r.rec.ID, r.result.SrcPath, err)
	return p.finish(r, StateFailed, err)
}

// Process runs one file through the pipeline. Failures leave the source
// file where it was so it can be re-presented. A file that disappears
// while settling is abandoned without error.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if !p.acquire(abs) {
		util.DebugLog("Skipping %s: already in flight", abs)
		return nil, ErrInFlight
	}
	defer p.release(abs)

	r := &run{
		rec:    &ledger.Run{SrcPath: abs, State: string(StateDetected), StartedAt: p.cfg.Now()},
		result: &Result{SrcPath: abs, State: StateDetected},
	}
	if err := p.cfg.Ledger.StartRun(r.rec); err != nil {
		util.WarnLog("Failed to record run for %s: %v", abs, err)
	}
	r.result.RunID = r.rec.ID
	p.cfg.Logger.Log(&report.Event{Level: report.LevelInfo, Event: report.EventDetect, RunID: r.rec.ID, SrcPath: abs})
	util.InfoLog("Processing: %s", filepath.Base(abs))

	// stability
	p.transition(r, StateStabilityCheck)
	size, err := p.waitStable(ctx, abs)
	if errors.Is(err, os.ErrNotExist) {
		util.InfoLog("File disappeared before it settled, skipping: %s", filepath.Base(abs))
		return p.finish(r, StateAbandoned, nil)
	}
	if err != nil {
		return p.fail(r, report.EventStability, err)
	}
	r.rec.SizeBytes = size
	r.result.Bytes = size

	if sum, err := util.ContentHash(abs); err != nil {
		util.WarnLog("Could not hash %s: %v", abs, err)
	} else {
		r.rec.SHA1 = sum
		if prev, err := p.cfg.Ledger.FindDoneBySHA1(sum, string(StateDone)); err == nil && prev != nil {
			if prev.SrcPath == abs && strings.HasPrefix(prev.Error, notRelocated) {
				return p.resumeRelocation(r, prev)
			}
			util.WarnLog("Same content was ingested before as %s (%s)", prev.RemoteKey, prev.SongID)
		}
	}

	// extraction
	p.transition(r, StateExtracting)
	rec := p.cfg.Extractor.Extract(ctx, abs)
	util.InfoLog("  %q by %s on %s (%s)", rec.Title, rec.Artist, rec.Album, catalog.FormatDuration(rec.DurationSeconds))

	// remote key
	p.transition(r, StatePathBuilding)
	ext := filepath.Ext(abs)
	key := meta.RemoteKey(rec, ext, "")

	p.transition(r, StateDedupCheck)
	key, err = p.dedupKey(ctx, r, rec, ext, key)
	if err != nil {
		return p.fail(r, report.EventDedup, err)
	}
	defer p.unreserve(key)
	r.rec.RemoteKey = key
	r.result.RemoteKey = key

	// upload
	p.transition(r, StateUploading)
	start := time.Now()
	if !p.cfg.Remote.UploadFile(ctx, abs, key, meta.ContentType(abs)) {
		err := fmt.Errorf("%w: upload of %s to %s failed", util.ErrTransient, filepath.Base(abs), key)
		p.cfg.Logger.LogUpload(r.rec.ID, abs, key, 0, time.Since(start), err)
		return p.fail(r, report.EventUpload, err)
	}
	p.cfg.Logger.LogUpload(r.rec.ID, abs, key, size, time.Since(start), nil)
	util.InfoLog("  Uploaded %s to %s", humanize.Bytes(uint64(size)), key)

	// catalog
	p.transition(r, StateCataloging)
	// the upload has happened, so the catalog write must not be abandoned
	// halfway by a cancelled context
	song, err := p.cfg.Catalog.IngestSong(context.WithoutCancel(ctx), catalog.IngestedTrack{
		Title:           rec.Title,
		Artist:          rec.Artist,
		Album:           rec.Album,
		Genre:           rec.Genre,
		BPM:             rec.BPM,
		DurationSeconds: rec.DurationSeconds,
		RemoteKey:       key,
		Source:          filepath.Base(abs),
	})
	if err != nil {
		util.ErrorLog("CATALOG WRITE FAILED after upload; remote object %s is not cataloged: %v", key, err)
		p.cfg.Logger.LogCatalog(r.rec.ID, abs, key, "", err)
		return p.finish(r, StateFailed, fmt.Errorf("catalog write failed, orphaned %s: %w", key, err))
	}
	r.rec.SongID = song.SongID
	r.result.SongID = song.SongID
	p.cfg.Logger.LogCatalog(r.rec.ID, abs, key, song.SongID, nil)
	util.InfoLog("  Cataloged as %s (%s)", song.SongID, song.ActID)

	// listing
	p.transition(r, StatePublishing)
	p.publish(ctx, r.rec.ID)

	// relocation
	if !p.relocateRun(r, abs) {
		util.WarnLog("%s uploaded as %s; the source stays in the watch folder", rec.Title, song.SongID)
		return p.finish(r, StateDone, nil)
	}

	util.SuccessLog("%s uploaded as %s", rec.Title, song.SongID)
	return p.finish(r, StateDone, nil)
}

// notRelocated prefixes the ledger note of a done run whose source could
// not be moved; presenting the same file again only retries the move
const notRelocated = "source not relocated"

// relocateRun moves the source of a cataloged run. A failed move is noted
// on the run, which still counts as done.
func (p *Pipeline) relocateRun(r *run, abs string) bool {
	p.transition(r, StateRelocating)
	dest, err := p.relocate(abs)
	p.cfg.Logger.LogRelocate(r.rec.ID, abs, dest, err)
	if err != nil {
		util.WarnLog("Could not move %s into %s: %v", filepath.Base(abs), p.cfg.CompletedDir, err)
		r.rec.Error = fmt.Sprintf("%s: %v", notRelocated, err)
		return false
	}
	r.rec.Error = ""
	r.result.DestPath = dest
	return true
}

// resumeRelocation finishes a file that was already uploaded and cataloged
// by prev but never left the watch folder
func (p *Pipeline) resumeRelocation(r *run, prev *ledger.Run) (*Result, error) {
	util.InfoLog("  Already cataloged as %s (%s), moving it", prev.SongID, prev.RemoteKey)
	r.rec.RemoteKey, r.result.RemoteKey = prev.RemoteKey, prev.RemoteKey
	r.rec.SongID, r.result.SongID = prev.SongID, prev.SongID
	// nothing is uploaded by this run
	r.rec.SizeBytes, r.result.Bytes = 0, 0
	if !p.relocateRun(r, r.result.SrcPath) {
		return p.finish(r, StateDone, nil)
	}
	util.SuccessLog("%s moved to %s", filepath.Base(r.result.SrcPath), r.result.DestPath)
	return p.finish(r, StateDone, nil)
}

// waitStable sleeps, then compares the file size across a short delay.
// While the size keeps changing it waits longer, up to MaxSettle.
func (p *Pipeline) waitStable(ctx context.Context, path string) (int64, error) {
	if err := p.cfg.Sleep(ctx, p.cfg.SettleDelay); err != nil {
		return 0, err
	}
	prev, err := util.FileSize(path)
	if err != nil {
		return 0, err
	}

	delay := p.cfg.RecheckDelay
	var waited time.Duration
	for {
		if err := p.cfg.Sleep(ctx, delay); err != nil {
			return 0, err
		}
		waited += delay
		size, err := util.FileSize(path)
		if err != nil {
			return 0, err
		}
		if size == prev {
			return size, nil
		}
		if waited >= p.cfg.MaxSettle {
			return 0, fmt.Errorf("%w: %s still changing after %s", util.ErrUnstable, filepath.Base(path), waited)
		}
		util.DebugLog("%s still growing (%s -> %s)", filepath.Base(path),
			humanize.Bytes(uint64(prev)), humanize.Bytes(uint64(size)))
		prev = size
		delay = p.cfg.GrowDelay
	}
}

func (p *Pipeline) taken(ctx context.Context, key string) bool {
	if _, ok := p.reserved[key]; ok {
		return true
	}
	return p.cfg.Remote.Exists(ctx, key)
}

func (p *Pipeline) unreserve(key string) {
	p.keyMu.Lock()
	delete(p.reserved, key)
	p.keyMu.Unlock()
}

// dedupKey returns a key that neither exists remotely nor is reserved by
// a concurrent run, and reserves it. A taken key gets the date appended
// to the title, then a counter after the date.
func (p *Pipeline) dedupKey(ctx context.Context, r *run, rec *meta.Record, ext, key string) (string, error) {
	p.keyMu.Lock()
	defer p.keyMu.Unlock()

	if !p.taken(ctx, key) {
		p.reserved[key] = struct{}{}
		return key, nil
	}
	date := p.cfg.Now().Format("20060102")
	for i := 1; i <= maxDedupAttempts; i++ {
		suffix := date
		if i > 1 {
			suffix = fmt.Sprintf("%s-%d", date, i)
		}
		candidate := meta.RemoteKey(rec, ext, suffix)
		if !p.taken(ctx, candidate) {
			p.reserved[candidate] = struct{}{}
			util.WarnLog("  [DUPLICATE] %s exists, using %s", key, candidate)
			p.cfg.Logger.LogDedup(r.rec.ID, r.result.SrcPath, key, candidate)
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free remote key for %s", util.ErrAllocationExhausted, key)
}

// publish regenerates the public listing. Failure is logged only: the
// listing is derived data and the next run rewrites it.
func (p *Pipeline) publish(ctx context.Context, runID string) {
	if err := Publish(ctx, p.cfg.Catalog, p.cfg.Remote); err != nil {
		util.WarnLog("  %v", err)
		p.cfg.Logger.LogError(report.EventPublish, runID, "", err)
		return
	}
	p.cfg.Logger.Log(&report.Event{Level: report.LevelInfo, Event: report.EventPublish, RunID: runID, RemoteKey: catalog.ListingKey})
}

// Publish uploads the listing built from the current catalog
func Publish(ctx context.Context, c Cataloger, store remote.Store) error {
	listing, err := c.Listing(ctx)
	if err != nil {
		return fmt.Errorf("failed to build listing: %w", err)
	}
	if !store.UploadJSON(ctx, listing, catalog.ListingKey) {
		return fmt.Errorf("%w: failed to publish %s", util.ErrTransient, catalog.ListingKey)
	}
	util.DebugLog("Published %s with %d tracks", catalog.ListingKey, len(listing.Tracks))
	return nil
}

// relocate moves src into the completed folder. An existing file there
// is kept and the new one gets a timestamp suffix.
func (p *Pipeline) relocate(src string) (string, error) {
	dir := p.cfg.CompletedDir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(src), "Completed")
	}
	base := filepath.Base(src)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	dest := filepath.Join(dir, base)
	if exists(dest) {
		stamp := p.cfg.Now().Format("20060102_150405")
		dest = filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, stamp, ext))
		for i := 2; exists(dest); i++ {
			dest = filepath.Join(dir, fmt.Sprintf("%s_%s_%d%s", stem, stamp, i, ext))
		}
	}
	if err := util.MoveFile(src, dest, p.cfg.RetryConfig); err != nil {
		return dest, err
	}
	util.InfoLog("  Moved to %s", dest)
	return dest, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
