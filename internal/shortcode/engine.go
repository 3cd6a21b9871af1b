package shortcode

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/franz/ridgemont-catalog/internal/catalog"
	"github.com/franz/ridgemont-catalog/internal/identity"
	"github.com/franz/ridgemont-catalog/internal/ledger"
	"github.com/franz/ridgemont-catalog/internal/pitch"
	"github.com/franz/ridgemont-catalog/internal/report"
	"github.com/franz/ridgemont-catalog/internal/util"
)

// RatePerStream is the flat per-stream royalty used by Forecast
const RatePerStream = 0.004

// listLimit caps the rows printed by "<Act> List"
const listLimit = 10

// Usage strings returned for malformed commands
const (
	UsagePitch    = `Format: > Pitch "Song Title" "Supervisor Name"`
	UsageCost     = `Format: > Cost "Title" 150 Category`
	UsageForecast = `Format: > Forecast "Title" 1m`
	UsageNew      = `Format: > FC New "Title" [CODE] [status]`
	UsageAct      = `Format: > FC New "Title" [CODE] [status] | > FC List`
)

// Catalog is the subset of the catalog writer the commands use
type Catalog interface {
	Acts() *catalog.Acts
	AddSong(ctx context.Context, req catalog.NewSong) (*catalog.Song, error)
	AddExpense(ctx context.Context, title string, amount float64, category string) (*catalog.Song, error)
	LogPitch(ctx context.Context, title, supervisor string) (*catalog.PitchLog, error)
	FindSongByTitle(ctx context.Context, title string) (*catalog.Song, error)
	SongsByAct(ctx context.Context, actID string) ([]*catalog.Song, error)
	Backup(ctx context.Context) (string, error)
}

// Config holds engine configuration
type Config struct {
	Catalog Catalog
	Pitch   *pitch.Generator
	Ledger  *ledger.Store // nil disables command history
	Logger  *report.EventLogger
}

// Engine executes shortcodes. Every outcome, including failures, is a
// message for the person who typed the command.
type Engine struct {
	cfg Config
}

// New creates an engine
func New(cfg *Config) *Engine {
	return &Engine{cfg: *cfg}
}

// Execute runs one shortcode line and returns its message
func (e *Engine) Execute(ctx context.Context, line string) string {
	cmd, err := Parse(line)
	var verb, result string
	switch {
	case errors.Is(err, ErrUnterminatedQuote):
		result = "Invalid command: unterminated quote."
	case err != nil:
		result = "Invalid command."
	default:
		verb = cmd.Verb
		result = e.dispatch(ctx, cmd)
	}

	if err := e.cfg.Ledger.LogCommand(&ledger.Command{Command: strings.TrimSpace(line), Verb: verb, Result: result}); err != nil {
		util.WarnLog("Failed to record shortcode: %v", err)
	}
	e.cfg.Logger.LogShortcode(strings.TrimSpace(line), verb, result)
	util.DebugLog("shortcode %q -> %q", line, result)
	return result
}

func (e *Engine) dispatch(ctx context.Context, cmd *Command) string {
	switch cmd.Verb {
	case "pitch":
		return e.pitch(ctx, cmd.Args)
	case "cost":
		return e.cost(ctx, cmd.Args)
	case "forecast":
		return e.forecast(ctx, cmd.Args)
	case "sync":
		return "Excel Sync Stub Executed."
	case "backup":
		path, err := e.cfg.Catalog.Backup(ctx)
		if err != nil {
			return "Backup failed: " + err.Error()
		}
		return "Backup: " + path
	}

	act, ok := e.cfg.Catalog.Acts().Resolve(cmd.Word)
	if !ok {
		return "Unknown Act: " + cmd.Word
	}
	if len(cmd.Args) == 0 {
		return UsageAct
	}
	switch strings.ToLower(cmd.Args[0]) {
	case "new":
		return e.newSong(ctx, act, cmd.Args[1:])
	case "list":
		return e.list(ctx, act)
	}
	return "Unknown command."
}

// errorMessage turns a catalog error into the text shown to the user
func errorMessage(err error) string {
	var conflict *catalog.CodeConflictError
	switch {
	case errors.As(err, &conflict):
		return fmt.Sprintf("Error: Code '%s' already used by '%s'", conflict.Code, conflict.Title)
	case errors.Is(err, util.ErrAllocationExhausted):
		return "Error: no free legacy code could be allocated; pass one explicitly."
	case errors.Is(err, util.ErrClosed), errors.Is(err, context.Canceled):
		return "Error: catalog is closed."
	}
	return "Error: " + err.Error()
}

func notFound(title string) string {
	return fmt.Sprintf("Error: Song '%s' not found.", title)
}

func (e *Engine) pitch(ctx context.Context, args []string) string {
	if len(args) != 2 || args[0] == "" || args[1] == "" {
		return UsagePitch
	}
	title, supervisor := args[0], args[1]

	logged, err := e.cfg.Catalog.LogPitch(ctx, title, supervisor)
	if errors.Is(err, util.ErrNotFound) {
		return notFound(title)
	}
	if err != nil {
		return errorMessage(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Pitch Generated for %s**", logged.Supervisor.Name)
	if logged.Created {
		b.WriteString(" (New Contact Created)")
	}
	b.WriteString("\n---------------------------------------------------\n")

	if e.cfg.Pitch == nil {
		b.WriteString("Logged: Added to supervisor history.")
		return b.String()
	}
	email, err := e.cfg.Pitch.Draft(logged.Song, logged.Supervisor)
	if err != nil {
		return errorMessage(err)
	}
	fmt.Fprintf(&b, "**To:** %s\n**Subject:** %s\n\n%s", email.To, email.Subject, email.Body)
	b.WriteString("---------------------------------------------------\n")
	if page, err := e.cfg.Pitch.WritePage(logged.Song, logged.Supervisor); err != nil {
		util.WarnLog("Pitch page not written: %v", err)
		b.WriteString("**Pitch Page:** not written (" + err.Error() + ")\n")
	} else {
		b.WriteString("**Pitch Page:** " + page + "\n")
	}
	b.WriteString("**Logged:** Added to supervisor history.")
	return b.String()
}

func (e *Engine) cost(ctx context.Context, args []string) string {
	if len(args) < 3 {
		return UsageCost
	}
	title := args[0]
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil || amount < 0 {
		return UsageCost
	}
	category := strings.Join(args[2:], " ")

	if _, err := e.cfg.Catalog.AddExpense(ctx, title, amount, category); err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return notFound(title)
		}
		return errorMessage(err)
	}
	return fmt.Sprintf("Logged $%s for %s.", humanize.FormatFloat("#,###.##", amount), title)
}

var streamsPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)([kKmM]?)$`)

// ParseStreams converts "2m", "500k" or "250" to a stream count. A bare
// number counts thousands.
func ParseStreams(s string) (float64, bool) {
	m := streamsPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if strings.EqualFold(m[2], "m") {
		return n * 1_000_000, true
	}
	return n * 1_000, true
}

// Forecast returns the royalty estimate for a number of streams
func Forecast(streams float64) float64 {
	return streams * RatePerStream
}

func (e *Engine) forecast(ctx context.Context, args []string) string {
	if len(args) != 2 {
		return UsageForecast
	}
	streams, ok := ParseStreams(args[1])
	if !ok {
		return UsageForecast
	}
	if _, err := e.cfg.Catalog.FindSongByTitle(ctx, args[0]); err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return notFound(args[0])
		}
		return errorMessage(err)
	}
	return fmt.Sprintf("Forecast (%s): $%s", args[1], humanize.FormatFloat("#,###.##", Forecast(streams)))
}

func (e *Engine) newSong(ctx context.Context, act *catalog.Act, args []string) string {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return UsageNew
	}
	req := catalog.NewSong{Title: args[0], ActID: act.ID, Status: catalog.StatusIdea}

	// a four-letter uppercase token is a code; "DEMO" counts as a code,
	// "demo" or "Demo" as a status
	for _, tok := range args[1:] {
		if identity.LooksLikeCode(tok) {
			req.LegacyCode = tok
			continue
		}
		if st, ok := catalog.ParseStatus(tok); ok {
			req.Status = st
			continue
		}
		return fmt.Sprintf("Error: unexpected argument '%s'. %s", tok, UsageNew)
	}

	song, err := e.cfg.Catalog.AddSong(ctx, req)
	if err != nil {
		return errorMessage(err)
	}
	msg := fmt.Sprintf("Added '%s' to %s as %s", song.Title, song.ActID, song.SongID)
	if song.LegacyCode != "" {
		msg += fmt.Sprintf(" (Code: %s)", song.LegacyCode)
	}
	return msg
}

func (e *Engine) list(ctx context.Context, act *catalog.Act) string {
	songs, err := e.cfg.Catalog.SongsByAct(ctx, act.ID)
	if err != nil {
		return errorMessage(err)
	}
	if len(songs) == 0 {
		return "No songs."
	}
	if len(songs) > listLimit {
		songs = songs[:listLimit]
	}
	return SongTable(songs)
}

// SongTable renders songs as a Markdown table of title, code and status
func SongTable(songs []*catalog.Song) string {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"Title", "Code", "Status"})
	for _, s := range songs {
		code := s.LegacyCode
		if code == "" {
			code = "-"
		}
		tw.AppendRow(table.Row{s.Title, code, s.Status})
	}
	return tw.RenderMarkdown()
}
