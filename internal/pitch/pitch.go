// Package pitch renders the page and email that accompany a pitch to a
// music supervisor
package pitch

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/franz/ridgemont-catalog/internal/catalog"
)

// DefaultMood is used when a song has no moods tagged
const DefaultMood = "Energy"

// Config holds generator configuration
type Config struct {
	Dir    string // pitch pages are written here
	Acts   *catalog.Acts
	Sender string // signs the email
	Studio string
	Now    func() time.Time
}

// Generator writes pitch pages and drafts emails
type Generator struct {
	cfg Config
}

// New creates a generator
func New(cfg *Config) *Generator {
	c := *cfg
	if c.Acts == nil {
		c.Acts = catalog.DefaultActs()
	}
	if c.Sender == "" {
		c.Sender = "John York"
	}
	if c.Studio == "" {
		c.Studio = "Ridgemont Studio"
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Generator{cfg: c}
}

// Email is a drafted pitch message
type Email struct {
	To      string
	Subject string
	Body    string
}

// PageName returns the file name of the pitch page for a song and
// supervisor: pitch_<song id>_<name without spaces>.html
func PageName(songID, supervisor string) string {
	return fmt.Sprintf("pitch_%s_%s.html", songID, strings.ReplaceAll(supervisor, " ", ""))
}

type view struct {
	Title      string
	Supervisor string
	FirstName  string
	Act        string
	BPM        string
	Mood       string
	MoodLower  string
	Moods      string
	Status     string
	Year       int
	Sender     string
	Studio     string
}

func (g *Generator) view(song *catalog.Song, sup *catalog.Supervisor) view {
	bpm := "N/A"
	if song.MusicalInfo != nil && song.MusicalInfo.BPM > 0 {
		bpm = strconv.Itoa(song.MusicalInfo.BPM)
	}
	mood := song.SyncMetadata.FirstMood(DefaultMood)
	var moods []string
	if song.SyncMetadata != nil {
		moods = song.SyncMetadata.Moods
	}
	first := sup.Name
	if fields := strings.Fields(sup.Name); len(fields) > 0 {
		first = fields[0]
	}
	status := string(song.Status)
	if status == "" {
		status = string(catalog.StatusMastered)
	}
	return view{
		Title:      song.Title,
		Supervisor: sup.Name,
		FirstName:  first,
		Act:        g.cfg.Acts.DisplayName(song.ActID),
		BPM:        bpm,
		Mood:       mood,
		MoodLower:  strings.ToLower(mood),
		Moods:      strings.Join(moods, ", "),
		Status:     status,
		Year:       g.cfg.Now().Year(),
		Sender:     g.cfg.Sender,
		Studio:     g.cfg.Studio,
	}
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}} | {{.Studio}}</title></head>
<body style="font-family:sans-serif; padding:40px; background:#f4f4f4;">
<div style="max-width:600px; margin:auto; background:white; padding:30px; border-radius:10px;">
  <h1 style="color:#333;">{{.Title}}</h1>
  <p style="color:#666;">Prepared exclusively for <strong>{{.Supervisor}}</strong></p>
  <hr>
  <p><strong>Artist:</strong> {{.Act}}</p>
  <p><strong>BPM:</strong> {{.BPM}}</p>
  <p><strong>Moods:</strong> {{.Moods}}</p>
  <div style="background:#e8f0fe; padding:15px; border-radius:5px; margin-top:20px;">
    <strong>Sync Status:</strong> One-Stop | {{.Status}}
  </div>
  <p style="margin-top:30px; font-size:12px; color:#999;">&copy; {{.Year}} {{.Studio}}</p>
</div>
</body></html>
`))

var emailTemplate = texttemplate.Must(texttemplate.New("email").Parse(`Hi {{.FirstName}},

Knowing you often look for {{.MoodLower}} tracks, I wanted to share "{{.Title}}" from my project {{.Act}}.

It's a {{.Status}} track, cleared one-stop and ready for picture.

LISTEN HERE: [Link to Stream]
METADATA: One-Stop | {{.BPM}} BPM | {{.Act}}

Best,
{{.Sender}}
{{.Studio}}
`))

// WritePage renders the pitch page into the pitch directory and returns
// its path
func (g *Generator) WritePage(song *catalog.Song, sup *catalog.Supervisor) (string, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, g.view(song, sup)); err != nil {
		return "", fmt.Errorf("failed to render pitch page: %w", err)
	}
	if err := os.MkdirAll(g.cfg.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create pitch directory: %w", err)
	}
	path := filepath.Join(g.cfg.Dir, PageName(song.SongID, sup.Name))
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write pitch page: %w", err)
	}
	return path, nil
}

// Draft composes the pitch email
func (g *Generator) Draft(song *catalog.Song, sup *catalog.Supervisor) (Email, error) {
	v := g.view(song, sup)
	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, v); err != nil {
		return Email{}, fmt.Errorf("failed to draft email: %w", err)
	}
	email := sup.Email
	if email == "" {
		email = "TBD"
	}
	return Email{
		To:      fmt.Sprintf("%s <%s>", sup.Name, email),
		Subject: fmt.Sprintf("%s track for your consideration: \"%s\"", v.Mood, song.Title),
		Body:    body.String(),
	}, nil
}
