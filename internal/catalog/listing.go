package catalog

import (
	"fmt"
	"time"
)

// ListingKey is the remote key of the public track listing
const ListingKey = "tracks.json"

// Listing is the public track listing. It is derived from the catalog and
// can be rebuilt at any time.
type Listing struct {
	LastUpdated string         `json:"lastUpdated"`
	Tracks      []ListingTrack `json:"tracks"`
}

// ListingTrack is one published track
type ListingTrack struct {
	ID       string  `json:"id"`
	File     string  `json:"file"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Album    string  `json:"album"`
	Duration string  `json:"duration"`
	Year     *string `json:"year"`
	Genre    string  `json:"genre"`
}

// BuildListing projects every finished or released song that has an
// uploaded asset
func BuildListing(doc *Catalog, now time.Time) Listing {
	l := Listing{LastUpdated: now.Format("2006-01-02"), Tracks: []ListingTrack{}}
	for _, s := range doc.Songs {
		if s.Links.R2Path == "" {
			continue
		}
		if s.Status != StatusFinished && s.Status != StatusReleased {
			continue
		}
		t := ListingTrack{
			ID:     s.SongID,
			File:   s.Links.R2Path,
			Title:  s.Title,
			Artist: orDefault(s.Artist, "Unknown"),
			Album:  orDefault(s.Album, "Unknown Album"),
		}
		if s.MusicalInfo != nil {
			t.Duration = FormatDuration(s.MusicalInfo.DurationSeconds)
			t.Genre = s.MusicalInfo.Genre
		} else {
			t.Duration = FormatDuration(0)
		}
		if y := s.Dates.Year(); y != "" {
			t.Year = &y
		}
		l.Tracks = append(l.Tracks, t)
	}
	return l
}

// FormatDuration renders seconds as M:SS; zero or negative is 0:00
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
