package catalog

import (
	"fmt"

	"github.com/franz/ridgemont-catalog/internal/identity"
	"github.com/franz/ridgemont-catalog/internal/util"
)

// SongUpdate is a partial song edit. Nil fields are left untouched.
// Registration and Deployments merge key by key; every other field is
// replaced wholesale.
type SongUpdate struct {
	Title           *string            `json:"title,omitempty"`
	AltTitles       []string           `json:"alt_titles,omitempty"`
	ActID           *string            `json:"act_id,omitempty"`
	Artist          *string            `json:"artist,omitempty"`
	Album           *string            `json:"album,omitempty"`
	Writers         []WriterShare      `json:"writers,omitempty"`
	LegacyCode      *string            `json:"legacy_code,omitempty"`
	Status          *Status            `json:"status,omitempty"`
	CopyrightNumber *string            `json:"copyright_number,omitempty"`
	MusicalInfo     *MusicalInfo       `json:"musical_info,omitempty"`
	SyncMetadata    *SyncMetadata      `json:"sync_metadata,omitempty"`
	Rights          *Rights            `json:"rights,omitempty"`
	Links           *Links             `json:"links,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	SyncChecklist   *SyncChecklist     `json:"sync_checklist,omitempty"`
	TotalEarned     *float64           `json:"total_earned,omitempty"`
	Registration    *RegistrationPatch `json:"registration,omitempty"`
	Deployments     *DeploymentsPatch  `json:"deployments,omitempty"`
}

// RegistrationPatch carries the registration keys to overwrite
type RegistrationPatch struct {
	ISRC           *string  `json:"isrc,omitempty"`
	ISWC           *string  `json:"iswc,omitempty"`
	PROWorkID      *string  `json:"pro_work_id,omitempty"`
	CopyrightReg   *string  `json:"copyright_reg,omitempty"`
	RegisteredWith []string `json:"registered_with,omitempty"`
}

// DeploymentsPatch replaces each non-nil platform set
type DeploymentsPatch struct {
	Distribution  []string `json:"distribution,omitempty"`
	SyncLibraries []string `json:"sync_libraries,omitempty"`
	Streaming     []string `json:"streaming,omitempty"`
}

func (u SongUpdate) apply(song *Song) {
	setString(&song.Title, u.Title)
	setString(&song.ActID, u.ActID)
	setString(&song.Artist, u.Artist)
	setString(&song.Album, u.Album)
	setString(&song.LegacyCode, u.LegacyCode)
	setString(&song.CopyrightNumber, u.CopyrightNumber)
	setString(&song.Notes, u.Notes)
	if u.AltTitles != nil {
		song.AltTitles = u.AltTitles
	}
	if u.Writers != nil {
		song.Writers = u.Writers
	}
	if u.Status != nil {
		song.Status = *u.Status
	}
	if u.MusicalInfo != nil {
		song.MusicalInfo = u.MusicalInfo
	}
	if u.SyncMetadata != nil {
		song.SyncMetadata = u.SyncMetadata
	}
	if u.Rights != nil {
		song.Rights = u.Rights
	}
	if u.Links != nil {
		song.Links = *u.Links
	}
	if u.SyncChecklist != nil {
		song.SyncChecklist = u.SyncChecklist
	}
	if u.TotalEarned != nil {
		song.Revenue.TotalEarned = *u.TotalEarned
	}

	if r := u.Registration; r != nil {
		setString(&song.Registration.ISRC, r.ISRC)
		setString(&song.Registration.ISWC, r.ISWC)
		setString(&song.Registration.PROWorkID, r.PROWorkID)
		setString(&song.Registration.CopyrightReg, r.CopyrightReg)
		if r.RegisteredWith != nil {
			song.Registration.RegisteredWith = r.RegisteredWith
		}
	}
	if d := u.Deployments; d != nil {
		if d.Distribution != nil {
			song.Deployments.Distribution = normalizePlatforms(d.Distribution)
		}
		if d.SyncLibraries != nil {
			song.Deployments.SyncLibraries = normalizePlatforms(d.SyncLibraries)
		}
		if d.Streaming != nil {
			song.Deployments.Streaming = normalizePlatforms(d.Streaming)
		}
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// validateCodeFor checks an explicit code's shape and that no song other
// than self already carries it
func validateCodeFor(doc *Catalog, raw string, self *Song) (string, error) {
	code, err := identity.ValidateCode(raw)
	if err != nil {
		return "", err
	}
	if existing := doc.FindByCode(code); existing != nil && existing != self {
		return "", &CodeConflictError{Code: code, Title: existing.Title}
	}
	return code, nil
}

// CodeConflictError reports an explicit legacy code already held by
// another song. It matches util.ErrValidation.
type CodeConflictError struct {
	Code  string
	Title string
}

func (e *CodeConflictError) Error() string {
	return fmt.Sprintf("code '%s' already used by '%s'", e.Code, e.Title)
}

func (e *CodeConflictError) Unwrap() error {
	return util.ErrValidation
}
