package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/franz/ridgemont-catalog/internal/catalog"
	"github.com/franz/ridgemont-catalog/internal/util"
)

var songCmd = &cobra.Command{
	Use:   "song",
	Short: "Add, update or show catalog songs",
}

var songAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a song to the catalog",
	Long: `Add a song to the catalog. The song gets the next RS-<year>-NNNN id and,
unless --code is given, a four-letter legacy code derived from its title.
A cover (--cover-of) takes the original's code.`,
	Args: cobra.ExactArgs(1),
	RunE: runSongAdd,
}

var songUpdateCmd = &cobra.Command{
	Use:   "update <song_id>",
	Short: "Apply a JSON patch to a song",
	Long: `Apply a partial JSON update to a song. Only the keys present are changed;
registration and deployments merge key by key.

Example:
  rcm song update RS-2026-0003 --patch '{"status":"mastered","musical_info":{"bpm":128}}'

Without --patch or --file the patch is read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runSongUpdate,
}

var songShowCmd = &cobra.Command{
	Use:   "show <title>",
	Short: "Print a song record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSongShow,
}

func init() {
	rootCmd.AddCommand(songCmd)
	songCmd.AddCommand(songAddCmd, songUpdateCmd, songShowCmd)

	songAddCmd.Flags().String("act", "", "act id or abbreviation (required)")
	songAddCmd.Flags().String("code", "", "four-letter legacy code")
	songAddCmd.Flags().String("status", "", "idea, demo, mixing, mastered, copyright or released")
	songAddCmd.Flags().String("artist", "", "performing artist (default: act display name)")
	songAddCmd.Flags().String("cover-of", "", "title or song id of the original this song covers")
	_ = songAddCmd.MarkFlagRequired("act")

	songUpdateCmd.Flags().String("patch", "", "JSON patch")
	songUpdateCmd.Flags().String("file", "", "file containing the JSON patch")
}

func runSongAdd(cmd *cobra.Command, args []string) error {
	req := catalog.NewSong{Title: args[0]}
	req.ActID, _ = cmd.Flags().GetString("act")
	req.LegacyCode, _ = cmd.Flags().GetString("code")
	req.Artist, _ = cmd.Flags().GetString("artist")
	status, _ := cmd.Flags().GetString("status")
	req.Status = catalog.Status(status)
	if coverOf, _ := cmd.Flags().GetString("cover-of"); coverOf != "" {
		req.IsCover = true
		req.CoverOf = coverOf
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	song, err := a.manager.AddSong(context.Background(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (code %s)\n", song.SongID, song.Title, song.LegacyCode)
	return nil
}

func runSongUpdate(cmd *cobra.Command, args []string) error {
	raw, err := readPatch(cmd)
	if err != nil {
		return err
	}
	u, err := decodeSongUpdate(raw)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	found, err := a.manager.UpdateSong(context.Background(), args[0], u)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: song %s", util.ErrNotFound, args[0])
	}
	util.SuccessLog("Updated %s", args[0])
	return nil
}

func runSongShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.manager.Snapshot(context.Background())
	if err != nil {
		return err
	}
	return showSong(cmd.OutOrStdout(), doc, args[0])
}

// showSong writes the song as indented JSON. For a cover, the original it
// points at is logged, or a warning when it is no longer in the catalog.
func showSong(w io.Writer, doc *catalog.Catalog, title string) error {
	song := doc.FindByTitle(title)
	if song == nil {
		return fmt.Errorf("%w: song '%s'", util.ErrNotFound, title)
	}
	if song.IsCover {
		if orig := doc.ResolveCoverOriginal(song); orig != nil {
			util.InfoLog("%s covers %s %q (%s)", song.SongID, orig.SongID, orig.Title, orig.ActID)
		} else {
			util.WarnLog("%s covers %q, which is not in the catalog", song.SongID, song.CoverOf)
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(song)
}

func readPatch(cmd *cobra.Command) ([]byte, error) {
	if patch, _ := cmd.Flags().GetString("patch"); patch != "" {
		return []byte(patch), nil
	}
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		return os.ReadFile(file)
	}
	return io.ReadAll(cmd.InOrStdin())
}

// decodeSongUpdate parses a JSON patch, rejecting keys SongUpdate does not know
func decodeSongUpdate(raw []byte) (catalog.SongUpdate, error) {
	var u catalog.SongUpdate
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		return u, fmt.Errorf("%w: invalid patch: %v", util.ErrValidation, err)
	}
	return u, nil
}
