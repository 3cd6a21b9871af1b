package ledger

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreOpenAndMigrate(t *testing.T) {
	s := openTestStore(t)

	version, err := s.schemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	for _, table := range []string{"ingest_runs", "commands", "schema_version"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}

	if err := s.CheckIntegrity(); err != nil {
		t.Errorf("integrity check failed: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	run := &Run{SrcPath: "/watch/a.mp3", State: "done"}
	if err := s.StartRun(run); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	got, err := s.GetRun(run.ID)
	if err != nil || got == nil {
		t.Fatalf("run lost after reopen: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	start := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	run := &Run{SrcPath: "/watch/Lanterns.mp3", SizeBytes: 4096, State: "detected", StartedAt: start}
	if err := s.StartRun(run); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected run id to be assigned")
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Finished() || got.State != "detected" || !got.StartedAt.Equal(start) {
		t.Errorf("unexpected fresh run %+v", got)
	}

	run.State = "done"
	run.SHA1 = "abc"
	run.RemoteKey = "Artist/Album/Lanterns.mp3"
	run.SongID = "RS-2026-0001"
	run.CompletedAt = start.Add(3 * time.Second)
	if err := s.UpdateRun(run); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}

	got, _ = s.GetRun(run.ID)
	if !got.Finished() || got.RemoteKey != run.RemoteKey || got.SongID != "RS-2026-0001" {
		t.Errorf("update not stored: %+v", got)
	}

	prior, err := s.FindDoneBySHA1("abc", "done")
	if err != nil || prior == nil || prior.ID != run.ID {
		t.Errorf("FindDoneBySHA1 = %+v, %v", prior, err)
	}
	if none, _ := s.FindDoneBySHA1("zzz", "done"); none != nil {
		t.Errorf("expected no match, got %+v", none)
	}

	if missing, err := s.GetRun("nope"); err != nil || missing != nil {
		t.Errorf("GetRun(nope) = %+v, %v", missing, err)
	}
}

func TestRecentRunsAndCounts(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	states := []string{"done", "failed", "done", "done"}
	for i, st := range states {
		run := &Run{SrcPath: "/w/f.mp3", SizeBytes: 100, State: st, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.StartRun(run); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := s.RecentRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || !recent[0].StartedAt.Equal(base.Add(3*time.Minute)) {
		t.Errorf("unexpected recent runs %+v", recent)
	}

	counts, err := s.CountRunsByState()
	if err != nil {
		t.Fatal(err)
	}
	if counts["done"] != 3 || counts["failed"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}

	failed, _ := s.RunsByState("failed")
	if len(failed) != 1 {
		t.Errorf("expected 1 failed run, got %d", len(failed))
	}

	total, err := s.TotalBytesUploaded("done")
	if err != nil || total != 300 {
		t.Errorf("TotalBytesUploaded = %d, %v", total, err)
	}
}

func TestCommands(t *testing.T) {
	s := openTestStore(t)
	for i, c := range []string{`> Sync`, `> Forecast "Horizon" 2m`} {
		cmd := &Command{Command: c, Verb: "v", Result: "ok", ExecutedAt: time.UnixMilli(int64(1000 * (i + 1)))}
		if err := s.LogCommand(cmd); err != nil {
			t.Fatal(err)
		}
		if cmd.ID == 0 {
			t.Error("expected command id")
		}
	}
	cmds, err := s.RecentCommands(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 2 || cmds[0].Command != `> Forecast "Horizon" 2m` {
		t.Errorf("unexpected commands %+v", cmds)
	}
}

func TestNilStoreWritesAreNoops(t *testing.T) {
	var s *Store
	if err := s.StartRun(&Run{}); err != nil {
		t.Error(err)
	}
	if err := s.UpdateRun(&Run{}); err != nil {
		t.Error(err)
	}
	if err := s.LogCommand(&Command{}); err != nil {
		t.Error(err)
	}
	if err := s.Close(); err != nil {
		t.Error(err)
	}
}
