package store

import (
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "arbor-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := OpenAt(filepath.Join(tmpDir, "db"))
	if err != nil {
		t.Fatalf("OpenAt: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadDefaultsWhenEmpty(t *testing.T) {
	s := openTestStore(t)

	tel, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tel.TotalSearches != 0 || tel.TotalNodes != 0 || tel.BestNPS != 0 {
		t.Errorf("expected zero-valued telemetry, got %+v", tel)
	}
}

func TestRecordSearchAccumulates(t *testing.T) {
	s := openTestStore(t)

	if err := s.RecordSearch(1000, 500_000); err != nil {
		t.Fatalf("RecordSearch: %v", err)
	}
	if err := s.RecordSearch(2000, 250_000); err != nil {
		t.Fatalf("RecordSearch: %v", err)
	}

	tel, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tel.TotalSearches != 2 {
		t.Errorf("TotalSearches = %d, want 2", tel.TotalSearches)
	}
	if tel.TotalNodes != 3000 {
		t.Errorf("TotalNodes = %d, want 3000", tel.TotalNodes)
	}
	if tel.BestNPS != 500_000 {
		t.Errorf("BestNPS = %d, want 500000 (the higher of the two)", tel.BestNPS)
	}
}

func TestDataPaths(t *testing.T) {
	dataDir, err := GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir failed: %v", err)
	}
	if dataDir == "" {
		t.Error("GetDataDir returned empty path")
	}
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		t.Errorf("data directory was not created: %s", dataDir)
	}
}
