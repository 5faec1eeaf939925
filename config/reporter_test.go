package config

import (
	"archive/zip"
	"os"
	"testing"
)

func TestReportClose_WritesManifestAndData(t *testing.T) {
	reportFile, err := os.CreateTemp("", "test-report-*.zip")
	if err != nil {
		t.Fatalf("failed to create temp report file: %v", err)
	}
	defer os.Remove(reportFile.Name())

	r := &Report{
		entries: make(map[string]entry),
		file:    reportFile,
	}

	tmpFile, err := os.CreateTemp("", "test-stored-file-")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	if _, err := tmpFile.WriteString("session log"); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	r.Store("final.log", tmpFile.Name())
	r.StoreData("session-dump", []byte("spine=2"))
	r.StoreData("session-dump", []byte("spine=3")) // versioned, not overwritten

	if err := r.Close(); err != nil {
		t.Fatalf("Report.Close() error: %v", err)
	}

	zr, err := zip.OpenReader(reportFile.Name())
	if err != nil {
		t.Fatalf("report is not a readable zip: %v", err)
	}
	defer zr.Close()

	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	if !names["MANIFEST"] {
		t.Errorf("MANIFEST missing from report")
	}
	if !names["final.log"] {
		t.Errorf("stored file missing from report")
	}
	if !names["session-dump"] {
		t.Errorf("stored data missing from report")
	}
	if len(zr.File) != 4 {
		t.Errorf("expected 4 entries (manifest, file, two dumps), got %d", len(zr.File))
	}
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
