package archive

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeContainer(t *testing.T, entries map[string]string) string {
	t.Helper()

	zipPath := filepath.Join(t.TempDir(), "book.zip")
	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create container: %v", err)
	}

	w := zip.NewWriter(zipFile)
	for name, body := range entries {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create entry %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(body)); err != nil {
			t.Fatalf("Failed to write entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to finalize container: %v", err)
	}
	zipFile.Close()
	return zipPath
}

func TestWalk(t *testing.T) {
	zipPath := writeContainer(t, map[string]string{
		"text/ch01.xhtml":  "<html/>",
		"text/ch02.xhtml":  "<html/>",
		"images/cover.png": "PNG",
	})

	t.Run("walk with prefix", func(t *testing.T) {
		var visited []string
		err := Walk(zipPath, "text/", func(container string, file *zip.File) error {
			visited = append(visited, file.Name)
			return nil
		})
		if err != nil {
			t.Errorf("Walk() error = %v", err)
		}
		if len(visited) != 2 {
			t.Errorf("visited %d files, want 2", len(visited))
		}
	})

	t.Run("walk with no matching prefix", func(t *testing.T) {
		var visited []string
		err := Walk(zipPath, "fonts/", func(container string, file *zip.File) error {
			visited = append(visited, file.Name)
			return nil
		})
		if err != nil {
			t.Errorf("Walk() error = %v", err)
		}
		if len(visited) != 0 {
			t.Errorf("visited %d files, want 0", len(visited))
		}
	})

	t.Run("walkFn returns error", func(t *testing.T) {
		expectedErr := errors.New("test error")
		err := Walk(zipPath, "text/", func(container string, file *zip.File) error {
			return expectedErr
		})
		if err != expectedErr {
			t.Errorf("Walk() error = %v, want %v", err, expectedErr)
		}
	})
}

func TestReadFile(t *testing.T) {
	zipPath := writeContainer(t, map[string]string{
		"text/ch01.xhtml":  "<html><body><p>one</p></body></html>",
		"images/cover.png": "PNG",
	})

	t.Run("existing entry", func(t *testing.T) {
		data, err := ReadFile(zipPath, "text/ch01.xhtml")
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(data) != "<html><body><p>one</p></body></html>" {
			t.Errorf("unexpected content: %q", data)
		}
	})

	t.Run("missing entry", func(t *testing.T) {
		if _, err := ReadFile(zipPath, "text/ch99.xhtml"); err == nil {
			t.Error("Expected error for missing entry")
		}
	})

	t.Run("unsafe entry name", func(t *testing.T) {
		if _, err := ReadFile(zipPath, "../escape.xhtml"); err == nil {
			t.Error("Expected error for unsafe entry name")
		}
	})
}

func TestWalk_InvalidContainer(t *testing.T) {
	t.Run("nonexistent file", func(t *testing.T) {
		err := Walk("/nonexistent/book.zip", "", func(container string, file *zip.File) error {
			return nil
		})
		if err == nil {
			t.Error("Expected error for nonexistent file")
		}
	})

	t.Run("invalid zip file", func(t *testing.T) {
		invalidZip := filepath.Join(t.TempDir(), "invalid.zip")
		if err := os.WriteFile(invalidZip, []byte("not a zip file"), 0644); err != nil {
			t.Fatalf("Failed to create invalid zip: %v", err)
		}
		err := Walk(invalidZip, "", func(container string, file *zip.File) error {
			return nil
		})
		if err == nil {
			t.Error("Expected error for invalid zip file")
		}
	})
}
