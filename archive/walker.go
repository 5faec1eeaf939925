// Package archive gives access to book containers - zip archives with spine
// documents and resources inside. Built on top of "archive/zip".
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

// WalkFunc is the type of the function called for each file in container
// visited by Walk. The container argument contains path to archive passed to
// Walk. The file argument is the zip.File structure for file in archive which
// satisfies match condition. If an error is returned, processing stops.
type WalkFunc func(container string, file *zip.File) error

// Walk walks the all files in the container which satisfy match condition,
// calling walkFn for each item. Entries with path traversal components
// ("..") or absolute paths are silently skipped to prevent Zip Slip attacks.
func Walk(container, pattern string, walkFn WalkFunc) error {

	r, err := zip.OpenReader(container)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
		}
		if !f.FileInfo().IsDir() && strings.HasPrefix(name, pattern) {
			if err := walkFn(container, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadFile returns content of a single named entry - a spine document or a
// book resource. Name must be an exact entry name inside the container.
func ReadFile(container, name string) ([]byte, error) {

	r, err := zip.OpenReader(container)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if !isSafePath(name) {
		return nil, fmt.Errorf("zip entry %q: unsafe path (absolute or contains path traversal)", name)
	}

	for _, f := range r.File {
		if f.FileInfo().IsDir() || f.FileHeader.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("unable to open container entry %q: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("container %s has no entry %q", container, name)
}

// isSafePath returns false for paths that could escape the extraction
// directory: absolute paths and those containing ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
