package view

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bookview/config"
	"bookview/content"
	"bookview/host"
)

// fakeHost records outbound messages instead of a live websocket.
type fakeHost struct {
	in   chan any
	sent []any
}

func newFakeHost() *fakeHost {
	return &fakeHost{in: make(chan any, 8)}
}

func (f *fakeHost) Inbound() <-chan any { return f.in }
func (f *fakeHost) Send(msg any) error  { f.sent = append(f.sent, msg); return nil }
func (f *fakeHost) Close() error        { return nil }

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

func TestDisplayAfterEarlyWindowSize(t *testing.T) {
	ch := newFakeHost()
	c := NewController(config.Default(), ch, testLogger(t))

	// the viewport answer arrives before anything is laid out and must be
	// applied at once, not sit in the resize debounce window
	c.handleWindowSize(800, 600)
	if c.metrics.ViewportWidth != 800 || c.metrics.ViewportHeight != 600 {
		t.Fatalf("initial viewport not applied: %+v", c.metrics)
	}

	container := writeContainer(t, map[string]string{
		"ch1.xhtml": "<html><body><p>Some content to lay out here.</p></body></html>",
	})
	c.handleDisplay(context.Background(), &host.Display{
		Type:      host.TypeDisplay,
		BookID:    "b-1",
		Title:     "T",
		Container: container,
		Spine:     []content.SpineItem{{Name: "ch1.xhtml", Length: 30}},
	})

	if c.strategy == nil || !c.session.ContentReady {
		t.Fatal("display did not finish loading")
	}
	var loaded bool
	for _, msg := range ch.sent {
		switch m := msg.(type) {
		case host.ContentLoaded:
			loaded = true
		case host.ErrorReport:
			t.Fatalf("error report sent: %+v", m)
		}
	}
	if !loaded {
		t.Fatal("content_loaded not sent")
	}
}

func TestDocumentReadsDroppedUntilContentReady(t *testing.T) {
	ch := newFakeHost()
	c := NewController(config.Default(), ch, testLogger(t))
	doc := loadViewDoc(t, "<html><body><p>needle in a paragraph</p></body></html>")
	c.session.Doc = doc
	c.finder = newFinder(doc, testLogger(t))

	ctx := context.Background()
	c.dispatch(ctx, &host.Find{Type: host.TypeFind, Text: "needle"})
	c.dispatch(ctx, &host.GetCurrentCFI{Type: host.TypeGetCurrentCFI, RequestID: "r-1"})

	if len(ch.sent) != 0 {
		t.Fatalf("document reads handled before content ready: %+v", ch.sent)
	}
	if !c.lastFind.IsZero() {
		t.Fatal("find ran before content ready")
	}
}

type failingClipboard struct{}

func (failingClipboard) Write(string) error { return errors.New("clipboard gone") }

func TestCopySelectionFallbackCarriesMarkup(t *testing.T) {
	ch := newFakeHost()
	c := NewController(config.Default(), ch, testLogger(t), WithClipboard(failingClipboard{}))
	doc := loadViewDoc(t, "<html><body><p>Plain <b>bold</b> tail.</p></body></html>")
	c.session.Doc = doc
	c.session.ContentReady = true

	// select "bold"
	startPos, ok1 := doc.PositionAt(6)
	endPos, ok2 := doc.PositionAt(10)
	if !ok1 || !ok2 {
		t.Fatal("unable to address the test selection")
	}
	c.session.Selection = &content.Selection{
		StartSteps:  startPos.Steps,
		StartOffset: startPos.Offset,
		EndSteps:    endPos.Steps,
		EndOffset:   endPos.Offset,
	}

	c.copySelection()

	if len(ch.sent) != 1 {
		t.Fatalf("expected one fallback message, got %d", len(ch.sent))
	}
	msg, ok := ch.sent[0].(host.CopyTextToClipboard)
	if !ok {
		t.Fatalf("unexpected fallback message %T", ch.sent[0])
	}
	if msg.Text != "bold" {
		t.Fatalf("fallback text = %q", msg.Text)
	}
	if !strings.Contains(msg.HTML, "<b>bold</b>") {
		t.Fatalf("fallback markup lost: %q", msg.HTML)
	}
}
