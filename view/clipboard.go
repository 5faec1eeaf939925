package view

import "github.com/atotto/clipboard"

// Clipboard is the native copy collaborator. A failed write falls back to
// host-side clipboard handling.
type Clipboard interface {
	Write(text string) error
}

type systemClipboard struct{}

func (systemClipboard) Write(text string) error {
	return clipboard.WriteAll(text)
}
