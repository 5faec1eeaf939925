package view

import (
	"go.uber.org/zap"

	"bookview/host"
)

// handleScriptError classifies a frame script error by origin. Only errors
// from our own context are surfaced upstream; book-embedded and third-party
// errors never become user-facing failures.
func (c *Controller) handleScriptError(e *host.ScriptError) {
	switch e.Origin {
	case host.OriginSelf:
		c.log.Error("Script error in own context",
			zap.String("message", e.Message), zap.String("file", e.File),
			zap.Int("line", e.Line), zap.Int("col", e.Col))
		c.send(host.ErrorReport{
			Type:    host.TypeError,
			Message: e.Message,
			File:    e.File,
			Line:    e.Line,
			Col:     e.Col,
			Stack:   e.Stack,
		})
	case host.OriginBook:
		c.log.Warn("Script error in book content",
			zap.String("message", e.Message), zap.String("file", e.File), zap.Int("line", e.Line))
	default:
		if e.Opaque {
			// cross-origin opacity - nothing useful to log
			return
		}
		c.log.Debug("Third-party script error",
			zap.String("message", e.Message), zap.String("file", e.File))
	}
}
