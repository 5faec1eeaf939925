package view

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"bookview/config"
	"bookview/layout"
)

// keymap resolves normalized key chords to named actions built from
// configured bindings.
type keymap struct {
	actions map[string]string
}

// newKeymap compiles bindings like "ctrl+shift+g" or "PageDown" into a
// chord lookup. Bindings for unknown actions were already rejected by
// configuration validation; malformed chords are skipped with a warning.
func newKeymap(bindings map[string][]string, log *zap.Logger) *keymap {
	km := &keymap{actions: map[string]string{}}

	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	// deterministic winner when two actions claim one chord
	sort.Strings(names)

	for _, name := range names {
		if !config.KnownAction(name) {
			continue
		}
		for _, binding := range bindings[name] {
			chord, ok := normalizeBinding(binding)
			if !ok {
				log.Warn("Skipping malformed key binding", zap.String("action", name), zap.String("binding", binding))
				continue
			}
			if prev, taken := km.actions[chord]; taken && prev != name {
				log.Warn("Key chord bound to multiple actions, keeping first",
					zap.String("chord", chord), zap.String("kept", prev), zap.String("dropped", name))
				continue
			}
			km.actions[chord] = name
		}
	}
	return km
}

// Lookup resolves a key event to an action name, empty when unbound.
func (km *keymap) Lookup(k layout.KeyEvent) string {
	return km.actions[chordOf(k)]
}

// chordOf renders a key event in the canonical modifier order.
func chordOf(k layout.KeyEvent) string {
	var sb strings.Builder
	if k.Ctrl {
		sb.WriteString("ctrl+")
	}
	if k.Alt {
		sb.WriteString("alt+")
	}
	if k.Shift {
		sb.WriteString("shift+")
	}
	if k.Meta {
		sb.WriteString("meta+")
	}
	sb.WriteString(normalizeKey(k.Key))
	return sb.String()
}

func normalizeBinding(binding string) (string, bool) {
	parts := strings.Split(binding, "+")
	key := parts[len(parts)-1]
	if key == "" {
		return "", false
	}
	var k layout.KeyEvent
	for _, mod := range parts[:len(parts)-1] {
		switch strings.ToLower(strings.TrimSpace(mod)) {
		case "ctrl", "control":
			k.Ctrl = true
		case "alt":
			k.Alt = true
		case "shift":
			k.Shift = true
		case "meta", "cmd", "super":
			k.Meta = true
		default:
			return "", false
		}
	}
	k.Key = key
	return chordOf(k), true
}

// normalizeKey keeps named keys (PageDown, Escape, F5) as-is and lowercases
// single characters so bindings are case-insensitive for letters.
func normalizeKey(key string) string {
	if len(key) == 1 {
		return strings.ToLower(key)
	}
	return key
}
