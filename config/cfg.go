package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/maruel/natural"
	yaml "gopkg.in/yaml.v3"

	"bookview/common"
)

type (
	// DebounceConfig keeps quiet-period windows for expensive event handlers,
	// milliseconds. Cheap per-tick progress reporting is never debounced.
	DebounceConfig struct {
		ScrollCFIMs int `yaml:"scroll_cfi_ms"`
		ResizeMs    int `yaml:"resize_ms"`
	}

	// ReaderConfig describes reading surface behavior requested by the host.
	ReaderConfig struct {
		Mode             string            `yaml:"mode"`
		ColumnsPerScreen int               `yaml:"columns_per_screen"`
		ScrollSpeed      int               `yaml:"scroll_speed"`
		FontSizePercent  int               `yaml:"font_size_percent"`
		ColorSchemes     map[string]string `yaml:"color_schemes"`
		DragMarginPx     int               `yaml:"drag_margin_px"`
		FindWindowMs     int               `yaml:"find_window_ms"`
		Debounce         DebounceConfig    `yaml:"debounce"`
	}

	Config struct {
		Version   int                 `yaml:"version"`
		Reader    ReaderConfig        `yaml:"reader"`
		Bindings  map[string][]string `yaml:"bindings"`
		Logging   LoggingConfig       `yaml:"logging"`
		Reporting ReporterConfig      `yaml:"reporting"`
	}
)

// Actions the shortcut router understands. Navigation actions are offered to
// the active layout strategy first, the rest is forwarded to the host when
// not consumed locally.
var knownActions = map[string]bool{
	"next_page":         true,
	"previous_page":     true,
	"scroll_forward":    true,
	"scroll_backward":   true,
	"to_start":          true,
	"to_end":            true,
	"toggle_autoscroll": true,
	"copy":              true,
	"find_next":         true,
	"find_previous":     true,
	"show_chrome":       true,
	"back":              true,
	"forward":           true,
	"preferences":       true,
	"metadata":          true,
}

// KnownAction reports whether the shortcut router understands the action name.
func KnownAction(name string) bool {
	return knownActions[name]
}

// Default returns configuration used when no file is provided. Host settings
// from the display message overlay these values per document load.
func Default() *Config {
	return &Config{
		Version: 1,
		Reader: ReaderConfig{
			Mode:             common.LayoutModePaged.String(),
			ColumnsPerScreen: 1,
			ScrollSpeed:      30,
			FontSizePercent:  100,
			ColorSchemes: map[string]string{
				"light": "color: #000000; background-color: #ffffff",
				"dark":  "color: #e0e0e0; background-color: #121212",
				"sepia": "color: #5b4636; background-color: #f4ecd8",
			},
			DragMarginPx: 30,
			FindWindowMs: 1000,
			Debounce: DebounceConfig{
				ScrollCFIMs: 1000,
				ResizeMs:    500,
			},
		},
		Bindings: map[string][]string{
			"next_page":         {"Space", "PageDown", "ArrowRight"},
			"previous_page":     {"shift+Space", "PageUp", "ArrowLeft"},
			"scroll_forward":    {"ArrowDown", "j"},
			"scroll_backward":   {"ArrowUp", "k"},
			"to_start":          {"Home", "ctrl+Home"},
			"to_end":            {"End", "ctrl+End"},
			"toggle_autoscroll": {"F5"},
			"copy":              {"ctrl+c"},
			"find_next":         {"F3", "ctrl+g"},
			"find_previous":     {"shift+F3", "ctrl+shift+g"},
			"show_chrome":       {"Escape", "F10"},
			"back":              {"alt+ArrowLeft"},
			"forward":           {"alt+ArrowRight"},
		},
		Logging: LoggingConfig{
			ConsoleLogger: LoggerConfig{Level: "normal"},
			FileLogger:    LoggerConfig{Level: "none", Mode: "append"},
		},
	}
}

func unmarshalConfig(data []byte, cfg *Config) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported configuration version %d", cfg.Version)
	}
	if _, err := common.ParseLayoutMode(cfg.Reader.Mode); err != nil {
		return fmt.Errorf("reader mode must be one of %s: %w", strings.Join(common.LayoutModeNames(), "|"), err)
	}
	if cfg.Reader.ColumnsPerScreen < 1 || cfg.Reader.ColumnsPerScreen > 4 {
		return fmt.Errorf("columns_per_screen out of range: %d", cfg.Reader.ColumnsPerScreen)
	}
	if cfg.Reader.ScrollSpeed <= 0 {
		return fmt.Errorf("scroll_speed must be positive: %d", cfg.Reader.ScrollSpeed)
	}
	if err := cfg.Logging.validate(); err != nil {
		return err
	}

	var bad []string
	for name := range cfg.Bindings {
		if !knownActions[name] {
			bad = append(bad, name)
		}
	}
	if len(bad) > 0 {
		sort.Sort(natural.StringSlice(bad))
		return fmt.Errorf("unknown actions in key bindings: %v", bad)
	}
	return nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of defaults and performs validation.
func LoadConfiguration(path string) (*Config, error) {
	cfg := Default()
	if len(path) == 0 {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if cfg, err = unmarshalConfig(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	if err = cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to validate configuration file: %w", err)
	}
	return cfg, nil
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
