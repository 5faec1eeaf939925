// Package host implements the message boundary to the host process: typed
// message envelopes and the websocket channel they travel over. Every
// message is a named action with a flat JSON payload discriminated by the
// "type" field.
package host

import (
	"encoding/json"
	"fmt"

	"bookview/annotations"
	"bookview/content"
	"bookview/layout"
)

// Inbound message types.
const (
	TypeDisplay                  = "display"
	TypeFind                     = "find"
	TypeGetCurrentCFI            = "get_current_cfi"
	TypeScrollToAnchor           = "scroll_to_anchor"
	TypeScrollToFrac             = "scroll_to_frac"
	TypeScrollToRef              = "scroll_to_ref"
	TypeSetReferenceMode         = "set_reference_mode"
	TypeChangeColorScheme        = "change_color_scheme"
	TypeChangeFontSize           = "change_font_size"
	TypeChangeNumberOfColumns    = "change_number_of_columns"
	TypeChangeScrollSpeed        = "change_scroll_speed"
	TypeWindowSize               = "window_size"
	TypeHandleNavigationShortcut = "handle_navigation_shortcut"
	TypeAnnotations              = "annotations"
	TypeReplaceHighlights        = "replace_highlights"
	TypeCopySelection            = "copy_selection"
	TypeToggleAutoscroll         = "toggle_autoscroll"
	TypeGestureFromMargin        = "gesture_from_margin"
	TypeOverlayVisibility        = "overlay_visibility_changed"
	TypeKeyDown                  = "keydown"
	TypeWheel                    = "wheel"
	TypeScroll                   = "scroll"
	TypeSelectionChanged         = "selectionchange"
	TypeLongPress                = "longpress"
	TypeScriptError              = "script_error"
)

// Outbound message types.
const (
	TypeContentLoaded         = "content_loaded"
	TypeUpdateCFI             = "update_cfi"
	TypeUpdateProgressFrac    = "update_progress_frac"
	TypeReportCFI             = "report_cfi"
	TypeUpdateTOCPosition     = "update_toc_position"
	TypeUpdateSelectionPos    = "update_selection_position"
	// same wire name as the inbound raw event - directions never mix
	TypeSelectionState        = "selectionchange"
	TypeAnnotationsResult     = "annotations"
	TypeError                 = "error"
	TypeHandleShortcut        = "handle_shortcut"
	TypeShowChrome            = "show_chrome"
	TypeBumpFontSize          = "bump_font_size"
	TypeViewImage             = "view_image"
	TypeShowFootnote          = "show_footnote"
	TypeRequestSize           = "request_size"
	TypeColumnsChanged        = "columns_per_screen_changed"
	TypeCopyTextToClipboard   = "copy_text_to_clipboard"
	TypeSearchResultNotFound  = "search_result_not_found"
)

// Annotation sub-actions of the inbound "annotations" message.
const (
	AnnMoveEndOfSelection = "move-end-of-selection"
	AnnSetHighlightStyle  = "set-highlight-style"
	AnnExtendToParagraph  = "extend-to-paragraph"
	AnnDragScroll         = "drag-scroll"
	AnnEditHighlight      = "edit-highlight"
	AnnNotesEdited        = "notes-edited"
	AnnRemoveHighlight    = "remove-highlight"
	AnnApplyHighlight     = "apply-highlight"
)

// Annotation result sub-types of the outbound "annotations" message.
const (
	AnnResultApplied    = "highlight-applied"
	AnnResultEdit       = "edit-highlight"
	AnnResultEditFailed = "edit-highlight-failed"
)

// envelope is the minimal shape used to route inbound messages.
type envelope struct {
	Type string `json:"type"`
}

// ReaderSettings is the per-display settings overlay sent by the host. Nil
// pointers mean "keep the configured value".
type ReaderSettings struct {
	Mode             string `json:"mode,omitempty"`
	ColumnsPerScreen int    `json:"columns_per_screen,omitempty"`
	ScrollSpeed      int    `json:"scroll_speed,omitempty"`
	FontSizePercent  int    `json:"font_size_percent,omitempty"`
	ColorScheme      string `json:"color_scheme,omitempty"`
}

// InitialPosition is the position restore request carried by display.
// Exactly one kind is meaningful per request.
type InitialPosition struct {
	Kind       string  `json:"kind"`
	Frac       float64 `json:"frac,omitempty"`
	Anchor     string  `json:"anchor,omitempty"`
	Ref        int     `json:"ref,omitempty"`
	CFI        string  `json:"cfi,omitempty"`
	SearchText string  `json:"search_text,omitempty"`
	ResultNum  int     `json:"result_num,omitempty"`
	EditUUID   string  `json:"edit_uuid,omitempty"`
}

// Initial position kinds.
const (
	InitialFrac         = "frac"
	InitialAnchor       = "anchor"
	InitialRef          = "ref"
	InitialCFI          = "cfi"
	InitialSearchResult = "search_result"
	InitialSearchText   = "search_text"
	InitialEditUUID     = "edit_annotation"
)

// Display is the book/content descriptor starting a new reading session.
type Display struct {
	Type        string                  `json:"type"`
	BookID      string                  `json:"book_id"`
	Title       string                  `json:"title"`
	Container   string                  `json:"container"`
	Spine       []content.SpineItem     `json:"spine"`
	SpineIndex  int                     `json:"spine_index"`
	Language    string                  `json:"language,omitempty"`
	RTL         bool                    `json:"rtl,omitempty"`
	IsTitlePage bool                    `json:"is_title_page,omitempty"`
	ForcedMode  string                  `json:"forced_mode,omitempty"`
	Settings    *ReaderSettings         `json:"settings,omitempty"`
	Initial     *InitialPosition        `json:"initial_position,omitempty"`
	Highlights  []annotations.Highlight `json:"highlights,omitempty"`
}

type Find struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Backwards bool   `json:"backwards,omitempty"`
	FromStart bool   `json:"from_start,omitempty"`
}

type GetCurrentCFI struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

type ScrollToAnchor struct {
	Type   string `json:"type"`
	Anchor string `json:"anchor"`
}

type ScrollToFrac struct {
	Type string  `json:"type"`
	Frac float64 `json:"frac"`
}

type ScrollToRef struct {
	Type string `json:"type"`
	Ref  int    `json:"ref"`
}

type SetReferenceMode struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

type ChangeColorScheme struct {
	Type   string `json:"type"`
	Scheme string `json:"scheme"`
}

type ChangeFontSize struct {
	Type    string `json:"type"`
	Percent int    `json:"percent"`
}

type ChangeNumberOfColumns struct {
	Type    string `json:"type"`
	Columns int    `json:"columns"`
}

type ChangeScrollSpeed struct {
	Type  string `json:"type"`
	Speed int    `json:"speed"`
}

type WindowSize struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type HandleNavigationShortcut struct {
	Type string          `json:"type"`
	Name string          `json:"name"`
	Key  layout.KeyEvent `json:"key"`
}

// Annotation is the sub-typed annotation command. Fields beyond Sub are
// populated per sub-action.
type Annotation struct {
	Type        string                `json:"type"`
	Sub         string                `json:"sub"`
	UUID        string                `json:"uuid,omitempty"`
	Style       string                `json:"style,omitempty"`
	HasNotes    bool                  `json:"has_notes,omitempty"`
	Granularity string                `json:"granularity,omitempty"`
	Forward     bool                  `json:"forward,omitempty"`
	Y           int                   `json:"y,omitempty"`
	Highlight   *annotations.Highlight `json:"highlight,omitempty"`
}

type ReplaceHighlights struct {
	Type       string                  `json:"type"`
	Highlights []annotations.Highlight `json:"highlights"`
}

type CopySelection struct {
	Type string `json:"type"`
}

type ToggleAutoscroll struct {
	Type string `json:"type"`
}

type GestureFromMargin struct {
	Type string             `json:"type"`
	Kind layout.GestureKind `json:"kind"`
	X    int                `json:"x"`
	Y    int                `json:"y"`
}

type OverlayVisibility struct {
	Type    string `json:"type"`
	Visible bool   `json:"visible"`
	// ForwardKeypresses makes every keydown go to the host verbatim
	// while the overlay is up.
	ForwardKeypresses bool `json:"forward_keypresses,omitempty"`
}

type KeyDown struct {
	Type string          `json:"type"`
	Key  layout.KeyEvent `json:"key"`
}

type Wheel struct {
	Type   string `json:"type"`
	DeltaY int    `json:"delta_y"`
	Ctrl   bool   `json:"ctrl,omitempty"`
	Alt    bool   `json:"alt,omitempty"`
	Shift  bool   `json:"shift,omitempty"`
	Meta   bool   `json:"meta,omitempty"`
}

// Scroll is the frame-originated scroll tick, position as a fraction of the
// scrollable range.
type Scroll struct {
	Type string  `json:"type"`
	Frac float64 `json:"frac"`
}

// SelectionChanged delivers the live selection snapshot from the frame.
type SelectionChanged struct {
	Type      string            `json:"type"`
	Selection content.Selection `json:"selection"`
}

// LongPress reports a long-press gesture: the absolute rune offset under
// the point and, when the press landed on an image, its resource name.
type LongPress struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Image  string `json:"image,omitempty"`
}

// ScriptError surfaces a script error from the frame. Origin distinguishes
// our own code from book-embedded and third-party scripts.
type ScriptError struct {
	Type    string `json:"type"`
	Origin  string `json:"origin"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Stack   string `json:"stack,omitempty"`
	// Opaque marks a cross-origin error with no error object at all.
	Opaque bool `json:"opaque,omitempty"`
}

// Script error origins.
const (
	OriginSelf       = "self"
	OriginBook       = "book"
	OriginThirdParty = "third_party"
)

// Decode routes a raw inbound message to its typed form.
func Decode(raw []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unable to parse message envelope: %w", err)
	}

	var msg any
	switch env.Type {
	case TypeDisplay:
		msg = &Display{}
	case TypeFind:
		msg = &Find{}
	case TypeGetCurrentCFI:
		msg = &GetCurrentCFI{}
	case TypeScrollToAnchor:
		msg = &ScrollToAnchor{}
	case TypeScrollToFrac:
		msg = &ScrollToFrac{}
	case TypeScrollToRef:
		msg = &ScrollToRef{}
	case TypeSetReferenceMode:
		msg = &SetReferenceMode{}
	case TypeChangeColorScheme:
		msg = &ChangeColorScheme{}
	case TypeChangeFontSize:
		msg = &ChangeFontSize{}
	case TypeChangeNumberOfColumns:
		msg = &ChangeNumberOfColumns{}
	case TypeChangeScrollSpeed:
		msg = &ChangeScrollSpeed{}
	case TypeWindowSize:
		msg = &WindowSize{}
	case TypeHandleNavigationShortcut:
		msg = &HandleNavigationShortcut{}
	case TypeAnnotations:
		msg = &Annotation{}
	case TypeReplaceHighlights:
		msg = &ReplaceHighlights{}
	case TypeCopySelection:
		msg = &CopySelection{}
	case TypeToggleAutoscroll:
		msg = &ToggleAutoscroll{}
	case TypeGestureFromMargin:
		msg = &GestureFromMargin{}
	case TypeOverlayVisibility:
		msg = &OverlayVisibility{}
	case TypeKeyDown:
		msg = &KeyDown{}
	case TypeWheel:
		msg = &Wheel{}
	case TypeScroll:
		msg = &Scroll{}
	case TypeSelectionChanged:
		msg = &SelectionChanged{}
	case TypeLongPress:
		msg = &LongPress{}
	case TypeScriptError:
		msg = &ScriptError{}
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("unable to parse %q message: %w", env.Type, err)
	}
	return msg, nil
}

// PositionReport is the shared payload of update_cfi, report_cfi and
// update_progress_frac. CFI is null for progress-only updates; RequestID is
// echoed for get_current_cfi responses.
type PositionReport struct {
	Type             string            `json:"type"`
	CFI              *string           `json:"cfi"`
	ProgressFrac     float64           `json:"progress_frac"`
	FileProgressFrac float64           `json:"file_progress_frac"`
	PageCounts       layout.PageCounts `json:"page_counts"`
	RequestID        string            `json:"request_id,omitempty"`
}

type ContentLoaded struct {
	Type             string            `json:"type"`
	Name             string            `json:"name"`
	CFI              *string           `json:"cfi"`
	ProgressFrac     float64           `json:"progress_frac"`
	FileProgressFrac float64           `json:"file_progress_frac"`
	PageCounts       layout.PageCounts `json:"page_counts"`
}

type UpdateTOCPosition struct {
	Type   string `json:"type"`
	Anchor string `json:"anchor"`
}

type UpdateSelectionPosition struct {
	Type     string `json:"type"`
	StartCFI string `json:"start_cfi"`
	EndCFI   string `json:"end_cfi"`
}

// SelectionState reports the live selection upstream.
type SelectionState struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Collapsed bool   `json:"collapsed"`
	UUID      string `json:"uuid,omitempty"`
	Backwards bool   `json:"backwards,omitempty"`
	IsFind    bool   `json:"is_find,omitempty"`
}

// AnnotationResult reports highlight operation outcomes. MarkerID is null
// when the operation had nothing to act on.
type AnnotationResult struct {
	Type              string   `json:"type"`
	Sub               string   `json:"sub"`
	UUID              string   `json:"uuid,omitempty"`
	MarkerID          *int     `json:"marker_id"`
	OK                bool     `json:"ok"`
	RemovedHighlights []string `json:"removed_highlights,omitempty"`
	Text              string   `json:"text,omitempty"`
	Style             string   `json:"style,omitempty"`
	StartCFI          string   `json:"start_cfi,omitempty"`
	EndCFI            string   `json:"end_cfi,omitempty"`
}

type ErrorReport struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

type ShortcutForward struct {
	Type string          `json:"type"`
	Name string          `json:"name,omitempty"`
	Key  layout.KeyEvent `json:"key"`
}

type ShowChrome struct {
	Type string `json:"type"`
}

type BumpFontSize struct {
	Type  string `json:"type"`
	Delta int    `json:"delta"`
}

type ViewImage struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
}

type ShowFootnote struct {
	Type   string `json:"type"`
	Anchor string `json:"anchor"`
	Ref    int    `json:"ref,omitempty"`
	Text   string `json:"text,omitempty"`
}

type RequestSize struct {
	Type string `json:"type"`
}

type ColumnsChanged struct {
	Type    string `json:"type"`
	Columns int    `json:"columns"`
}

// CopyTextToClipboard is the host-side clipboard fallback when native copy
// fails.
type CopyTextToClipboard struct {
	Type string `json:"type"`
	Text string `json:"text"`
	HTML string `json:"html,omitempty"`
}

type SearchResultNotFound struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
