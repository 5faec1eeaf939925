package host

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeRouting(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want any
	}{
		{"display", `{"type":"display","book_id":"b","title":"T","spine":[{"name":"ch01","length":10}],"spine_index":0}`, &Display{}},
		{"find", `{"type":"find","text":"needle","backwards":true}`, &Find{}},
		{"get_current_cfi", `{"type":"get_current_cfi","request_id":"r-1"}`, &GetCurrentCFI{}},
		{"annotations", `{"type":"annotations","sub":"apply-highlight","uuid":"u1"}`, &Annotation{}},
		{"scroll", `{"type":"scroll","frac":0.25}`, &Scroll{}},
		{"keydown", `{"type":"keydown","key":{"key":"PageDown"}}`, &KeyDown{}},
		{"script_error", `{"type":"script_error","origin":"self","message":"boom","line":3}`, &ScriptError{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := Decode([]byte(c.raw))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if gotT, wantT := typeName(got), typeName(c.want); gotT != wantT {
				t.Errorf("decoded %s, want %s", gotT, wantT)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *Display:
		return "Display"
	case *Find:
		return "Find"
	case *GetCurrentCFI:
		return "GetCurrentCFI"
	case *Annotation:
		return "Annotation"
	case *Scroll:
		return "Scroll"
	case *KeyDown:
		return "KeyDown"
	case *ScriptError:
		return "ScriptError"
	default:
		return "unknown"
	}
}

func TestDecodeFields(t *testing.T) {
	raw := `{"type":"display","book_id":"b-1","title":"Title","spine":[{"name":"a","length":100},{"name":"b","length":300}],"spine_index":1,"initial_position":{"kind":"frac","frac":0.5}}`
	msg, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	d, ok := msg.(*Display)
	if !ok {
		t.Fatalf("decoded %T", msg)
	}
	if len(d.Spine) != 2 || d.Spine[1].Length != 300 || d.SpineIndex != 1 {
		t.Errorf("spine decoded wrong: %+v", d)
	}
	if d.Initial == nil || d.Initial.Kind != InitialFrac || d.Initial.Frac != 0.5 {
		t.Errorf("initial position decoded wrong: %+v", d.Initial)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte(`{"type":"no_such_message"}`)); err == nil {
		t.Error("unknown type accepted")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("non-JSON accepted")
	}
}

func TestPositionReportNullCFI(t *testing.T) {
	// progress-only updates must serialize cfi as an explicit null
	data, err := json.Marshal(PositionReport{
		Type:         TypeUpdateProgressFrac,
		ProgressFrac: 0.625,
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"cfi":null`) {
		t.Errorf("null cfi not serialized: %s", data)
	}
}

func TestPositionReportEchoesRequestID(t *testing.T) {
	cfi := "epubcfi(/2!/4/1:0)"
	data, err := json.Marshal(PositionReport{
		Type:      TypeReportCFI,
		CFI:       &cfi,
		RequestID: "req-42",
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if back["request_id"] != "req-42" {
		t.Errorf("request_id not echoed: %s", data)
	}
	if back["cfi"] != cfi {
		t.Errorf("cfi lost: %s", data)
	}
}

func TestAnnotationResultNullMarker(t *testing.T) {
	data, err := json.Marshal(AnnotationResult{
		Type: TypeAnnotationsResult,
		Sub:  AnnResultApplied,
		OK:   false,
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"marker_id":null`) {
		t.Errorf("null marker_id not serialized: %s", data)
	}
	if !strings.Contains(string(data), `"ok":false`) {
		t.Errorf("ok flag lost: %s", data)
	}
}
