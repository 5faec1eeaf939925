package cfi

import "testing"

func TestStringParseRoundTrip(t *testing.T) {
	cases := []Position{
		{Spine: 0, Steps: []int{2, 4, 1}, Offset: 15},
		{Spine: 1, Steps: []int{2}, Offset: -1},
		{Spine: 12, Steps: []int{2, 2, 6, 3}, Offset: 0},
		{Spine: 0, Steps: nil, Offset: -1},
	}

	for _, want := range cases {
		t.Run(want.String(), func(t *testing.T) {
			got, err := Parse(want.String())
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", want.String(), err)
			}
			if Compare(got, want) != 0 || got.Spine != want.Spine || got.Offset != want.Offset {
				t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
			}
			if len(got.Steps) != len(want.Steps) {
				t.Fatalf("steps mismatch: got %v, want %v", got.Steps, want.Steps)
			}
		})
	}
}

func TestStringFormat(t *testing.T) {
	p := Position{Spine: 1, Steps: []int{2, 6, 1}, Offset: 15}
	want := "epubcfi(/4!/2/6/1:15)"
	if p.String() != want {
		t.Errorf("String() = %q, want %q", p.String(), want)
	}

	noOffset := Position{Spine: 0, Steps: []int{4}, Offset: -1}
	if noOffset.String() != "epubcfi(/2!/4)" {
		t.Errorf("String() = %q, want epubcfi(/2!/4)", noOffset.String())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"epubcfi(",
		"epubcfi()",
		"epubcfi(/x!/2)",
		"epubcfi(/3!/2)",  // odd spine step
		"epubcfi(/4!/2:)", // empty offset
		"epubcfi(/4!/0)",  // zero step
		"epubcfi(/4!/2/-4)",
		"/4!/2",
	}
	for _, s := range bad {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) should have failed", s)
		}
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		name string
		a, b Position
		want int
	}{
		{"spine_order", Position{Spine: 0, Steps: []int{8}}, Position{Spine: 1, Steps: []int{2}}, -1},
		{"step_order", Position{Spine: 0, Steps: []int{2, 4}}, Position{Spine: 0, Steps: []int{2, 6}}, -1},
		{"prefix_first", Position{Spine: 0, Steps: []int{2}}, Position{Spine: 0, Steps: []int{2, 2}}, -1},
		{"offset_order", Position{Spine: 0, Steps: []int{2, 1}, Offset: 3}, Position{Spine: 0, Steps: []int{2, 1}, Offset: 9}, -1},
		{"missing_offset_is_zero", Position{Spine: 0, Steps: []int{2, 1}, Offset: -1}, Position{Spine: 0, Steps: []int{2, 1}, Offset: 0}, 0},
		{"equal", Position{Spine: 2, Steps: []int{2, 4, 1}, Offset: 7}, Position{Spine: 2, Steps: []int{2, 4, 1}, Offset: 7}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Compare(tc.a, tc.b); got != tc.want {
				t.Errorf("Compare() = %d, want %d", got, tc.want)
			}
			if got := Compare(tc.b, tc.a); got != -tc.want {
				t.Errorf("Compare() reversed = %d, want %d", got, -tc.want)
			}
		})
	}
}
