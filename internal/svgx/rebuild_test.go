package svgx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func rebuildFixture() *Doc {
	return &Doc{
		Size: Size{WidthPx: 100, HeightPx: 100},
		Objects: []Record{
			{
				Kind:  KindBaseShape,
				Type:  TypeRect,
				Attrs: map[string]float64{"x": 10, "y": 10, "width": 30, "height": 2},
				TransformOps: []TransformOp{
					{Type: OpRotate, AngleDeg: 45, Cx: 25, Cy: 11, Centered: true},
				},
			},
			{
				Kind:  KindBaseShape,
				Type:  TypeCircle,
				Attrs: map[string]float64{"cx": 50, "cy": 50, "r": 5},
			},
			{
				Kind:  KindBaseShape,
				Type:  TypeCircle,
				Attrs: map[string]float64{"cx": 20, "cy": 20, "r": 0.5},
			},
			{
				Kind:  KindBaseShape,
				Type:  TypeEllipse,
				Attrs: map[string]float64{"cx": 70, "cy": 70, "rx": 4, "ry": 2},
			},
			{
				Kind:  KindBaseShape,
				Type:  TypeText,
				Attrs: map[string]float64{"x": 5, "y": 95},
				Text:  "R5",
			},
		},
	}
}

func TestRebuild(t *testing.T) {
	t.Parallel()

	out := Rebuild(rebuildFixture(), DefaultRebuildOptions())

	for _, want := range []string{
		`viewBox="0 0 100 100"`,
		`<g id="all">`,
		`<g id="small_circles">`,
		`transform="rotate(45 25 11)"`,
		`fill="#ff0000" fill-opacity="0.5"`,
		`<circle cx="50" cy="50" r="5" fill="#0066cc"`,
		`<circle cx="20" cy="20" r="0.5" fill="#00aa00"`,
		`<ellipse cx="70" cy="70" rx="4" ry="2" fill="#cc6600"`,
		`<text x="5" y="95" fill="#000000"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Rebuild() output missing %s", want)
		}
	}

	// The small circle belongs to its own group, after the all group.
	allIdx := strings.Index(out, `<g id="all">`)
	smallGroupIdx := strings.Index(out, `<g id="small_circles">`)
	smallIdx := strings.Index(out, `#00aa00`)
	bigIdx := strings.Index(out, `#0066cc`)
	if !(allIdx < bigIdx && bigIdx < smallGroupIdx && smallGroupIdx < smallIdx) {
		t.Errorf("group ordering wrong: all=%d big=%d smallGroup=%d small=%d",
			allIdx, bigIdx, smallGroupIdx, smallIdx)
	}
}

func TestRebuildFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "rebuilt.svg")
	if err := RebuildFile(rebuildFixture(), path, DefaultRebuildOptions()); err != nil {
		t.Fatalf("RebuildFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `<g id="all">`) {
		t.Error("written file missing all group")
	}
}

func TestFnum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     float64
		digits int
		want   string
	}{
		{2.5000, 4, "2.5"},
		{-0.00001, 4, "0"},
		{1.23456, 4, "1.2346"},
		{10, 4, "10"},
		{-3.5, 4, "-3.5"},
	}
	for _, tt := range tests {
		if got := fnum(tt.in, tt.digits); got != tt.want {
			t.Errorf("fnum(%v, %d) = %q, want %q", tt.in, tt.digits, got, tt.want)
		}
	}
}

func TestSortObjects(t *testing.T) {
	t.Parallel()

	doc := &Doc{Objects: []Record{
		{Type: TypeText},
		{Type: TypeCircle, Attrs: map[string]float64{"r": 1}},
		{Type: TypeCircle, Attrs: map[string]float64{"r": 9}},
		{Type: TypeRect},
	}}
	SortObjects(doc)

	wantTypes := []string{TypeRect, TypeCircle, TypeCircle, TypeText}
	for i, w := range wantTypes {
		if doc.Objects[i].Type != w {
			t.Fatalf("object %d type = %q, want %q", i, doc.Objects[i].Type, w)
		}
	}
	if doc.Objects[1].Attrs["r"] != 9 {
		t.Errorf("circles not sorted by descending radius: first r = %v", doc.Objects[1].Attrs["r"])
	}
}
