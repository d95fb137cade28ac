package job

import (
	"os"
	"path/filepath"
	"testing"
)

const glueLayer = `%FSLAX46Y46*%
%MOMM*%
%ADD10C,0.100000*%
D10*
X0Y0D02*
X5000000Y0D01*
X5000000Y5000000D01*
X0Y5000000D01*
X0Y0D01*
M02*
`

const fabLayer = `G04 fab top*
%FSLAX46Y46*%
%MOMM*%
%ADD10C,0.100000*%
%ADD11C,0.150000*%
G01*
D10*
X0Y0D02*
X1000000Y0D01*
D11*
X2000000Y0D02*
X3000000Y0D01*
M02*
`

const plainLayer = `%FSLAX46Y46*%
%MOMM*%
%ADD10C,0.200000*%
D10*
X0Y0D02*
X1000000Y1000000D01*
M02*
`

func writeLayers(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		content := plainLayer
		switch {
		case name == "demo-F_Adhes.gbr":
			content = glueLayer
		case name == "demo-F_Fab.gbr":
			content = fabLayer
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jobPath := writeJobFile(t, dir, sampleJob)
	writeLayers(t, dir,
		"demo-F_Adhes.gbr", "demo-F_Fab.gbr", "demo-F_Mask.gbr",
		"demo-B_Mask.gbr", "demo-F_Paste.gbr", "demo-F_SilkS.gbr",
		"demo-F_Cu.gbr", "demo-Edge_Cuts.gbr",
	)

	j, err := Load(jobPath)
	if err != nil {
		t.Fatal(err)
	}

	res, err := Split(j, dir, DefaultPrepareOptions())
	if err != nil {
		t.Fatalf("Split returned error: %v", err)
	}

	// Front: glue, fab, both masks, paste. Back: both masks.
	if len(res.Front) != 5 {
		t.Errorf("front has %d layers, want 5: %+v", len(res.Front), res.Front)
	}
	if len(res.Back) != 2 {
		t.Errorf("back has %d layers, want 2: %+v", len(res.Back), res.Back)
	}

	frontCats := map[Category]int{}
	for _, l := range res.Front {
		frontCats[l.Category]++
	}
	if frontCats[CategorySolderMask] != 2 {
		t.Errorf("front soldermask count = %d, want both sides mirrored", frontCats[CategorySolderMask])
	}
	for _, l := range res.Front {
		if l.Category == CategoryLegend || l.Category == CategoryCopper {
			t.Errorf("excluded category %v present on front", l.Category)
		}
	}

	// Legend, copper, and the side-less profile all land in Skipped.
	if len(res.Skipped) != 3 {
		t.Errorf("skipped has %d layers, want 3: %+v", len(res.Skipped), res.Skipped)
	}

	// Glue and assembly drawing must have edit_ copies on disk.
	if len(res.Prepared) != 2 {
		t.Fatalf("prepared has %d entries, want 2: %+v", len(res.Prepared), res.Prepared)
	}
	for _, p := range res.Prepared {
		if _, err := os.Stat(filepath.Join(dir, p.Output)); err != nil {
			t.Errorf("prepared file %s missing: %v", p.Output, err)
		}
	}
	for _, l := range res.Front {
		switch l.Category {
		case CategoryGlue, CategoryAssemblyDrawing:
			if l.Path != "edit_"+l.SourcePath {
				t.Errorf("%v layer path = %s, want edit_ copy", l.Category, l.Path)
			}
		default:
			if l.Path != l.SourcePath {
				t.Errorf("%v layer path = %s, want untouched source", l.Category, l.Path)
			}
		}
	}
}

func TestSplitMissingLayerFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jobPath := writeJobFile(t, dir, sampleJob)
	// demo-F_Adhes.gbr is not written, so the glue fill must fail.

	j, err := Load(jobPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Split(j, dir, DefaultPrepareOptions()); err == nil {
		t.Fatal("expected error for missing glue layer file")
	}
}

func TestOrder(t *testing.T) {
	t.Parallel()

	layers := []Layer{
		{Path: "paste", Category: CategorySolderPaste, Side: SideTop},
		{Path: "mask-b", Category: CategorySolderMask, Side: SideBottom},
		{Path: "glue", Category: CategoryGlue, Side: SideTop},
		{Path: "fab", Category: CategoryAssemblyDrawing, Side: SideTop},
		{Path: "stray-bottom", Category: CategorySolderPaste, Side: SideBottom},
	}

	ordered, colors := Order(layers, SideTop, DefaultPalette())

	wantPaths := []string{"glue", "fab", "mask-b", "paste"}
	if len(ordered) != len(wantPaths) {
		t.Fatalf("ordered has %d layers, want %d: %+v", len(ordered), len(wantPaths), ordered)
	}
	for i, want := range wantPaths {
		if ordered[i].Path != want {
			t.Errorf("ordered[%d] = %s, want %s", i, ordered[i].Path, want)
		}
	}
	if colors[0] != "#FFFFFF" || colors[3] != "#0000FF" {
		t.Errorf("unexpected palette: %v", colors)
	}
}

func TestUniformColors(t *testing.T) {
	t.Parallel()

	layers := []Layer{
		{Category: CategoryGlue},
		{Category: CategoryProfile},
		{Category: CategorySolderPaste},
	}
	colors := UniformColors(layers, "#FF00FF")
	want := []string{"#FF00FF", "#000000", "#FF00FF"}
	for i, w := range want {
		if colors[i] != w {
			t.Errorf("colors[%d] = %s, want %s", i, colors[i], w)
		}
	}
}
