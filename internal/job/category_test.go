package job

import "testing"

func TestParseFileFunction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantCat  Category
		wantSide Side
	}{
		{"soldermask top", "SolderMask,Top", CategorySolderMask, SideTop},
		{"solderpaste bottom", "SolderPaste,Bot", CategorySolderPaste, SideBottom},
		{"copper with layer index", "Copper,L1,Top", CategoryCopper, SideTop},
		{"assembly normalizes", "Assembly,Top", CategoryAssemblyDrawing, SideTop},
		{"assemblydrawing verbatim", "AssemblyDrawing,Bot", CategoryAssemblyDrawing, SideBottom},
		{"glue", "Glue,Top", CategoryGlue, SideTop},
		{"profile has no side", "Profile,NP", CategoryProfile, SideUnknown},
		{"bottom spelled out", "Legend,Bottom", CategoryLegend, SideBottom},
		{"unknown head", "KeepOut,Top", CategoryUnknown, SideTop},
		{"empty", "", CategoryUnknown, SideUnknown},
		{"whitespace fields", " SolderMask , Top ", CategorySolderMask, SideTop},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cat, side := ParseFileFunction(tt.input)
			if cat != tt.wantCat || side != tt.wantSide {
				t.Errorf("ParseFileFunction(%q) = (%v, %v), want (%v, %v)",
					tt.input, cat, side, tt.wantCat, tt.wantSide)
			}
		})
	}
}

func TestGuessFromName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantCat  Category
		wantSide Side
	}{
		{"kicad front adhesive", "board-F_Adhes.gbr", CategoryGlue, SideTop},
		{"kicad back fab", "board-B_Fab.gbr", CategoryAssemblyDrawing, SideBottom},
		{"kicad front mask", "board-F_Mask.gbr", CategorySolderMask, SideTop},
		{"paste", "board-B_Paste.gbr", CategorySolderPaste, SideBottom},
		{"edge cuts", "board-Edge_Cuts.gbr", CategoryProfile, SideUnknown},
		{"protel outline", "board.GKO", CategoryProfile, SideUnknown},
		{"silkscreen", "board-F_SilkS.gbr", CategoryLegend, SideTop},
		{"protel top copper", "board.GTL", CategoryCopper, SideUnknown},
		{"unmatched", "notes.txt", CategoryUnknown, SideUnknown},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cat, side := GuessFromName(tt.input)
			if cat != tt.wantCat || side != tt.wantSide {
				t.Errorf("GuessFromName(%q) = (%v, %v), want (%v, %v)",
					tt.input, cat, side, tt.wantCat, tt.wantSide)
			}
		})
	}
}

func TestCategoryRank(t *testing.T) {
	t.Parallel()

	if CategoryGlue.Rank() >= CategoryAssemblyDrawing.Rank() {
		t.Error("glue must render below assembly drawings")
	}
	if CategorySolderMask.Rank() >= CategorySolderPaste.Rank() {
		t.Error("soldermask must render below solderpaste")
	}
	if !CategorySolderPaste.Valid() {
		t.Error("solderpaste must be a known category")
	}
	if Category("BOGUS").Valid() {
		t.Error("unlisted category must be invalid")
	}
}

func TestPalette(t *testing.T) {
	t.Parallel()

	p := DefaultPalette()
	if got := p.Color(CategoryGlue); got != "#FFFFFF" {
		t.Errorf("glue color = %s, want #FFFFFF", got)
	}
	if got := p.Color(Category("BOGUS")); got != "#808080" {
		t.Errorf("unknown fallback color = %s, want #808080", got)
	}
	if !CategoryProfile.PreservesBlack() || CategoryGlue.PreservesBlack() {
		t.Error("only profile and legend preserve black")
	}
}
