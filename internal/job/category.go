package job

import (
	"path/filepath"
	"strings"
)

// Category is the functional class of a Gerber layer.
type Category string

// Layer categories, named after the KiCad FileFunction heads.
const (
	CategoryGlue            Category = "GLUE"
	CategoryAssemblyDrawing Category = "ASSEMBLYDRAWING"
	CategorySolderMask      Category = "SOLDERMASK"
	CategorySolderPaste     Category = "SOLDERPASTE"
	CategoryProfile         Category = "PROFILE"
	CategoryLegend          Category = "LEGEND"
	CategoryCopper          Category = "COPPER"
	CategoryUnknown         Category = "UNKNOWN"
)

// Side is the board side a layer belongs to.
type Side string

// Board sides. SideUnknown marks layers whose side could not be
// determined from either the job file or the filename.
const (
	SideTop     Side = "TOP"
	SideBottom  Side = "BOT"
	SideUnknown Side = ""
)

// stackOrder is the bottom-to-top rendering order. Glue renders first so
// it acts as the background; paste renders last so pads stay visible.
var stackOrder = []Category{
	CategoryGlue,
	CategoryAssemblyDrawing,
	CategorySolderMask,
	CategorySolderPaste,
	CategoryProfile,
	CategoryLegend,
	CategoryCopper,
	CategoryUnknown,
}

// Rank returns the stacking rank of c, lower renders first.
// Unlisted categories sort last.
func (c Category) Rank() int {
	for i, cat := range stackOrder {
		if cat == c {
			return i
		}
	}
	return len(stackOrder)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c.Rank() < len(stackOrder)
}

// Palette maps categories to hex colors.
type Palette map[Category]string

// DefaultPalette returns the per-category colors used by default:
// white glue background, red obstacles (mask, assembly), blue paste,
// black profile and legend.
func DefaultPalette() Palette {
	return Palette{
		CategoryGlue:            "#FFFFFF",
		CategoryAssemblyDrawing: "#FF0000",
		CategorySolderMask:      "#FF0000",
		CategorySolderPaste:     "#0000FF",
		CategoryProfile:         "#000000",
		CategoryLegend:          "#000000",
		CategoryCopper:          "#FFFFFF",
		CategoryUnknown:         "#808080",
	}
}

// Color returns the color for c, falling back to the Unknown color.
func (p Palette) Color(c Category) string {
	if col, ok := p[c]; ok {
		return col
	}
	return p[CategoryUnknown]
}

// PreservesBlack reports whether c keeps its black color when a uniform
// recolor is applied. Board outlines and silkscreen stay black so they
// survive recoloring.
func (c Category) PreservesBlack() bool {
	return c == CategoryProfile || c == CategoryLegend
}

// ParseFileFunction classifies a KiCad FileFunction attribute value such
// as "SolderMask,Top" or "Copper,L1,Top". The "Assembly" head is
// normalized to AssemblyDrawing. The side is taken from any trailing
// Top/Bot/Bottom token.
func ParseFileFunction(fileFunction string) (Category, Side) {
	parts := strings.Split(fileFunction, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	if len(fields) == 0 {
		return CategoryUnknown, SideUnknown
	}

	cat := Category(strings.ToUpper(fields[0]))
	if cat == "ASSEMBLY" {
		cat = CategoryAssemblyDrawing
	}
	if !cat.Valid() {
		cat = CategoryUnknown
	}

	side := SideUnknown
	for _, f := range fields[1:] {
		switch strings.ToUpper(f) {
		case "TOP":
			side = SideTop
		case "BOT", "BOTTOM":
			side = SideBottom
		}
	}
	return cat, side
}

// GuessFromName classifies a layer by its filename when the job file has
// no matching attribute. The patterns follow KiCad and Protel layer
// naming conventions.
func GuessFromName(name string) (Category, Side) {
	nm := strings.ToUpper(filepath.Base(name))

	side := SideUnknown
	switch {
	case topLikeName(nm):
		side = SideTop
	case bottomLikeName(nm):
		side = SideBottom
	}

	var cat Category
	switch {
	case strings.Contains(nm, "ADHES") || strings.Contains(nm, "GLUE"):
		cat = CategoryGlue
	case strings.Contains(nm, "FAB") || strings.Contains(nm, "ASSEMBLY"):
		cat = CategoryAssemblyDrawing
	case strings.Contains(nm, "MASK"):
		cat = CategorySolderMask
	case strings.Contains(nm, "PASTE"):
		cat = CategorySolderPaste
	case strings.Contains(nm, "EDGE") || strings.Contains(nm, "PROFILE") ||
		strings.Contains(nm, "OUTLINE") || strings.Contains(nm, "GKO"):
		cat = CategoryProfile
	case strings.Contains(nm, "SILK") || strings.Contains(nm, "LEGEND"):
		cat = CategoryLegend
	case strings.Contains(nm, "CU") || strings.Contains(nm, "COPPER") ||
		strings.HasSuffix(nm, ".GTL") || strings.HasSuffix(nm, ".GBL"):
		cat = CategoryCopper
	default:
		cat = CategoryUnknown
	}
	return cat, side
}

func topLikeName(upper string) bool {
	return strings.Contains(upper, "F_") || strings.Contains(upper, "-F_") ||
		strings.Contains(upper, "TOP")
}

func bottomLikeName(upper string) bool {
	return strings.Contains(upper, "B_") || strings.Contains(upper, "-B_") ||
		strings.Contains(upper, "BOT") || strings.Contains(upper, "BOTTOM")
}
