package job

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/nao1215/gerbenv/internal/gerber"
)

// Layer is one classified layer file ready for rendering.
type Layer struct {
	// Path is the layer file path relative to the project directory,
	// pointing at the prepared (edit_) copy when one was written.
	Path string

	// SourcePath is the path as listed in the job file.
	SourcePath string

	Category Category
	Side     Side

	// FromJob reports whether classification came from the job file
	// rather than filename heuristics.
	FromJob bool
}

// PrepareOptions tunes the per-layer transforms Split applies before a
// layer joins a side.
type PrepareOptions struct {
	// FilterAssemblyText enables thickness filtering of assembly
	// drawings, keeping outlines and dropping dimension text.
	FilterAssemblyText bool

	// ThicknessMin and ThicknessMax bound the aperture diameters kept
	// on assembly drawings, in millimeters.
	ThicknessMin float64
	ThicknessMax float64

	// Fill tunes glue outline to region conversion.
	Fill gerber.FillOptions
}

// DefaultPrepareOptions returns the transforms applied to KiCad exports:
// assembly text dropped via the 0.1mm courtyard pen width, glue outlines
// filled with the default tolerances.
func DefaultPrepareOptions() PrepareOptions {
	return PrepareOptions{
		FilterAssemblyText: true,
		ThicknessMin:       0.1,
		ThicknessMax:       0.1,
		Fill:               gerber.DefaultFillOptions(),
	}
}

// PreparedFile records one edit_ file Split wrote.
type PreparedFile struct {
	Source   string   `json:"source"`
	Output   string   `json:"output"`
	Category Category `json:"category"`

	// Polygons is the closed loop count for filled glue layers.
	Polygons int `json:"polygons,omitempty"`

	// SuppressedDraws is the degraded draw count for filtered
	// assembly drawings.
	SuppressedDraws int `json:"suppressed_draws,omitempty"`
}

// SplitResult is the outcome of dividing a job into board sides.
type SplitResult struct {
	Front    []Layer
	Back     []Layer
	Prepared []PreparedFile

	// Skipped lists job entries left out of both sides: legend and
	// copper layers, and layers without a usable side.
	Skipped []Layer
}

// Split divides the job's layers into front and back sets, applying the
// per-category transforms on the way: assembly drawings are thickness
// filtered and glue outlines are converted to filled regions, each into
// an edit_ copy next to the source file. Soldermask layers appear on
// both sides so each side sees the full pad picture. Legend and copper
// layers are excluded.
func Split(j *Job, projectDir string, opts PrepareOptions) (*SplitResult, error) {
	res := &SplitResult{}

	for _, fa := range j.FilesAttributes {
		if fa.Path == "" {
			continue
		}
		cat, side := ParseFileFunction(fa.FileFunction)
		if side == SideUnknown {
			_, side = GuessFromName(fa.Path)
		}

		layer := Layer{
			Path:       fa.Path,
			SourcePath: fa.Path,
			Category:   cat,
			Side:       side,
			FromJob:    true,
		}

		switch cat {
		case CategoryAssemblyDrawing:
			if opts.FilterAssemblyText {
				edited, summary, err := filterAssembly(projectDir, fa.Path, opts)
				if err != nil {
					return nil, err
				}
				layer.Path = edited
				res.Prepared = append(res.Prepared, PreparedFile{
					Source:          fa.Path,
					Output:          edited,
					Category:        cat,
					SuppressedDraws: summary.SuppressedDraws,
				})
			}
		case CategoryGlue:
			edited, summary, err := fillGlue(projectDir, fa.Path, opts)
			if err != nil {
				return nil, err
			}
			layer.Path = edited
			res.Prepared = append(res.Prepared, PreparedFile{
				Source:   fa.Path,
				Output:   edited,
				Category: cat,
				Polygons: summary.ClosedPolygons,
			})
		}

		switch {
		case cat == CategoryLegend || cat == CategoryCopper:
			res.Skipped = append(res.Skipped, layer)
		case side == SideTop:
			res.Front = append(res.Front, layer)
			if cat == CategorySolderMask {
				res.Back = append(res.Back, layer)
			}
		case side == SideBottom:
			res.Back = append(res.Back, layer)
			if cat == CategorySolderMask {
				res.Front = append(res.Front, layer)
			}
		default:
			res.Skipped = append(res.Skipped, layer)
		}
	}
	return res, nil
}

func filterAssembly(projectDir, rel string, opts PrepareOptions) (string, *gerber.FilterSummary, error) {
	edited := editName(rel)
	summary, err := gerber.FilterByThicknessFile(
		filepath.Join(projectDir, rel),
		filepath.Join(projectDir, edited),
		opts.ThicknessMin, opts.ThicknessMax,
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to filter assembly drawing %s: %w", rel, err)
	}
	return edited, summary, nil
}

func fillGlue(projectDir, rel string, opts PrepareOptions) (string, *gerber.FillSummary, error) {
	edited := editName(rel)
	summary, err := gerber.FillOutlineFile(
		filepath.Join(projectDir, rel),
		filepath.Join(projectDir, edited),
		opts.Fill,
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to fill glue outline %s: %w", rel, err)
	}
	return edited, summary, nil
}

// editName places the edit_ prefix on the filename part of rel.
func editName(rel string) string {
	dir, base := filepath.Split(rel)
	return dir + "edit_" + base
}

// Order sorts layers bottom-to-top by category rank, keeping the job
// file order within a category, and returns the matching palette colors.
// Layers whose side contradicts hint are dropped, except soldermask
// which renders on both sides.
func Order(layers []Layer, hint Side, palette Palette) ([]Layer, []string) {
	kept := make([]Layer, 0, len(layers))
	for _, l := range layers {
		if hint != SideUnknown && l.Side != SideUnknown && l.Side != hint {
			if l.Category != CategorySolderMask {
				continue
			}
		}
		kept = append(kept, l)
	}

	sort.SliceStable(kept, func(i, k int) bool {
		return kept[i].Category.Rank() < kept[k].Category.Rank()
	})

	colors := make([]string, len(kept))
	for i, l := range kept {
		colors[i] = palette.Color(l.Category)
	}
	return kept, colors
}

// UniformColors returns the palette for a uniform recolor: every layer
// takes the uniform color except categories that preserve black.
func UniformColors(layers []Layer, uniform string) []string {
	colors := make([]string, len(layers))
	for i, l := range layers {
		if l.Category.PreservesBlack() {
			colors[i] = "#000000"
			continue
		}
		colors[i] = uniform
	}
	return colors
}
