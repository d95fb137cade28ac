package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nao1215/gerbenv/internal/config"
	"github.com/nao1215/gerbenv/internal/gerber"
	"github.com/nao1215/gerbenv/internal/job"
	"github.com/nao1215/gerbenv/internal/mask"
	"github.com/nao1215/gerbenv/internal/model"
	"github.com/nao1215/gerbenv/internal/render"
	"github.com/nao1215/gerbenv/internal/svgx"
)

// Conversion carries the in-memory intermediates that steps hand to
// each other during one project conversion: the parsed job, the split
// layer sets, and the parsed layers per board side.
//
// Design decision: intermediates live here rather than in model.Report
// because the report is serialized to JSON and the database, and parsed
// Gerber documents and RGBA canvases do not belong in either.
type Conversion struct {
	// ProjectDir is the project directory being converted.
	ProjectDir string

	// OutDir is where artifacts are written.
	OutDir string

	cfg     *config.Config
	palette job.Palette

	jobFile *job.Job
	split   *job.SplitResult

	// sides maps a board side to its ordered, parsed layers.
	sides map[job.Side][]render.Layer
}

// NewConversion creates the shared state for one project conversion.
// Per-project overrides from the config file are applied here so every
// step sees the effective settings.
func NewConversion(projectDir string, cfg *config.Config) *Conversion {
	eff := *cfg
	palette := job.DefaultPalette()

	if cfg.ProjectConfigs != nil {
		pc := cfg.ProjectConfigs.GetProjectConfig(filepath.Base(projectDir))
		if pc.UniformColor != "" {
			eff.UniformColor = pc.UniformColor
		}
		if pc.Background != "" {
			eff.Background = pc.Background
		}
		if pc.DPMM != 0 {
			eff.DPMM = pc.DPMM
		}
		if pc.ObservationSize != 0 {
			eff.ObservationSize = pc.ObservationSize
		}
		for cat, col := range pc.Colors {
			palette[job.Category(strings.ToUpper(cat))] = col
		}
	}

	outDir := eff.OutputDir
	if outDir == "" {
		outDir = filepath.Join(projectDir, "out")
	}

	return &Conversion{
		ProjectDir: projectDir,
		OutDir:     outDir,
		cfg:        &eff,
		palette:    palette,
		sides:      make(map[job.Side][]render.Layer),
	}
}

// sideName returns the lowercase file name token for a board side.
func sideName(s job.Side) string {
	return strings.ToLower(string(s))
}

// renderSides is the fixed side processing order.
var renderSides = []job.Side{job.SideTop, job.SideBottom}

// sideLayers returns the split layer set for a side.
func (c *Conversion) sideLayers(s job.Side) []job.Layer {
	if c.split == nil {
		return nil
	}
	if s == job.SideTop {
		return c.split.Front
	}
	return c.split.Back
}

// LoadJobStep locates and parses the .gbrjob file of the project and
// prepares the output directory.
type LoadJobStep struct {
	conv *Conversion

	// logger for structured logging.
	logger *slog.Logger
}

// LoadJobStepOption configures a LoadJobStep.
type LoadJobStepOption func(*LoadJobStep)

// WithLoadJobLogger sets a custom logger for the job loading step.
func WithLoadJobLogger(logger *slog.Logger) LoadJobStepOption {
	return func(s *LoadJobStep) {
		s.logger = logger
	}
}

// NewLoadJobStep creates a new job loading step.
func NewLoadJobStep(conv *Conversion, opts ...LoadJobStepOption) *LoadJobStep {
	s := &LoadJobStep{
		conv:   conv,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *LoadJobStep) Name() string {
	return "load_job"
}

// Do executes the job loading step.
func (s *LoadJobStep) Do(_ context.Context, report *model.Report) error {
	jobPath := s.conv.cfg.JobPath
	if jobPath == "" {
		matches, err := filepath.Glob(filepath.Join(s.conv.ProjectDir, "*.gbrjob"))
		if err != nil {
			return fmt.Errorf("failed to search for job file: %w", err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("no .gbrjob file in %s", s.conv.ProjectDir)
		}
		sort.Strings(matches)
		jobPath = matches[0]
	}

	j, err := job.Load(jobPath)
	if err != nil {
		if errors.Is(err, job.ErrNoLayers) {
			report.AddFinding(model.NewFinding(
				"no_layers",
				"Job Lists No Layers",
				"The job file contains an empty FilesAttributes list.",
				filepath.Base(jobPath),
				jobPath,
			))
		}
		return err
	}
	s.conv.jobFile = j

	report.JobPath = jobPath
	if name := j.GeneralSpecs.ProjectID.Name; name != "" {
		report.Project = name
	} else if report.Project == "" {
		report.Project = filepath.Base(s.conv.ProjectDir)
	}

	if err := os.MkdirAll(s.conv.OutDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	report.OutputDir = s.conv.OutDir

	s.logger.Debug("job loaded",
		"job", jobPath,
		"layers", len(j.FilesAttributes),
	)
	return nil
}

// PrepareLayersStep classifies the job's layers, applies the
// per-category transforms (assembly thickness filter, glue outline
// fill), and splits them into board sides.
type PrepareLayersStep struct {
	conv   *Conversion
	logger *slog.Logger
}

// NewPrepareLayersStep creates a new layer preparation step.
func NewPrepareLayersStep(conv *Conversion) *PrepareLayersStep {
	return &PrepareLayersStep{conv: conv, logger: slog.Default()}
}

// Name returns the step name.
func (s *PrepareLayersStep) Name() string {
	return "prepare_layers"
}

// Do executes the layer preparation step.
func (s *PrepareLayersStep) Do(_ context.Context, report *model.Report) error {
	j := s.conv.jobFile
	if j == nil {
		return errors.New("prepare_layers requires a loaded job")
	}

	// Verify every referenced file exists before transforming anything,
	// so a missing layer surfaces as one clear finding instead of a
	// mid-split failure.
	var missing bool
	for _, fa := range j.FilesAttributes {
		if fa.Path == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.conv.ProjectDir, fa.Path)); err != nil {
			missing = true
			report.AddFinding(model.NewFinding(
				"missing_layer_file",
				"Referenced Layer Missing",
				"The job file references a Gerber file that does not exist.",
				fa.Path,
				report.JobPath,
			))
		}
	}
	if missing {
		return fmt.Errorf("job references missing layer files")
	}

	opts := job.PrepareOptions{
		FilterAssemblyText: true,
		ThicknessMin:       s.conv.cfg.ThicknessMin,
		ThicknessMax:       s.conv.cfg.ThicknessMax,
		Fill: gerber.FillOptions{
			SnapTol:     s.conv.cfg.SnapTol,
			MaxSegLen:   s.conv.cfg.MaxSegLen,
			MaxAngleDeg: s.conv.cfg.MaxAngleDeg,
		},
	}

	res, err := job.Split(j, s.conv.ProjectDir, opts)
	if err != nil {
		if errors.Is(err, gerber.ErrNoOutline) {
			report.AddFinding(model.NewFinding(
				"open_glue_outline",
				"Glue Outline Produced No Region",
				"The glue layer's strokes never closed into a polygon.",
				"",
				report.JobPath,
			))
		}
		return err
	}
	s.conv.split = res

	prepared := make(map[string]job.PreparedFile, len(res.Prepared))
	for _, p := range res.Prepared {
		prepared[p.Source] = p
	}

	record := func(l job.Layer, side job.Side) {
		lr := model.LayerResult{
			Path:     l.Path,
			Category: string(l.Category),
			Side:     string(side),
			FromJob:  l.FromJob,
			Color:    s.conv.palette.Color(l.Category),
		}
		if l.Path != l.SourcePath {
			lr.SourcePath = l.SourcePath
		}
		if p, ok := prepared[l.SourcePath]; ok {
			lr.Polygons = p.Polygons
			lr.SuppressedDraws = p.SuppressedDraws
		}
		report.AddLayer(lr)
	}

	for _, l := range res.Front {
		record(l, job.SideTop)
		if l.Side == job.SideBottom {
			report.AddFinding(model.NewFinding(
				"mirrored_soldermask",
				"Soldermask Mirrored",
				"A bottom soldermask layer also renders on the top side.",
				l.SourcePath,
				"",
			))
		}
	}
	for _, l := range res.Back {
		if l.Side != job.SideBottom {
			// Mirrored top soldermask, already recorded under Front.
			continue
		}
		record(l, job.SideBottom)
	}
	for _, l := range res.Skipped {
		record(l, l.Side)
		report.SkippedLayers = append(report.SkippedLayers, l.SourcePath)

		switch {
		case l.Category == job.CategoryLegend || l.Category == job.CategoryCopper:
			report.AddFinding(model.NewFinding(
				"layer_excluded",
				"Layer Excluded From Environment",
				"Legend and copper layers are not part of the dispensing surface.",
				l.SourcePath,
				"",
			))
		case l.Category == job.CategoryUnknown:
			report.AddFinding(model.NewFinding(
				"unknown_category",
				"Layer Category Unresolved",
				"Neither the job file nor the filename identified the layer's function.",
				l.SourcePath,
				"",
			))
		default:
			report.AddFinding(model.NewFinding(
				"side_unresolved",
				"Layer Side Unresolved",
				"The layer has no top or bottom side and joins neither rendered side.",
				l.SourcePath,
				"",
			))
		}
	}

	for _, p := range res.Prepared {
		if p.SuppressedDraws > 0 {
			report.AddFinding(model.NewFinding(
				"suppressed_draws",
				"Assembly Draws Suppressed",
				fmt.Sprintf("%d draw commands fell outside the aperture thickness window.", p.SuppressedDraws),
				fmt.Sprintf("%d", p.SuppressedDraws),
				p.Source,
			))
		}
	}

	s.logger.Debug("layers prepared",
		"front", len(res.Front),
		"back", len(res.Back),
		"skipped", len(res.Skipped),
		"edited", len(res.Prepared),
	)
	return nil
}

// RenderStep parses each side's layers and writes the side SVG and PNG.
type RenderStep struct {
	conv *Conversion

	// byLayer additionally writes one PNG per layer.
	byLayer bool

	logger *slog.Logger
}

// RenderStepOption configures a RenderStep.
type RenderStepOption func(*RenderStep)

// WithRenderByLayer enables per-layer PNG output.
func WithRenderByLayer(byLayer bool) RenderStepOption {
	return func(s *RenderStep) {
		s.byLayer = byLayer
	}
}

// WithRenderLogger sets a custom logger for the render step.
func WithRenderLogger(logger *slog.Logger) RenderStepOption {
	return func(s *RenderStep) {
		s.logger = logger
	}
}

// NewRenderStep creates a new render step.
func NewRenderStep(conv *Conversion, opts ...RenderStepOption) *RenderStep {
	s := &RenderStep{
		conv:    conv,
		byLayer: conv.cfg.ByLayer,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *RenderStep) Name() string {
	return "render"
}

// Do executes the render step.
func (s *RenderStep) Do(ctx context.Context, report *model.Report) error {
	if s.conv.split == nil {
		return errors.New("render requires prepared layers")
	}

	parseOpts := gerber.ParseOptions{
		MaxSegLen:   s.conv.cfg.MaxSegLen,
		MaxAngleDeg: s.conv.cfg.MaxAngleDeg,
	}

	report.Unit = "mm"
	for _, side := range renderSides {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		layers := s.conv.sideLayers(side)
		if len(layers) == 0 {
			continue
		}

		ordered, colors := job.Order(layers, side, s.conv.palette)
		if s.conv.cfg.UniformColor != "" {
			colors = job.UniformColors(ordered, s.conv.cfg.UniformColor)
		}

		parsed, err := render.Load(s.conv.ProjectDir, ordered, colors, parseOpts)
		if err != nil {
			report.AddFinding(model.NewFinding(
				"parse_failed",
				"Layer Parse Failed",
				err.Error(),
				"",
				sideName(side),
			))
			return err
		}
		s.conv.sides[side] = parsed

		for _, l := range parsed {
			if !l.Doc.UnitMM {
				report.Unit = "inch"
				report.AddFinding(model.NewFinding(
					"unit_inches",
					"Inch Units Normalized",
					"The layer uses inch coordinates; values were converted to millimeters.",
					l.Path,
					"",
				))
			}
		}

		svgPath := filepath.Join(s.conv.OutDir, sideName(side)+".svg")
		if err := render.WriteSVGFile(svgPath, parsed); err != nil {
			return err
		}
		report.AddOutput(svgPath, "svg", string(side))

		img, err := render.Raster(parsed, s.conv.cfg.DPMM)
		if err != nil {
			return err
		}
		if s.conv.cfg.FillBackground {
			bg, err := render.ParseHexColor(s.conv.cfg.Background)
			if err != nil {
				return fmt.Errorf("invalid background color: %w", err)
			}
			img = render.FillBackground(img, bg)
		}
		pngPath := filepath.Join(s.conv.OutDir, sideName(side)+".png")
		if err := render.SavePNG(pngPath, img); err != nil {
			return err
		}
		report.AddOutput(pngPath, "png", string(side))

		if s.byLayer {
			if err := s.renderByLayer(side, parsed, report); err != nil {
				return err
			}
		}

		s.logger.Debug("side rendered",
			"side", sideName(side),
			"layers", len(parsed),
		)
	}
	return nil
}

// renderByLayer writes one PNG per layer of a side.
func (s *RenderStep) renderByLayer(side job.Side, parsed []render.Layer, report *model.Report) error {
	for i, l := range parsed {
		img, err := render.Raster([]render.Layer{l}, s.conv.cfg.DPMM)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("%s_layer%02d_%s.png", sideName(side), i, strings.ToLower(string(l.Category)))
		path := filepath.Join(s.conv.OutDir, name)
		if err := render.SavePNG(path, img); err != nil {
			return err
		}
		report.AddOutput(path, "png", string(side))
	}
	return nil
}

// CompositeStep renders per-category composite images sized for
// observation export. Only the categories that feed the observation
// string (glue, soldermask, solderpaste) are written.
type CompositeStep struct {
	conv   *Conversion
	logger *slog.Logger
}

// NewCompositeStep creates a new composite rendering step.
func NewCompositeStep(conv *Conversion) *CompositeStep {
	return &CompositeStep{conv: conv, logger: slog.Default()}
}

// Name returns the step name.
func (s *CompositeStep) Name() string {
	return "composites"
}

// observationCategories are the composite categories the observation
// string consumes.
var observationCategories = map[job.Category]bool{
	job.CategoryGlue:        true,
	job.CategorySolderMask:  true,
	job.CategorySolderPaste: true,
}

// Do executes the composite step.
func (s *CompositeStep) Do(ctx context.Context, report *model.Report) error {
	if !s.conv.cfg.Composites {
		s.logger.Debug("composites disabled, skipping")
		return nil
	}

	for _, side := range renderSides {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		parsed := s.conv.sides[side]
		if len(parsed) == 0 {
			continue
		}

		order, groups := render.CompositeGroups(parsed)
		for _, cat := range order {
			if !observationCategories[cat] {
				continue
			}
			img, err := render.Raster(groups[cat], s.conv.cfg.DPMM)
			if err != nil {
				return err
			}
			fitted, err := render.FitSquare(img, s.conv.cfg.ObservationSize)
			if err != nil {
				return err
			}
			path := filepath.Join(s.conv.OutDir, mask.ObservationFile(sideName(side), string(cat)))
			if err := render.SavePNG(path, fitted); err != nil {
				return err
			}
			report.AddOutput(path, "composite", string(side))
		}
	}
	return nil
}

// ShapesStep flattens each side SVG into the JSON shape records used by
// downstream geometry tooling.
type ShapesStep struct {
	conv   *Conversion
	logger *slog.Logger
}

// NewShapesStep creates a new shape flattening step.
func NewShapesStep(conv *Conversion) *ShapesStep {
	return &ShapesStep{conv: conv, logger: slog.Default()}
}

// Name returns the step name.
func (s *ShapesStep) Name() string {
	return "shapes"
}

// Do executes the shape flattening step.
func (s *ShapesStep) Do(_ context.Context, report *model.Report) error {
	for _, side := range renderSides {
		svgPath := filepath.Join(s.conv.OutDir, sideName(side)+".svg")
		if _, err := os.Stat(svgPath); err != nil {
			continue
		}

		doc, err := svgx.FlattenFile(svgPath, svgx.DefaultFlattenOptions())
		if err != nil {
			return fmt.Errorf("failed to flatten %s: %w", filepath.Base(svgPath), err)
		}
		svgx.SortObjects(doc)

		jsonPath := filepath.Join(s.conv.OutDir, sideName(side)+"_shapes.json")
		if err := doc.Save(jsonPath); err != nil {
			return err
		}
		report.AddOutput(jsonPath, "shapes", string(side))

		s.logger.Debug("shapes flattened",
			"side", sideName(side),
			"objects", len(doc.Objects),
		)
	}
	return nil
}

// ObservationStep concatenates the per-category composite grids of each
// side into the observation string a training run reads.
type ObservationStep struct {
	conv   *Conversion
	logger *slog.Logger
}

// NewObservationStep creates a new observation export step.
func NewObservationStep(conv *Conversion) *ObservationStep {
	return &ObservationStep{conv: conv, logger: slog.Default()}
}

// Name returns the step name.
func (s *ObservationStep) Name() string {
	return "observation"
}

// Do executes the observation export step.
func (s *ObservationStep) Do(_ context.Context, report *model.Report) error {
	for _, side := range renderSides {
		if len(s.conv.sides[side]) == 0 {
			continue
		}

		obs, err := mask.Observation(s.conv.OutDir, sideName(side))
		if err != nil {
			if errors.Is(err, mask.ErrEmptyObservation) {
				report.AddFinding(model.NewFinding(
					"empty_observation",
					"No Observation Images",
					"No composite image exists for the side.",
					sideName(side),
					s.conv.OutDir,
				))
				continue
			}
			return err
		}

		path := filepath.Join(s.conv.OutDir, sideName(side)+"_observation.txt")
		if err := os.WriteFile(path, []byte(obs), 0600); err != nil {
			return fmt.Errorf("failed to write observation: %w", err)
		}
		report.AddOutput(path, "observation", string(side))

		cells := s.conv.cfg.ObservationSize * s.conv.cfg.ObservationSize
		categories := 0
		if cells > 0 {
			categories = len(obs) / cells
		}
		report.AddObservation(string(side), len(obs), categories)
	}
	return nil
}

// RouteCheckStep verifies that the solder paste pads of each side are
// mutually reachable across the free cells of the soldermask composite.
// Pads separated by blocked cells become findings, since a dispensing
// agent can never travel between them.
type RouteCheckStep struct {
	conv   *Conversion
	logger *slog.Logger
}

// RouteCheckStepOption configures a RouteCheckStep.
type RouteCheckStepOption func(*RouteCheckStep)

// WithRouteCheckLogger sets a custom logger for the route check step.
func WithRouteCheckLogger(logger *slog.Logger) RouteCheckStepOption {
	return func(s *RouteCheckStep) {
		s.logger = logger
	}
}

// NewRouteCheckStep creates a new routability check step.
func NewRouteCheckStep(conv *Conversion, opts ...RouteCheckStepOption) *RouteCheckStep {
	s := &RouteCheckStep{conv: conv, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *RouteCheckStep) Name() string {
	return "route_check"
}

// Do executes the routability check.
func (s *RouteCheckStep) Do(_ context.Context, report *model.Report) error {
	for _, side := range renderSides {
		pastePath := filepath.Join(s.conv.OutDir, mask.ObservationFile(sideName(side), string(job.CategorySolderPaste)))
		if _, err := os.Stat(pastePath); err != nil {
			continue
		}

		pasteGrid, err := mask.FromImageFile(pastePath)
		if err != nil {
			return err
		}
		pads := mask.BlockedComponents(pasteGrid)
		if len(pads) < 2 {
			continue
		}

		// The obstacle field is the soldermask composite; without one
		// the side is fully open and every pad pair is reachable.
		obstaclePath := filepath.Join(s.conv.OutDir, mask.ObservationFile(sideName(side), string(job.CategorySolderMask)))
		field := mask.NewGrid(pasteGrid.W, pasteGrid.H)
		if _, err := os.Stat(obstaclePath); err == nil {
			field, err = mask.FromImageFile(obstaclePath)
			if err != nil {
				return err
			}
		}

		pairs := mask.UnreachablePairs(field, pads)
		for _, pair := range pairs {
			report.AddFinding(model.NewFinding(
				"unroutable_paste_pads",
				"Paste Pads Unreachable",
				"No free path exists between two solder paste pads.",
				fmt.Sprintf("%s-%s", pair[0], pair[1]),
				sideName(side),
			))
		}

		s.logger.Debug("route check done",
			"side", sideName(side),
			"pads", len(pads),
			"unreachable_pairs", len(pairs),
		)
	}
	return nil
}

// DefaultPipeline creates a pipeline with all conversion steps for one
// project directory, in their standard order.
//
// Design decision: We provide a default pipeline because:
// 1. Most users want the full conversion
// 2. Reduces boilerplate in the CLI
// 3. Ensures consistent step ordering
func DefaultPipeline(projectDir string, cfg *config.Config, pipelineOpts ...Option) *Pipeline {
	p := New(pipelineOpts...)
	conv := NewConversion(projectDir, cfg)

	p.AddSteps(
		NewLoadJobStep(conv),
		NewPrepareLayersStep(conv),
		NewRenderStep(conv),
		NewCompositeStep(conv),
		NewShapesStep(conv),
		NewObservationStep(conv),
		NewRouteCheckStep(conv),
	)
	return p
}
