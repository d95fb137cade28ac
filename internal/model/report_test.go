package model

import (
	"errors"
	"testing"
)

func TestNewReport(t *testing.T) {
	t.Parallel()

	r := NewReport("sample-board", "gerber/sample.gbrjob")
	if r.Project != "sample-board" {
		t.Errorf("Project = %q, want sample-board", r.Project)
	}
	if r.JobPath != "gerber/sample.gbrjob" {
		t.Errorf("JobPath = %q", r.JobPath)
	}
	if r.DateConverted.IsZero() {
		t.Error("DateConverted must be set")
	}
	if r.SimpleReport != nil {
		t.Error("SimpleReport should be nil until a finding arrives")
	}
}

func TestReportAddFinding(t *testing.T) {
	t.Parallel()

	r := NewReport("p", "p.gbrjob")
	r.AddLayer(LayerResult{Path: "glue.gbr", Category: "GLUE", Side: "TOP"})

	f := NewFinding("missing_layer_file", "Layer Missing", "referenced file absent", "mask.gbr", "p.gbrjob")
	r.AddFinding(f)
	r.AddFinding(f) // duplicate ignored
	r.AddFinding(NewFinding("unit_inches", "Inch Units", "normalized to mm", "", "glue.gbr"))

	sr := r.SimpleReport
	if sr == nil {
		t.Fatal("AddFinding must initialize SimpleReport")
	}
	if got := len(sr.Findings); got != 2 {
		t.Fatalf("findings = %d, want 2 (duplicate dropped)", got)
	}
	if sr.CriticalCount != 1 || sr.InfoCount != 1 {
		t.Errorf("counts = critical %d info %d, want 1 and 1", sr.CriticalCount, sr.InfoCount)
	}
	if sr.LayersProcessed != 1 {
		t.Errorf("LayersProcessed = %d, want 1", sr.LayersProcessed)
	}
	if sr.Findings[0].Impact == "" || sr.Findings[0].SeverityText != "CRITICAL" {
		t.Errorf("finding not enriched from catalog: %+v", sr.Findings[0])
	}
}

func TestReportLayersBySide(t *testing.T) {
	t.Parallel()

	r := NewReport("p", "p.gbrjob")
	r.AddLayer(LayerResult{Path: "a.gbr", Side: "TOP"})
	r.AddLayer(LayerResult{Path: "b.gbr", Side: "BOT"})
	r.AddLayer(LayerResult{Path: "c.gbr", Side: "TOP"})

	top := r.LayersBySide("TOP")
	if len(top) != 2 || top[0].Path != "a.gbr" || top[1].Path != "c.gbr" {
		t.Errorf("LayersBySide(TOP) = %+v", top)
	}
	if got := r.LayersBySide("LEFT"); got != nil {
		t.Errorf("LayersBySide(LEFT) = %+v, want nil", got)
	}
}

func TestNewSimpleReport(t *testing.T) {
	t.Parallel()

	r := NewReport("p", "p.gbrjob")
	r.AddLayer(LayerResult{Path: "a.gbr"})
	r.AddLayer(LayerResult{Path: "b.gbr"})
	r.AddOutput("out/top.svg", "svg", "TOP")
	r.AddObservation("TOP", 128*128*2, 2)
	r.Error = errors.New("render failed")
	r.AddFinding(NewFinding("unroutable_paste_pads", "Pads Unroutable", "", "(1,2)-(9,9)", ""))

	sr := NewSimpleReport(r)
	if sr.LayersProcessed != 2 {
		t.Errorf("LayersProcessed = %d, want 2", sr.LayersProcessed)
	}
	if sr.OutputsWritten != 1 {
		t.Errorf("OutputsWritten = %d, want 1", sr.OutputsWritten)
	}
	if sr.Error != "render failed" {
		t.Errorf("Error = %q", sr.Error)
	}
	if sr.HighCount != 1 || sr.TotalFindings() != 1 {
		t.Errorf("finding counts wrong: high %d total %d", sr.HighCount, sr.TotalFindings())
	}
	if !sr.HasFindings() {
		t.Error("HasFindings() = false, want true")
	}

	high := sr.GetFindingsBySeverity(SeverityHigh)
	if len(high) != 1 || high[0].Type != "unroutable_paste_pads" {
		t.Errorf("GetFindingsBySeverity(high) = %+v", high)
	}
	if got := sr.GetFindingsBySeverity(SeverityCritical); len(got) != 0 {
		t.Errorf("GetFindingsBySeverity(critical) = %+v, want none", got)
	}
}

func TestReportAddObservation(t *testing.T) {
	t.Parallel()

	r := NewReport("p", "p.gbrjob")
	r.AddObservation("BOT", 49152, 3)
	if len(r.Observations) != 1 {
		t.Fatalf("observations = %d, want 1", len(r.Observations))
	}
	o := r.Observations[0]
	if o.Side != "BOT" || o.Cells != 49152 || o.Categories != 3 {
		t.Errorf("observation = %+v", o)
	}
}
