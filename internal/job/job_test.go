package job

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleJob = `{
  "GeneralSpecs": {
    "ProjectId": {"Name": "demo"},
    "LayerNumber": 2
  },
  "FilesAttributes": [
    {"Path": "demo-F_Adhes.gbr", "FileFunction": "Glue,Top", "FilePolarity": "Positive"},
    {"Path": "demo-F_Fab.gbr", "FileFunction": "AssemblyDrawing,Top", "FilePolarity": "Positive"},
    {"Path": "demo-F_Mask.gbr", "FileFunction": "SolderMask,Top", "FilePolarity": "Negative"},
    {"Path": "demo-B_Mask.gbr", "FileFunction": "SolderMask,Bot", "FilePolarity": "Negative"},
    {"Path": "demo-F_Paste.gbr", "FileFunction": "SolderPaste,Top", "FilePolarity": "Positive"},
    {"Path": "demo-F_SilkS.gbr", "FileFunction": "Legend,Top", "FilePolarity": "Positive"},
    {"Path": "demo-F_Cu.gbr", "FileFunction": "Copper,L1,Top", "FilePolarity": "Positive"},
    {"Path": "demo-Edge_Cuts.gbr", "FileFunction": "Profile,NP", "FilePolarity": "Positive"}
  ]
}`

func writeJobFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "demo-job.gbrjob")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("valid job file", func(t *testing.T) {
		t.Parallel()

		path := writeJobFile(t, t.TempDir(), sampleJob)
		j, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if j.GeneralSpecs.ProjectID.Name != "demo" {
			t.Errorf("project name = %s, want demo", j.GeneralSpecs.ProjectID.Name)
		}
		if len(j.FilesAttributes) != 8 {
			t.Errorf("got %d layer entries, want 8", len(j.FilesAttributes))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		if _, err := Load(filepath.Join(t.TempDir(), "absent.gbrjob")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()

		path := writeJobFile(t, t.TempDir(), "{not json")
		if _, err := Load(path); err == nil {
			t.Fatal("expected error for invalid JSON")
		}
	})

	t.Run("no layers", func(t *testing.T) {
		t.Parallel()

		path := writeJobFile(t, t.TempDir(), `{"FilesAttributes": []}`)
		if _, err := Load(path); err == nil {
			t.Fatal("expected error for empty layer list")
		}
	})
}

func TestJobAttributes(t *testing.T) {
	t.Parallel()

	path := writeJobFile(t, t.TempDir(), sampleJob)
	j, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		query    string
		wantPath string
		wantNil  bool
	}{
		{"exact path", "demo-F_Mask.gbr", "demo-F_Mask.gbr", false},
		{"edit prefix stripped", "edit_demo-F_Adhes.gbr", "demo-F_Adhes.gbr", false},
		{"copy prefix stripped", "copy_of_demo-F_Fab.gbr", "demo-F_Fab.gbr", false},
		{"case-insensitive base name", "DEMO-F_PASTE.GBR", "demo-F_Paste.gbr", false},
		{"subdirectory base match", "gerbers/demo-B_Mask.gbr", "demo-B_Mask.gbr", false},
		{"no match", "other-board.gbr", "", true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fa := j.Attributes(tt.query)
			if tt.wantNil {
				if fa != nil {
					t.Fatalf("Attributes(%q) = %v, want nil", tt.query, fa)
				}
				return
			}
			if fa == nil {
				t.Fatalf("Attributes(%q) = nil, want %s", tt.query, tt.wantPath)
			}
			if fa.Path != tt.wantPath {
				t.Errorf("Attributes(%q).Path = %s, want %s", tt.query, fa.Path, tt.wantPath)
			}
		})
	}
}

func TestJobClassify(t *testing.T) {
	t.Parallel()

	path := writeJobFile(t, t.TempDir(), sampleJob)
	j, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	cat, side, fromJob := j.Classify("demo-F_Mask.gbr")
	if cat != CategorySolderMask || side != SideTop || !fromJob {
		t.Errorf("Classify(mask) = (%v, %v, %v), want (SOLDERMASK, TOP, true)", cat, side, fromJob)
	}

	cat, side, fromJob = j.Classify("stray-B_Paste.gbr")
	if cat != CategorySolderPaste || side != SideBottom || fromJob {
		t.Errorf("Classify(stray) = (%v, %v, %v), want (SOLDERPASTE, BOT, false)", cat, side, fromJob)
	}
}
