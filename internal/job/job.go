package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrNoLayers is returned when a job file lists no usable layers.
var ErrNoLayers = errors.New("job file lists no layer files")

// FileAttributes describes one layer entry in a .gbrjob file.
type FileAttributes struct {
	Path         string `json:"Path"`
	FileFunction string `json:"FileFunction"`
	FilePolarity string `json:"FilePolarity"`
}

// GeneralSpecs carries the board-level fields of a .gbrjob file that the
// converter reports on.
type GeneralSpecs struct {
	ProjectID struct {
		Name string `json:"Name"`
	} `json:"ProjectId"`
	LayerNumber int `json:"LayerNumber"`
}

// Job is a parsed KiCad .gbrjob file.
type Job struct {
	GeneralSpecs    GeneralSpecs     `json:"GeneralSpecs"`
	FilesAttributes []FileAttributes `json:"FilesAttributes"`
}

// Load reads and parses a .gbrjob file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided job path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", filepath.Base(path), err)
	}
	if len(j.FilesAttributes) == 0 {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNoLayers)
	}
	return &j, nil
}

// editPrefixRe strips the working prefixes the converter and humans put
// in front of layer files, so an edited copy still matches its job entry.
var editPrefixRe = regexp.MustCompile(`(?i)^(edit_|copy_of_|tmp_|temp_|test_)+`)

func normalizeName(name string) string {
	return editPrefixRe.ReplaceAllString(strings.ToLower(filepath.Base(name)), "")
}

// coreSuffix trims any non-alphanumeric prefix, leaving the part of a
// filename that survives export tools prepending markers.
func coreSuffix(name string) string {
	base := filepath.Base(name)
	for i, r := range base {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return strings.ToLower(base[i:])
		}
	}
	return strings.ToLower(base)
}

// Attributes returns the job entry for relPath, or nil when none
// matches. Matching tries the exact path first, then progressively looser
// filename forms: prefix-normalized, core suffix, plain base name.
func (j *Job) Attributes(relPath string) *FileAttributes {
	for i := range j.FilesAttributes {
		if j.FilesAttributes[i].Path == relPath {
			return &j.FilesAttributes[i]
		}
	}

	norm := normalizeName(relPath)
	core := coreSuffix(relPath)
	base := strings.ToLower(filepath.Base(relPath))

	var byCore, byBase *FileAttributes
	for i := range j.FilesAttributes {
		fa := &j.FilesAttributes[i]
		if normalizeName(fa.Path) == norm {
			return fa
		}
		if byCore == nil && coreSuffix(fa.Path) == core {
			byCore = fa
		}
		if byBase == nil && strings.ToLower(filepath.Base(fa.Path)) == base {
			byBase = fa
		}
	}
	if byCore != nil {
		return byCore
	}
	return byBase
}

// Classify returns the category and side for relPath, preferring the job
// file's FileFunction and falling back to filename heuristics. The
// second return value reports whether the job file had a matching entry.
func (j *Job) Classify(relPath string) (Category, Side, bool) {
	if fa := j.Attributes(relPath); fa != nil {
		cat, side := ParseFileFunction(fa.FileFunction)
		if side == SideUnknown {
			_, side = GuessFromName(relPath)
		}
		return cat, side, true
	}
	cat, side := GuessFromName(relPath)
	return cat, side, false
}
