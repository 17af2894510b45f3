package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrDatasetNotFound indicates no workbook matched an expected pattern.
	ErrDatasetNotFound = errors.New("no workbook matches dataset pattern")
	// ErrAmbiguousDataset indicates more than one workbook matched a pattern.
	ErrAmbiguousDataset = errors.New("multiple workbooks match dataset pattern")
)

// spec names one required workbook: its release, kind, and the filename
// fragment used to locate it.
type spec struct {
	release Release
	kind    Kind
	name    string
}

// requiredSpecs enumerates the six workbooks every ingestion run needs.
var requiredSpecs = []spec{
	{ReleaseA, KindDefect, "ReleaseA_Defects"},
	{ReleaseA, KindTestExecution, "ReleaseA_TestExecution"},
	{ReleaseA, KindMetadata, "ReleaseA_Meta"},
	{ReleaseB, KindDefect, "ReleaseB_Defects"},
	{ReleaseB, KindTestExecution, "ReleaseB_TestExecution"},
	{ReleaseB, KindMetadata, "ReleaseB_Meta"},
}

// Loader resolves and reads workbooks from the documents directory.
type Loader struct {
	docsDir string
}

// NewLoader creates a loader rooted at the given documents directory.
func NewLoader(docsDir string) *Loader {
	return &Loader{docsDir: docsDir}
}

// LoadAll resolves and loads all six required workbooks. Any resolution or
// read failure aborts the whole load; callers must not start generation on a
// partial bundle.
func (l *Loader) LoadAll() (*Bundle, error) {
	bundle := &Bundle{}
	targets := []**Dataset{
		&bundle.DefectsA, &bundle.TestsA, &bundle.MetaA,
		&bundle.DefectsB, &bundle.TestsB, &bundle.MetaB,
	}

	for i, sp := range requiredSpecs {
		ds, err := l.load(sp)
		if err != nil {
			return nil, err
		}
		*targets[i] = ds
	}

	return bundle, nil
}

// load resolves one spec to exactly one file and reads it.
func (l *Loader) load(sp spec) (*Dataset, error) {
	path, err := l.resolve(sp.name)
	if err != nil {
		return nil, err
	}

	columns, rows, err := readWorkbook(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	return &Dataset{
		Release:    sp.release,
		Kind:       sp.kind,
		SourceFile: filepath.Base(path),
		Columns:    columns,
		Rows:       rows,
	}, nil
}

// resolve finds the single workbook matching *<name>*.xlsx in the docs
// directory. Zero or multiple matches is a fatal resolution error.
func (l *Loader) resolve(name string) (string, error) {
	pattern := filepath.Join(l.docsDir, "*"+name+"*.xlsx")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", pattern, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: *%s*.xlsx in %s", ErrDatasetNotFound, name, l.docsDir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: *%s*.xlsx matched %d files in %s",
			ErrAmbiguousDataset, name, len(matches), l.docsDir)
	}
}

// readWorkbook reads the first sheet of an .xlsx file. The first row is the
// header; remaining rows become Rows keyed by header name. Trailing empty
// cells excelize omits are filled with empty strings.
func readWorkbook(path string) ([]string, []Row, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}

	raw, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	columns := make([]string, 0, len(raw[0]))
	for _, h := range raw[0] {
		columns = append(columns, strings.TrimSpace(h))
	}

	rows := make([]Row, 0, len(raw)-1)
	for _, cells := range raw[1:] {
		row := make(Row, len(columns))
		for i, col := range columns {
			if col == "" {
				continue
			}
			if i < len(cells) {
				row[col] = strings.TrimSpace(cells[i])
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return columns, rows, nil
}
