// Package dataset locates and loads the tabular QA-tracking workbooks that
// feed the ingestion pipeline.
package dataset

// Release identifies a software delivery cycle under comparison.
type Release string

const (
	ReleaseA Release = "ReleaseA"
	ReleaseB Release = "ReleaseB"
)

// Kind classifies a source table.
type Kind string

const (
	KindDefect        Kind = "defect"
	KindTestExecution Kind = "test_execution"
	KindMetadata      Kind = "metadata"
)

// Dataset is one loaded workbook: an ordered header plus rows keyed by
// column name. Immutable once loaded for a run.
type Dataset struct {
	Release    Release
	Kind       Kind
	SourceFile string // base name of the workbook the data came from
	Columns    []string
	Rows       []Row
}

// Row maps column name to cell value. Missing cells are empty strings.
type Row map[string]string

// Len returns the number of data rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// Bundle holds the six datasets a full ingestion run operates on.
type Bundle struct {
	DefectsA *Dataset
	TestsA   *Dataset
	MetaA    *Dataset
	DefectsB *Dataset
	TestsB   *Dataset
	MetaB    *Dataset
}

// All returns the bundle's datasets in pass order: ReleaseA then ReleaseB,
// each as defects, test execution, metadata.
func (b *Bundle) All() []*Dataset {
	return []*Dataset{b.DefectsA, b.TestsA, b.MetaA, b.DefectsB, b.TestsB, b.MetaB}
}
