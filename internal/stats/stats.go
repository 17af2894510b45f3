// Package stats computes deterministic text summaries of QA-tracking
// datasets. The summaries are embedded in generation prompts so the model
// answers from computed facts rather than re-deriving counts itself.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/qa-insight/qa-rag-server/internal/dataset"
)

// Columns the summarizers tally. A dataset missing one of these has the
// wrong shape and the pass that needs it fails.
var (
	defectTallyColumns = []string{"Component", "Severity", "Priority", "Status"}
	testTallyColumns   = []string{"Suite", "Status", "Tester", "Automation"}
)

// dateLayouts covers the renderings excelize produces for date cells plus
// plain ISO dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01-02-06",
	"1/2/06 15:04",
	"01/02/2006",
	"2006/01/02",
}

// DefectStats summarizes a defect dataset: totals, per-column tallies,
// open/closed split, and the created-date range.
func DefectStats(d *dataset.Dataset) (string, error) {
	if err := requireColumns(d, append([]string{"Created Date"}, defectTallyColumns...)); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total defects: %d\n", d.Len())
	for _, col := range defectTallyColumns {
		b.WriteString(tallyLine(d, col))
	}

	open, closed := 0, 0
	for _, row := range d.Rows {
		if row["Status"] == "Closed" {
			closed++
		} else {
			open++
		}
	}
	fmt.Fprintf(&b, "Open: %d  |  Closed: %d\n", open, closed)

	minDate, maxDate, err := dateRange(d, "Created Date")
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "Date range: %s to %s", minDate.Format("2006-01-02"), maxDate.Format("2006-01-02"))

	return b.String(), nil
}

// TestStats summarizes a test-execution dataset: totals, per-column tallies,
// and defect-linkage counts.
func TestStats(d *dataset.Dataset) (string, error) {
	if err := requireColumns(d, append([]string{"Linked Defect ID"}, testTallyColumns...)); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total test runs: %d\n", d.Len())
	for _, col := range testTallyColumns {
		b.WriteString(tallyLine(d, col))
	}

	linked := 0
	for _, row := range d.Rows {
		if row["Linked Defect ID"] != "" {
			linked++
		}
	}
	fmt.Fprintf(&b, "Runs linked to a defect: %d  |  No linked defect: %d", linked, d.Len()-linked)

	return b.String(), nil
}

// MetadataText renders a metadata dataset's Metric/Value pairs one per line,
// skipping rows with an empty value.
func MetadataText(d *dataset.Dataset) (string, error) {
	if err := requireColumns(d, []string{"Metric", "Value"}); err != nil {
		return "", err
	}

	lines := make([]string, 0, d.Len())
	for _, row := range d.Rows {
		if row["Value"] == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", row["Metric"], row["Value"]))
	}
	return strings.Join(lines, "\n"), nil
}

// tallyLine renders "Col: v1 (n1), v2 (n2)" with values ordered by count
// descending, ties broken alphabetically, so output is stable run to run.
func tallyLine(d *dataset.Dataset, col string) string {
	counts := make(map[string]int)
	for _, row := range d.Rows {
		if v := row[col]; v != "" {
			counts[v]++
		}
	}

	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})

	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%s (%d)", v, counts[v]))
	}
	return fmt.Sprintf("%s: %s\n", col, strings.Join(parts, ", "))
}

// dateRange parses every value in the column and returns min/max. An
// unparseable non-empty cell is a data-shape error.
func dateRange(d *dataset.Dataset, col string) (time.Time, time.Time, error) {
	var minDate, maxDate time.Time
	seen := false

	for _, row := range d.Rows {
		raw := row[col]
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("column %q: %w", col, err)
		}
		if !seen || t.Before(minDate) {
			minDate = t
		}
		if !seen || t.After(maxDate) {
			maxDate = t
		}
		seen = true
	}

	if !seen {
		return time.Time{}, time.Time{}, fmt.Errorf("column %q has no date values", col)
	}
	return minDate, maxDate, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

func requireColumns(d *dataset.Dataset, cols []string) error {
	have := make(map[string]bool, len(d.Columns))
	for _, c := range d.Columns {
		have[c] = true
	}
	for _, c := range cols {
		if !have[c] {
			return fmt.Errorf("dataset %s is missing column %q", d.SourceFile, c)
		}
	}
	return nil
}
