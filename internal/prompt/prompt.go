// Package prompt assembles the generation prompts sent to the language
// model. Each dataset kind gets its own variant so the model is steered
// toward the question angles that kind supports.
package prompt

import (
	"fmt"
	"strings"

	"github.com/qa-insight/qa-rag-server/internal/dataset"
)

// PreviewRowCap bounds the tabular preview embedded in a prompt so large
// workbooks stay inside the model's context window.
const PreviewRowCap = 60

// ComparisonInput carries the computed statistics of all six datasets for
// the cross-release pass. The comparison prompt works from statistics only;
// raw rows of six tables would not fit a single context.
type ComparisonInput struct {
	DefectStatsA string
	DefectStatsB string
	TestStatsA   string
	TestStatsB   string
	MetadataA    string
	MetadataB    string
}

// ForDefects builds the per-file generation prompt for a defect dataset.
func ForDefects(d *dataset.Dataset, statsText string) string {
	return fmt.Sprintf(`You are analyzing defect tracking data for %s from %s.

=== DATA (markdown table) ===
%s

=== COMPUTED STATISTICS ===
%s

Generate ALL questions a user might reasonably ask about this defect data.
Cover every angle:
- Overall counts and totals
- Component breakdown and which components are most/least affected
- Severity and priority distributions
- Open vs closed defects and resolution rates
- Specific defects by component, severity, priority, or status
- Date trends (when were most defects created / resolved?)
- Which defects are still open?
- Any notable patterns or outliers
- Questions about specific issue keys or summaries

Provide precise, data-backed answers.`,
		d.Release, d.SourceFile, renderTable(d), statsText)
}

// ForTests builds the per-file generation prompt for a test-execution dataset.
func ForTests(d *dataset.Dataset, statsText string) string {
	return fmt.Sprintf(`You are analyzing test execution data for %s from %s.

=== DATA (markdown table) ===
%s

=== COMPUTED STATISTICS ===
%s

Generate ALL questions a user might reasonably ask about this test execution data.
Cover every angle:
- Total runs and pass/fail/retest/blocked counts
- Pass rate and failure rate (as percentages)
- Which suites have the most failures or retests?
- Automation vs manual split
- Which testers ran the most tests?
- Tests linked to defects - which suites have linked defects?
- Longest/shortest execution times
- Specific test cases and their statuses
- Any test cases that need retesting?
- Patterns across suites or testers

Provide precise, data-backed answers.`,
		d.Release, d.SourceFile, renderTable(d), statsText)
}

// ForMetadata builds the per-file generation prompt for a release-metadata
// dataset. Metadata tables are small key/value sheets, so the rendered
// metadata text stands in for both preview and statistics.
func ForMetadata(d *dataset.Dataset, metadataText string) string {
	return fmt.Sprintf(`You are analyzing release metadata for %s from %s.

=== METADATA ===
%s

Generate ALL questions a user might ask about this release's metadata and
general information. Cover release name, dates, team size, scope, goals,
and any other metrics present.

Provide precise answers.`,
		d.Release, d.SourceFile, metadataText)
}

// ForComparison builds the single cross-release prompt. It must produce
// comparative questions spanning both releases, not per-release restatements.
func ForComparison(in ComparisonInput) string {
	return fmt.Sprintf(`You are comparing two software releases: Release A and Release B.

=== RELEASE A - DEFECT STATISTICS ===
%s

=== RELEASE B - DEFECT STATISTICS ===
%s

=== RELEASE A - TEST EXECUTION STATISTICS ===
%s

=== RELEASE B - TEST EXECUTION STATISTICS ===
%s

=== RELEASE A - METADATA ===
%s

=== RELEASE B - METADATA ===
%s

Generate ALL cross-release comparison questions a user might ask.
Cover every angle:
- Which release had more defects overall?
- How does severity/priority distribution differ between releases?
- Which components improved or worsened between releases?
- How do pass rates compare between releases?
- Which release had better test coverage?
- Which release had more automated tests?
- Overall quality trend: is Release B better or worse than Release A?
- How do open defect counts compare?
- Tester productivity comparison
- Suite-level comparison of failures

Provide precise, data-backed answers referencing both releases.`,
		in.DefectStatsA, in.DefectStatsB, in.TestStatsA, in.TestStatsB, in.MetadataA, in.MetadataB)
}

// renderTable renders the dataset as a markdown table, truncated at
// PreviewRowCap rows.
func renderTable(d *dataset.Dataset) string {
	var b strings.Builder

	b.WriteString("| " + strings.Join(d.Columns, " | ") + " |\n")
	sep := make([]string, len(d.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")

	limit := min(len(d.Rows), PreviewRowCap)
	for _, row := range d.Rows[:limit] {
		cells := make([]string, len(d.Columns))
		for i, col := range d.Columns {
			cells[i] = row[col]
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	if len(d.Rows) > limit {
		fmt.Fprintf(&b, "\n(%d of %d rows shown)", limit, len(d.Rows))
	}

	return strings.TrimRight(b.String(), "\n")
}
