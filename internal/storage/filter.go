package storage

import "github.com/qdrant/go-client/qdrant"

// SearchFilter is the optional structured predicate applied to a similarity
// search. Empty fields mean "no constraint"; both fields set means both must
// match.
type SearchFilter struct {
	Release string
	DocType string
}

// placeholder values UIs submit for "unfilled". They normalize to absent.
var placeholderValues = map[string]bool{
	"":       true,
	"string": true, // swagger-ui default for an optional string field
	"all":    true,
}

// NewSearchFilter builds a filter from raw user input, normalizing
// placeholder values to absent. Pure and total; building the same filter
// twice yields an equal filter.
func NewSearchFilter(release, docType string) SearchFilter {
	f := SearchFilter{}
	if !placeholderValues[release] {
		f.Release = release
	}
	if !placeholderValues[docType] {
		f.DocType = docType
	}
	return f
}

// IsZero reports whether the filter constrains nothing.
func (f SearchFilter) IsZero() bool {
	return f.Release == "" && f.DocType == ""
}

// qdrantFilter converts the filter to a qdrant predicate. Conditions under
// Must combine with logical AND; a nil return matches everything.
func (f SearchFilter) qdrantFilter() *qdrant.Filter {
	var must []*qdrant.Condition
	if f.Release != "" {
		must = append(must, qdrant.NewMatch("release", f.Release))
	}
	if f.DocType != "" {
		must = append(must, qdrant.NewMatch("doc_type", f.DocType))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}
