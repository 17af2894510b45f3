package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSearchFilter_NoInputs(t *testing.T) {
	f := NewSearchFilter("", "")
	assert.True(t, f.IsZero())
	assert.Nil(t, f.qdrantFilter(), "empty filter must match everything")
}

func TestNewSearchFilter_ReleaseOnly(t *testing.T) {
	f := NewSearchFilter("ReleaseA", "")
	require.False(t, f.IsZero())

	qf := f.qdrantFilter()
	require.NotNil(t, qf)
	require.Len(t, qf.Must, 1)
	cond := qf.Must[0].GetField()
	require.NotNil(t, cond)
	assert.Equal(t, "release", cond.Key)
	assert.Equal(t, "ReleaseA", cond.GetMatch().GetKeyword())
}

func TestNewSearchFilter_DocTypeOnly(t *testing.T) {
	f := NewSearchFilter("", "defect")

	qf := f.qdrantFilter()
	require.NotNil(t, qf)
	require.Len(t, qf.Must, 1)
	cond := qf.Must[0].GetField()
	require.NotNil(t, cond)
	assert.Equal(t, "doc_type", cond.Key)
	assert.Equal(t, "defect", cond.GetMatch().GetKeyword())
}

// TestNewSearchFilter_Both verifies both conditions land under Must, i.e.
// logical AND.
func TestNewSearchFilter_Both(t *testing.T) {
	f := NewSearchFilter("ReleaseB", "test_execution")

	qf := f.qdrantFilter()
	require.NotNil(t, qf)
	require.Len(t, qf.Must, 2)

	keys := map[string]string{}
	for _, c := range qf.Must {
		field := c.GetField()
		require.NotNil(t, field)
		keys[field.Key] = field.GetMatch().GetKeyword()
	}
	assert.Equal(t, map[string]string{
		"release":  "ReleaseB",
		"doc_type": "test_execution",
	}, keys)
}

// TestNewSearchFilter_Placeholders verifies unfilled-form sentinel values
// normalize to absent.
func TestNewSearchFilter_Placeholders(t *testing.T) {
	cases := []struct {
		name     string
		release  string
		docType  string
		wantZero bool
	}{
		{"swagger placeholder", "string", "string", true},
		{"all sentinel", "all", "all", true},
		{"mixed placeholder and real", "string", "defect", false},
		{"real values", "ReleaseA", "defect", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewSearchFilter(tc.release, tc.docType)
			assert.Equal(t, tc.wantZero, f.IsZero())
		})
	}

	f := NewSearchFilter("string", "defect")
	assert.Empty(t, f.Release)
	assert.Equal(t, "defect", f.DocType)
}

// TestNewSearchFilter_Idempotent verifies building twice with identical
// inputs yields equal filters.
func TestNewSearchFilter_Idempotent(t *testing.T) {
	a := NewSearchFilter("ReleaseA", "metadata")
	b := NewSearchFilter("ReleaseA", "metadata")
	assert.Equal(t, a, b)
}
