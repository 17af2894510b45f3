package storage

import "errors"

var (
	ErrQdrantUnreachable = errors.New("qdrant server unreachable")
	ErrNoCollection      = errors.New("qa collection does not exist yet")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
