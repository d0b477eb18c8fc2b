// Package vectors stores embedded text chunks in named collections and
// answers nearest-neighbour queries against them.
package vectors

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrUnsupportedMetric  = errors.New("unsupported distance metric")
	ErrUnknownBackend     = errors.New("unknown vector backend")
)

// Metric is the distance function a collection is searched with.
type Metric string

const MetricCosine Metric = "cosine"

// Record is one stored chunk.
type Record struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Match is a query result. Score is the cosine similarity to the query,
// higher is closer.
type Match struct {
	Record
	Score float64 `json:"score"`
}

// Store is the vector store collaborator.
type Store interface {
	CreateCollection(ctx context.Context, id string, dim int, metric Metric) error
	Upsert(ctx context.Context, id string, records []Record) error
	Query(ctx context.Context, id string, embedding []float32, k int) ([]Match, error)
	Exists(ctx context.Context, id string) (bool, error)
}

func checkCollection(id string, dim int, metric Metric) error {
	if id == "" {
		return fmt.Errorf("%w: empty collection id", ErrCollectionNotFound)
	}
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, dim)
	}
	if metric != MetricCosine {
		return fmt.Errorf("%w: %s", ErrUnsupportedMetric, metric)
	}
	return nil
}

func checkDimension(want int, vec []float32) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
