// Package index splits report text into chunks and stores their
// embeddings in a fresh vector collection per report.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/hemalyze/internal/embedding"
	"github.com/JaimeStill/hemalyze/internal/vectors"
)

var (
	// ErrNoText indicates there was no text to index.
	ErrNoText = errors.New("no text available for indexing")
	// ErrNoChunks indicates splitting produced nothing to store.
	ErrNoChunks = errors.New("no chunks produced")
	// ErrInconsistentEmbeddings indicates the embedder returned vectors of
	// differing length for one document.
	ErrInconsistentEmbeddings = errors.New("inconsistent embedding dimensions")
)

// UnknownSource tags chunks whose document has no location.
const UnknownSource = "unknown"

// CollectionPrefix starts every collection identifier.
const CollectionPrefix = "report_"

// Indexer embeds and stores report chunks.
type Indexer struct {
	embedder    embedding.Embedder
	store       vectors.Store
	splitter    Splitter
	concurrency int
	logger      *slog.Logger
	tracer      trace.Tracer
}

// New creates an Indexer. concurrency bounds in-flight embedding calls.
func New(
	embedder embedding.Embedder,
	store vectors.Store,
	splitter Splitter,
	concurrency int,
	logger *slog.Logger,
) *Indexer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Indexer{
		embedder:    embedder,
		store:       store,
		splitter:    splitter,
		concurrency: concurrency,
		logger:      logger.With("system", "index"),
		tracer:      otel.Tracer("github.com/JaimeStill/hemalyze/internal/index"),
	}
}

// NewCollectionID returns a fresh collection identifier.
func NewCollectionID() string {
	return CollectionPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Index stores text in a new collection and returns its identifier.
// Every call creates a distinct collection. On failure no identifier is
// returned.
func (ix *Indexer) Index(ctx context.Context, raw, source string) (id string, err error) {
	ctx, span := ix.tracer.Start(ctx, "index.Index")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if strings.TrimSpace(raw) == "" {
		return "", ErrNoText
	}
	if source == "" {
		source = UnknownSource
	}

	chunks := ix.splitter.Split(raw, source)
	if len(chunks) == 0 {
		return "", ErrNoChunks
	}
	span.SetAttributes(attribute.Int("index.chunks", len(chunks)))

	embeddings, err := ix.embed(ctx, chunks)
	if err != nil {
		return "", err
	}

	id = NewCollectionID()
	if err := ix.store.CreateCollection(ctx, id, len(embeddings[0]), vectors.MetricCosine); err != nil {
		return "", fmt.Errorf("create collection: %w", err)
	}

	records := make([]vectors.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectors.Record{
			ID:        strconv.Itoa(i),
			Text:      c.Text,
			Embedding: embeddings[i],
			Metadata: map[string]string{
				"source":      c.Source,
				"chunk_index": strconv.Itoa(i),
				"offset":      strconv.Itoa(c.Offset),
			},
		}
	}

	if err := ix.store.Upsert(ctx, id, records); err != nil {
		return "", fmt.Errorf("store chunks: %w", err)
	}

	span.SetAttributes(attribute.String("index.collection", id))
	ix.logger.InfoContext(ctx, "report indexed", "collection", id, "chunks", len(chunks))
	return id, nil
}

func (ix *Indexer) embed(ctx context.Context, chunks []Chunk) ([][]float32, error) {
	out := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	for i, c := range chunks {
		g.Go(func() error {
			vec, err := ix.embedder.Embed(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			if len(vec) == 0 {
				return fmt.Errorf("embed chunk %d: %w", i, embedding.ErrEmptyEmbedding)
			}
			out[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 1; i < len(out); i++ {
		if len(out[i]) != len(out[0]) {
			return nil, fmt.Errorf("%w: chunk %d has %d, chunk 0 has %d",
				ErrInconsistentEmbeddings, i, len(out[i]), len(out[0]))
		}
	}
	return out, nil
}
