package vectors

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/JaimeStill/hemalyze/pkg/repository"
)

// Postgres is a Store backed by PostgreSQL with the pgvector extension.
// Similarity is ranked with the cosine distance operator.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) CreateCollection(ctx context.Context, id string, dim int, metric Metric) error {
	if err := checkCollection(id, dim, metric); err != nil {
		return err
	}

	_, err := p.db.ExecContext(ctx,
		`INSERT INTO vector_collections (id, dimensions, metric) VALUES ($1, $2, $3)`,
		id, dim, string(metric),
	)
	return repository.MapError(err, ErrCollectionNotFound, ErrCollectionExists)
}

func (p *Postgres) Upsert(ctx context.Context, id string, records []Record) error {
	_, err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) (struct{}, error) {
		dim, err := dimensions(ctx, tx, id, true)
		if err != nil {
			return struct{}{}, err
		}

		for _, r := range records {
			if err := checkDimension(dim, r.Embedding); err != nil {
				return struct{}{}, err
			}

			meta, err := json.Marshal(metadataOrEmpty(r.Metadata))
			if err != nil {
				return struct{}{}, fmt.Errorf("encode metadata for %s: %w", r.ID, err)
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO vector_chunks (collection_id, id, content, metadata, embedding)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (collection_id, id) DO UPDATE
				SET content = EXCLUDED.content,
				    metadata = EXCLUDED.metadata,
				    embedding = EXCLUDED.embedding`,
				id, r.ID, r.Text, meta, pgvector.NewVector(r.Embedding),
			)
			if err != nil {
				return struct{}{}, fmt.Errorf("upsert chunk %s: %w", r.ID,
					repository.MapError(err, ErrCollectionNotFound, ErrCollectionExists))
			}
		}

		return struct{}{}, nil
	})
	return err
}

func (p *Postgres) Query(ctx context.Context, id string, embedding []float32, k int) ([]Match, error) {
	dim, err := dimensions(ctx, p.db, id, false)
	if err != nil {
		return nil, err
	}
	if err := checkDimension(dim, embedding); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Match{}, nil
	}

	query := `
		SELECT id, content, metadata, 1 - (embedding <=> $2) AS score
		FROM vector_chunks
		WHERE collection_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3`

	args := []any{id, pgvector.NewVector(embedding), k}
	return repository.QueryMany(ctx, p.db, query, args, scanMatch)
}

func (p *Postgres) Exists(ctx context.Context, id string) (bool, error) {
	return repository.QueryOne(ctx, p.db,
		`SELECT EXISTS (SELECT 1 FROM vector_collections WHERE id = $1)`,
		[]any{id},
		func(s repository.Scanner) (bool, error) {
			var ok bool
			err := s.Scan(&ok)
			return ok, err
		},
	)
}

func dimensions(ctx context.Context, q repository.Querier, id string, lock bool) (int, error) {
	query := `SELECT dimensions FROM vector_collections WHERE id = $1`
	if lock {
		query += ` FOR SHARE`
	}

	dim, err := repository.QueryOne(ctx, q, query, []any{id}, func(s repository.Scanner) (int, error) {
		var d int
		err := s.Scan(&d)
		return d, err
	})
	if err != nil {
		return 0, repository.MapError(err, ErrCollectionNotFound, ErrCollectionExists)
	}
	return dim, nil
}

func scanMatch(s repository.Scanner) (Match, error) {
	var (
		m    Match
		meta []byte
	)
	if err := s.Scan(&m.ID, &m.Text, &meta, &m.Score); err != nil {
		return Match{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return Match{}, fmt.Errorf("decode metadata for %s: %w", m.ID, err)
		}
	}
	return m, nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
