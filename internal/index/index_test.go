package index_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/JaimeStill/hemalyze/internal/embedding"
	"github.com/JaimeStill/hemalyze/internal/index"
	"github.com/JaimeStill/hemalyze/internal/vectors"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// letterEmbedder embeds text as normalized counts of a few letters.
var letterEmbedder = embedding.Func(func(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	return []float32{
		float32(strings.Count(lower, "h")) + 1,
		float32(strings.Count(lower, "p")) + 1,
		float32(strings.Count(lower, "w")) + 1,
	}, nil
})

func newSplitter(t *testing.T, size, overlap int) index.Splitter {
	t.Helper()
	s, err := index.NewSplitter(size, overlap)
	if err != nil {
		t.Fatalf("new splitter: %v", err)
	}
	return s
}

func TestSplitterInvariants(t *testing.T) {
	text := strings.Repeat("Hemoglobin 9.1 g/dL is below range. ", 30) +
		"\n\nPlatelet count 2.5 lakhs.\n" +
		strings.Repeat("WBC differential within limits ", 40)

	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"default sizes", 1000, 200},
		{"small chunks", 120, 30},
		{"no overlap", 80, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := newSplitter(t, tt.size, tt.overlap).Split(text, "lab.pdf")
			if len(chunks) == 0 {
				t.Fatal("no chunks")
			}

			prevOffset := -1
			for i, c := range chunks {
				if n := utf8.RuneCountInString(c.Text); n > tt.size {
					t.Errorf("chunk %d: %d runes exceeds %d", i, n, tt.size)
				}
				if text[c.Offset:c.Offset+len(c.Text)] != c.Text {
					t.Errorf("chunk %d: offset %d does not locate its text", i, c.Offset)
				}
				if c.Offset <= prevOffset {
					t.Errorf("chunk %d: offset %d not increasing", i, c.Offset)
				}
				if c.Source != "lab.pdf" {
					t.Errorf("chunk %d: source %q", i, c.Source)
				}
				prevOffset = c.Offset
			}

			last := chunks[len(chunks)-1]
			if !strings.HasSuffix(strings.TrimSpace(text), last.Text) {
				t.Error("last chunk does not reach the end of the text")
			}
		})
	}
}

func TestSplitterPrefersParagraphs(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n\n" + strings.Repeat("b", 50)

	chunks := newSplitter(t, 80, 10).Split(text, "s")
	if len(chunks) < 2 {
		t.Fatalf("chunks: got %d, want at least 2", len(chunks))
	}
	if chunks[0].Text != strings.Repeat("a", 50) {
		t.Errorf("first chunk should end at the paragraph break, got %q", chunks[0].Text)
	}
}

func TestSplitterOverlaps(t *testing.T) {
	text := strings.Repeat("x", 250)

	chunks := newSplitter(t, 100, 20).Split(text, "s")
	if len(chunks) != 3 {
		t.Fatalf("chunks: got %d, want 3", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prevEnd := chunks[i-1].Offset + len(chunks[i-1].Text)
		if overlap := prevEnd - chunks[i].Offset; overlap != 20 {
			t.Errorf("chunk %d overlap: got %d, want 20", i, overlap)
		}
	}
}

func TestSplitterEdgeCases(t *testing.T) {
	s := newSplitter(t, 100, 10)

	if got := s.Split("   \n\n  ", "s"); len(got) != 0 {
		t.Errorf("whitespace: got %d chunks, want 0", len(got))
	}
	if got := s.Split("short report", "s"); len(got) != 1 || got[0].Text != "short report" {
		t.Errorf("short text: got %+v", got)
	}
	if _, err := index.NewSplitter(100, 100); err == nil {
		t.Error("overlap equal to size should be rejected")
	}
}

func TestIndexCreatesDistinctCollections(t *testing.T) {
	store := vectors.NewMemory()
	ix := index.New(letterEmbedder, store, newSplitter(t, 1000, 200), 4, discard)
	ctx := context.Background()

	text := "Hemoglobin 9.1 g/dL\nPlatelets 250000\nWBC 7800"

	first, err := ix.Index(ctx, text, "report.pdf")
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	second, err := ix.Index(ctx, text, "report.pdf")
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	if first == second {
		t.Errorf("collections should differ: %s", first)
	}
	if !strings.HasPrefix(first, index.CollectionPrefix) {
		t.Errorf("collection id: got %s", first)
	}
	if ok, _ := store.Exists(ctx, first); !ok {
		t.Error("created collection should exist")
	}
	if ok, _ := store.Exists(ctx, index.NewCollectionID()); ok {
		t.Error("unused collection should not exist")
	}
}

func TestIndexStoresChunkMetadata(t *testing.T) {
	store := vectors.NewMemory()
	ix := index.New(letterEmbedder, store, newSplitter(t, 40, 10), 2, discard)
	ctx := context.Background()

	text := "Hemoglobin is low.\n\nPlatelets are normal.\n\nWBC within range."
	id, err := ix.Index(ctx, text, "")
	if err != nil {
		t.Fatalf("index: %v", err)
	}

	vec, _ := letterEmbedder.Embed(ctx, "platelets")
	matches, err := store.Query(ctx, id, vec, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) < 2 {
		t.Fatalf("matches: got %d, want at least 2", len(matches))
	}
	for _, m := range matches {
		if m.Metadata["source"] != index.UnknownSource {
			t.Errorf("source: got %q, want %q", m.Metadata["source"], index.UnknownSource)
		}
		if m.Metadata["offset"] == "" || m.Metadata["chunk_index"] == "" {
			t.Errorf("metadata incomplete: %v", m.Metadata)
		}
	}
}

func TestIndexFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no text", func(t *testing.T) {
		calls := 0
		emb := embedding.Func(func(ctx context.Context, text string) ([]float32, error) {
			calls++
			return []float32{1}, nil
		})
		ix := index.New(emb, vectors.NewMemory(), newSplitter(t, 100, 10), 1, discard)

		id, err := ix.Index(ctx, "  ", "s")
		if !errors.Is(err, index.ErrNoText) {
			t.Errorf("error: got %v, want ErrNoText", err)
		}
		if id != "" || calls != 0 {
			t.Errorf("id=%q calls=%d, want empty and 0", id, calls)
		}
	})

	t.Run("embedding fault", func(t *testing.T) {
		emb := embedding.Func(func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("embedding service down")
		})
		ix := index.New(emb, vectors.NewMemory(), newSplitter(t, 100, 10), 2, discard)

		id, err := ix.Index(ctx, "Hemoglobin 9", "s")
		if err == nil || !strings.Contains(err.Error(), "embedding service down") {
			t.Errorf("error: got %v", err)
		}
		if id != "" {
			t.Errorf("id: got %q, want empty", id)
		}
	})

	t.Run("inconsistent dimensions", func(t *testing.T) {
		emb := embedding.Func(func(ctx context.Context, text string) ([]float32, error) {
			if strings.HasPrefix(text, "a") {
				return []float32{1, 2}, nil
			}
			return []float32{1, 2, 3}, nil
		})
		ix := index.New(emb, vectors.NewMemory(), newSplitter(t, 10, 0), 1, discard)

		_, err := ix.Index(ctx, "aaaa aaaa bbbb bbbb", "s")
		if !errors.Is(err, index.ErrInconsistentEmbeddings) {
			t.Errorf("error: got %v, want ErrInconsistentEmbeddings", err)
		}
	})
}
