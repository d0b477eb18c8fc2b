package api

import (
	"fmt"

	"github.com/JaimeStill/hemalyze/internal/archive"
	"github.com/JaimeStill/hemalyze/internal/chat"
	"github.com/JaimeStill/hemalyze/internal/config"
	"github.com/JaimeStill/hemalyze/internal/index"
	"github.com/JaimeStill/hemalyze/internal/pipeline"
	"github.com/JaimeStill/hemalyze/internal/sessions"
)

// Domain holds the systems behind the API. Archive is nil when blob
// storage is not configured.
type Domain struct {
	Analyzer *pipeline.Analyzer
	Answerer *chat.Answerer
	Sessions *sessions.Store
	Archive  *archive.Archive
}

// NewDomain wires the analysis pipeline, indexer, and chat answerer onto
// the runtime's model, embedder, and vector store.
func NewDomain(cfg *config.Config, runtime *Runtime) (*Domain, error) {
	stages, err := pipeline.Stages(runtime.Model, runtime.Logger)
	if err != nil {
		return nil, fmt.Errorf("build stages: %w", err)
	}

	splitter, err := index.NewSplitter(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, fmt.Errorf("build splitter: %w", err)
	}

	indexer := index.New(
		runtime.Embedder,
		runtime.Vectors,
		splitter,
		cfg.Pipeline.Concurrency,
		runtime.Logger,
	)

	var (
		reports  *archive.Archive
		archiver pipeline.Archiver
	)
	if runtime.Storage != nil {
		reports = archive.New(runtime.Storage, runtime.Logger)
		archiver = reports
	}

	analyzer := pipeline.NewAnalyzer(
		pipeline.New(stages, cfg.Pipeline.StageTimeoutDuration(), runtime.Logger),
		indexer,
		runtime.Sessions,
		archiver,
		cfg.Pipeline.IndexTimeoutDuration(),
		runtime.Logger,
	)

	answerer := chat.New(
		runtime.Model,
		runtime.Embedder,
		runtime.Vectors,
		runtime.Sessions,
		cfg.Chat,
		runtime.Logger,
	)

	return &Domain{
		Analyzer: analyzer,
		Answerer: answerer,
		Sessions: runtime.Sessions,
		Archive:  reports,
	}, nil
}
