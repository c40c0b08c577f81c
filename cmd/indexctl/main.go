// indexctl builds and inspects index snapshots offline, so the API server
// can start from a warm snapshot without spending embedding tokens.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/plantops/manualsearch/internal/config"
	"github.com/plantops/manualsearch/internal/domain"
	"github.com/plantops/manualsearch/internal/index/lexical"
	"github.com/plantops/manualsearch/internal/index/semantic"
	"github.com/plantops/manualsearch/internal/ingest"
	logpkg "github.com/plantops/manualsearch/internal/logger"
	"github.com/plantops/manualsearch/internal/snapshot"
	"github.com/plantops/manualsearch/internal/store"
	openaiTransport "github.com/plantops/manualsearch/internal/transport/openai"
)

func main() {
	app := &cli.App{
		Name:  "indexctl",
		Usage: "Build and inspect manualsearch index snapshots",
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Parse the manual, embed the corpus and write a snapshot",
				Action: buildCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "Path to the parsed manual layout JSON (overrides config)",
					},
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Snapshot output path (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "lexical-only",
						Usage: "Skip embedding, build only the BM25 statistics",
					},
				},
			},
			{
				Name:   "inspect",
				Usage:  "Print snapshot provenance and sizes",
				Action: inspectCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"p"},
						Usage:   "Snapshot path (overrides config)",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildCommand(c *cli.Context) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dataPath := cfg.Manual.DataPath
	if p := c.String("data"); p != "" {
		dataPath = p
	}
	outPath := cfg.Manual.SnapshotPath
	if p := c.String("out"); p != "" {
		outPath = p
	}

	corpus, err := ingest.ParseFile(dataPath)
	if err != nil {
		return fmt.Errorf("parse manual: %w", err)
	}
	contentStore, err := store.New(corpus.Retrievable())
	if err != nil {
		return fmt.Errorf("build content store: %w", err)
	}
	logger.Info("Manual ingested",
		zap.Int("figures", len(corpus.Figures)),
		zap.Int("tables", len(corpus.Tables)),
		zap.Int("text_blocks", len(corpus.TextBlocks)),
	)

	records := contentStore.All()
	docs := make([]string, len(records))
	for i := range records {
		docs[i] = records[i].Title + " " + records[i].Body
	}
	lexIdx := lexical.New(docs)

	var vectors [][]float32
	if !c.Bool("lexical-only") {
		if cfg.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required unless --lexical-only is set")
		}
		semIdx, err := buildSemantic(c.Context, cfg, records, logger)
		if err != nil {
			return err
		}
		vectors = semIdx.Vectors()
	}

	snap := &snapshot.Snapshot{
		Fingerprint: contentStore.Fingerprint(),
		Model:       cfg.Embedding.Model,
		Dimensions:  cfg.Embedding.Dimensions,
		Vectors:     vectors,
		Lexical:     lexIdx.Stats(),
	}
	if err := snapshot.Save(outPath, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	logger.Info("Snapshot written",
		zap.String("path", outPath),
		zap.Uint64("fingerprint", snap.Fingerprint),
		zap.Int("records", contentStore.Len()),
		zap.Int("vectors", len(vectors)),
	)
	return nil
}

func buildSemantic(
	ctx context.Context,
	cfg config.Config,
	records []domain.ContentRecord,
	logger *zap.Logger,
) (*semantic.Index, error) {
	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})

	semIdx, err := semantic.Build(ctx, records, embedder,
		cfg.Embedding.BuildWorkers, cfg.Search.MinSimilarity, logger)
	if err != nil {
		return nil, fmt.Errorf("build semantic index: %w", err)
	}
	return semIdx, nil
}

func inspectCommand(c *cli.Context) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	path := cfg.Manual.SnapshotPath
	if p := c.String("path"); p != "" {
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	snap, err := snapshot.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	fmt.Printf("path:        %s\n", path)
	fmt.Printf("fingerprint: %016x\n", snap.Fingerprint)
	fmt.Printf("model:       %s\n", snap.Model)
	fmt.Printf("dimensions:  %d\n", snap.Dimensions)
	fmt.Printf("vectors:     %d\n", len(snap.Vectors))
	fmt.Printf("documents:   %d\n", len(snap.Lexical.DocLengths))
	return nil
}

func load() (config.Config, *zap.Logger, error) {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
