// Command finsight answers questions about financial filings with page and
// line citations, and evaluates chat models against reference answers.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/finsight/internal/adapters/driven/ai"
	"github.com/custodia-labs/finsight/internal/adapters/driven/config/file"
	"github.com/custodia-labs/finsight/internal/adapters/driven/metrics/prometheus"
	"github.com/custodia-labs/finsight/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/finsight/internal/adapters/driven/storage/milvus"
	"github.com/custodia-labs/finsight/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/finsight/internal/adapters/driven/tokenizer"
	"github.com/custodia-labs/finsight/internal/adapters/driving/cli"
	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
	"github.com/custodia-labs/finsight/internal/core/services"
	"github.com/custodia-labs/finsight/internal/logger"
	"github.com/custodia-labs/finsight/internal/normalisers"
	"github.com/custodia-labs/finsight/internal/postprocessors"
)

// version is set at build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

// stores bundles the persistence backends selected by settings.
type stores struct {
	index   driven.IndexStore
	docs    driven.DocumentStore
	results driven.ResultStore
	closers []func() error
}

func (s *stores) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			logger.Warn("Closing store: %v", err)
		}
	}
}

func run() error {
	// A missing .env file is normal.
	_ = godotenv.Load()

	configStore, err := file.NewConfigStore("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error [internal]: open config: %v\n", err)
		return err
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settingsService.SetEnvLookup(os.Getenv)

	cli.SetVersion(version)

	settings, err := settingsService.Get()
	if err != nil {
		logger.Warn("Using default settings: %v", err)
		defaults := settingsService.GetDefaults()
		settings = &defaults
	}

	aiServices := ai.Initialise(settings)
	defer aiServices.Close()

	st, err := openStores(context.Background(), &settings.Index)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error [index]: %v\n", err)
		return err
	}
	defer st.Close()

	models := domain.NewModelRegistry(domain.DefaultModels())
	pricer := services.NewPricer(models, tokenizer.NewCounter())
	metrics := prometheus.New()

	parsers := normalisers.NewDefaultRegistry()
	procRegistry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(procRegistry)
	pipeline, err := procRegistry.BuildPipeline(settings.Chunking.Processors, map[string]map[string]any{
		"chunker": {
			"window_lines":  settings.Chunking.WindowLines,
			"overlap_lines": settings.Chunking.OverlapLines,
			"max_chars":     settings.Chunking.MaxChars,
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error [validation]: %v\n", err)
		return err
	}

	svcs := &cli.Services{
		Settings:   settingsService,
		Metrics:    metrics.Handler(),
		Extensions: parsers.SupportedExtensions(),
	}

	if aiServices.EmbeddingService != nil {
		indexService := services.NewIndexService(parsers, pipeline, aiServices.EmbeddingService, st.index, st.docs, settings.Embedding)
		indexService.SetMetrics(metrics)
		svcs.Index = indexService

		retriever := services.NewRetriever(aiServices.EmbeddingService, st.index, settings.Retrieval)
		retriever.SetMetrics(metrics)
		svcs.Retrieval = retriever

		if aiServices.LLMService != nil {
			resolver, err := services.NewCitationResolver(settings.Citation)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error [validation]: %v\n", err)
				return err
			}

			answerService := services.NewAnswerService(retriever, st.index, aiServices.LLMService, models, pricer, resolver, settings.Generation)
			answerService.SetMetrics(metrics)
			if promptStore, err := file.NewPromptStore(""); err == nil {
				answerService.SetPromptStore(promptStore)
			} else {
				logger.Warn("Using built-in prompts: %v", err)
			}
			svcs.Answer = answerService

			judge := services.NewLLMJudge(aiServices.LLMService, settings.Eval.JudgeModel, pricer)
			evalService := services.NewEvalService(answerService, judge, st.results, models, settings.Eval)
			evalService.SetMetrics(metrics)
			svcs.Eval = evalService
		}
	}

	cli.SetServices(svcs)
	return cli.Execute()
}

// openStores opens the index backend named by settings. Document records
// and eval results live in SQLite unless the memory backend is selected.
func openStores(ctx context.Context, settings *domain.IndexSettings) (*stores, error) {
	if settings.Backend == domain.IndexBackendMemory {
		logger.Debug("Using in-memory index; nothing is persisted")
		return &stores{
			index:   memory.NewIndexStore(settings.Dimensions),
			docs:    memory.NewDocumentStore(),
			results: memory.NewResultStore(),
		}, nil
	}

	db, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	st := &stores{
		index:   db.IndexStore(),
		docs:    db.DocumentStore(),
		results: db.ResultStore(),
		closers: []func() error{db.Close},
	}

	if settings.Backend == domain.IndexBackendMilvus {
		mv, err := milvus.New(ctx, milvus.Config{
			Address:    settings.MilvusAddress,
			Collection: settings.MilvusCollection,
			Dimensions: settings.Dimensions,
			Username:   os.Getenv("MILVUS_USERNAME"),
			Password:   os.Getenv("MILVUS_PASSWORD"),
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect milvus: %w", err)
		}
		st.index = mv
		st.closers = append(st.closers, mv.Close)
	}
	return st, nil
}
