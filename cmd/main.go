package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/nvale/orgchat/pkg/config"
	"github.com/nvale/orgchat/pkg/index"
	"github.com/nvale/orgchat/pkg/llm"
	"github.com/nvale/orgchat/pkg/prompt"
	"github.com/nvale/orgchat/pkg/rag"
	"github.com/nvale/orgchat/pkg/retriever"
	"github.com/nvale/orgchat/pkg/scraper"
	"github.com/nvale/orgchat/pkg/session"
	"github.com/nvale/orgchat/server"

	"github.com/nvale/orgchat/internal/types"
)

type flags struct {
	configPath   string
	organization string
	siteURL      string
	serveAddr    string
	rerank       bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.StringVar(&f.organization, "org", "", "Organization name (index namespace)")
	flag.StringVar(&f.siteURL, "url", "", "Organization website to scrape and index")
	flag.StringVar(&f.serveAddr, "serve", "", "Run the WebSocket server on this address instead of the chat loop")
	flag.BoolVar(&f.rerank, "rerank", false, "Rerank retrieved chunks by lexical overlap")
	flag.Parse()

	if err := run(f); err != nil {
		log.Fatal(err)
	}
}

func run(f flags) error {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config error: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Dimension: cfg.Embedding.Dimension,
		BatchSize: cfg.Embedding.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	generator, err := llm.NewGeneratorWithConfig(llm.GeneratorConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}

	// Postgres when configured, in-process index otherwise
	var vectorIndex types.VectorIndex
	if cfg.Database.URL != "" {
		pg, err := index.NewPGWithConfig(context.Background(), index.PGConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Embedding.Dimension,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize vector index: %w", err)
		}
		vectorIndex = pg
	} else {
		vectorIndex = index.NewMemory()
	}
	defer vectorIndex.Close()

	var scraped int32
	site := scraper.NewWithConfig(scraper.Config{
		MaxDepth:       cfg.Scraper.MaxDepth,
		MaxPages:       cfg.Scraper.MaxPages,
		RateLimit:      cfg.Scraper.RateLimit,
		IgnorePatterns: cfg.Scraper.IgnorePatterns,
		OnProgress: func(url string) {
			atomic.AddInt32(&scraped, 1)
		},
	})

	orchestrator := rag.NewWithConfig(
		rag.Config{
			ChunkSize:    cfg.Chunking.ChunkSize,
			ChunkOverlap: cfg.Chunking.Overlap,
		},
		embedder,
		vectorIndex,
		retriever.NewWithConfig(embedder, vectorIndex, retriever.Config{
			TopK:                cfg.Retrieval.TopK,
			SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
			Rerank:              cfg.Retrieval.Rerank || f.rerank,
			RerankMultiplier:    cfg.Retrieval.RerankMultiplier,
		}),
		session.NewStore(session.Config{MaxTurns: cfg.Session.MaxTurns}),
		prompt.NewWithConfig(prompt.Config{
			MaxHistoryTurns:  cfg.Prompt.MaxHistoryTurns,
			MaxContextTokens: cfg.Prompt.MaxContextTokens,
		}),
		generator,
		site,
	)

	if f.siteURL != "" {
		if f.organization == "" {
			return fmt.Errorf("-org is required when ingesting a site")
		}
		if err := ingestSite(orchestrator, f.organization, f.siteURL, &scraped); err != nil {
			return err
		}
	}

	if f.serveAddr != "" {
		return server.New(orchestrator).Run(f.serveAddr)
	}
	return chatLoop(orchestrator, f.organization)
}

func ingestSite(o *rag.Orchestrator, organization, siteURL string, scraped *int32) error {
	color.Blue("\nIndexing %s for %s\n", siteURL, organization)

	bar := getSpinner("Scraping site...")
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(100 * time.Millisecond):
				count := atomic.LoadInt32(scraped)
				bar.Describe(color.BlueString("Scraping site... (%d pages)", count))
			}
		}
	}()

	count, err := o.IngestSource(context.Background(), organization, siteURL, 0, 0)
	close(done)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("failed to ingest %s: %w", siteURL, err)
	}

	color.Green("\n✓ Indexed %d chunks from %d pages\n", count, atomic.LoadInt32(scraped))
	return nil
}

func chatLoop(o *rag.Orchestrator, organization string) error {
	if organization == "" {
		orgs, err := o.ListOrganizations(context.Background())
		if err != nil || len(orgs) == 0 {
			return fmt.Errorf("no organization indexed; run with -org and -url first")
		}
		organization = orgs[0].Organization
	}

	color.Cyan("\nAsk about %s (type 'exit' to quit, 'clear' to reset the conversation)", organization)

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	var sessionID string
	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit":
			return nil
		case "clear":
			if sessionID != "" {
				o.ClearHistory(sessionID)
			}
			color.Yellow("Conversation cleared")
			continue
		}

		spinner := getSpinner("Thinking...")
		result, err := o.Query(context.Background(), rag.QueryRequest{
			Organization: organization,
			SessionID:    sessionID,
			Query:        query,
		})
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}
		sessionID = result.SessionID

		assistantPrompt("Assistant: %s\n", result.Answer)
		if len(result.Sources) > 0 {
			color.Yellow("Sources:")
			for i, src := range result.Sources {
				color.Yellow("  [S%d] (%.2f) %s", i+1, src.Score, src.Preview)
			}
		}
	}
	return nil
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
