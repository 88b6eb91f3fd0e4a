package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/goreport/internal/cache"
	"github.com/hyperifyio/goreport/internal/config"
	"github.com/hyperifyio/goreport/internal/crawl"
	"github.com/hyperifyio/goreport/internal/docstore"
	"github.com/hyperifyio/goreport/internal/ledger"
	"github.com/hyperifyio/goreport/internal/llm"
	"github.com/hyperifyio/goreport/internal/pipeline"
	"github.com/hyperifyio/goreport/internal/report"
	"github.com/hyperifyio/goreport/internal/search"
	"github.com/hyperifyio/goreport/internal/usage"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		cfg        config.Config
		configPath string
	)

	root := &cobra.Command{
		Use:          "goreport <subject>",
		Short:        "Turn a research subject into a cited, multi-chapter report",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				if err := config.LoadFile(&cfg, configPath); err != nil {
					return &configError{err}
				}
			}
			config.ApplyEnv(&cfg)
			config.ApplyDefaults(&cfg)
			if cfg.Verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			if err := cfg.Validate(); err != nil {
				return &configError{err}
			}
			return run(cmd.Context(), cfg, strings.TrimSpace(args[0]))
		},
	}

	f := root.Flags()
	f.StringVar(&configPath, "config", "", "Path to YAML config file")
	f.StringVar(&cfg.OutputDir, "output", "", "Directory for the final artifacts")
	f.StringVar(&cfg.CacheDir, "cache.dir", "", "Cache directory path")
	f.StringVar(&cfg.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	f.StringVar(&cfg.LLMModel, "llm.model", "", "Model name")
	f.StringVar(&cfg.LLMAPIKey, "llm.key", "", "API key for the model endpoint")
	f.IntVar(&cfg.ContextWindow, "llm.contextWindow", 0, "Model context window in tokens (0 = derive from model name)")
	f.StringVar(&cfg.SearxURL, "searx.url", "", "SearxNG base URL")
	f.StringVar(&cfg.SearxKey, "searx.key", "", "SearxNG API key (optional)")
	f.IntVar(&cfg.Breadth, "breadth", 0, "Max questions/queries/chapters per stage")
	f.IntVar(&cfg.Depth, "depth", 0, "Search results per query")
	f.StringVar(&cfg.Locale, "lang", "", "Locale, e.g. en-US or ar")
	f.Float64Var(&cfg.InputPerMTok, "price.inputPerMTok", 0, "Dollar price per million input tokens")
	f.Float64Var(&cfg.OutputPerMTok, "price.outputPerMTok", 0, "Dollar price per million output tokens")
	f.Float64Var(&cfg.PricePerQuery, "price.perQuery", 0, "Dollar price per search query")
	f.Float64Var(&cfg.PricePerPage, "price.perPage", 0, "Dollar price per crawled page")
	f.BoolVar(&cfg.EnablePDF, "pdf", false, "Also render a PDF artifact")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose logging")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		var ce *configError
		if errors.As(err, &ce) {
			log.Error().Err(ce.Unwrap()).Msg("configuration incomplete")
			os.Exit(2)
		}
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

// configError marks failures that block progress before any stage runs; they
// map to exit code 2 so wrappers can re-prompt instead of retrying.
type configError struct{ err error }

func (e *configError) Error() string { return "configuration: " + e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func run(ctx context.Context, cfg config.Config, subject string) error {
	store, err := docstore.Open(filepath.Join(cfg.CacheDir, "documents.db"))
	if err != nil {
		log.Warn().Err(err).Msg("document cache unavailable; crawling without cache")
		store = nil
	} else {
		defer store.Close()
	}

	tracker := usage.NewTracker(usage.Pricing{
		InputPerMTok:  cfg.InputPerMTok,
		OutputPerMTok: cfg.OutputPerMTok,
	})
	p := &pipeline.Pipeline{
		Backend:       llm.NewOpenAI(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel),
		Model:         cfg.LLMModel,
		ContextWindow: cfg.ContextWindow,
		Search: &search.SearxNG{
			BaseURL:       cfg.SearxURL,
			APIKey:        cfg.SearxKey,
			UserAgent:     cfg.UserAgent,
			PricePerQuery: cfg.PricePerQuery,
		},
		Crawl: &crawl.Client{
			UserAgent:         cfg.UserAgent,
			PerRequestTimeout: 15 * time.Second,
			PricePerPage:      cfg.PricePerPage,
		},
		Store:      store,
		StageCache: &cache.Stage{Dir: filepath.Join(cfg.CacheDir, "stages")},
		Ledger:     ledger.New(),
		Tracker:    tracker,
		Breadth:    cfg.Breadth,
		Depth:      cfg.Depth,
		Locale:     search.ParseLocale(cfg.Locale),
	}

	// On interrupt, surface the active external call's identifier so a
	// supervising wrapper can issue a best-effort remote cancellation. The
	// pipeline itself only observes the cancelled context.
	go func() {
		<-ctx.Done()
		if id := p.ActiveExternalID(); id != "" {
			log.Warn().Str("job", id).Msg("interrupted with external call in flight")
		}
	}()

	// Spend is reported even when a stage fails, so the user always knows what
	// the run cost before it stopped.
	defer func() {
		log.Info().Str("usage", tracker.Totals().String()).Msg("run spend")
	}()

	questions, err := p.Clarify(ctx, subject)
	if err != nil {
		return describeFailure(err)
	}
	followups := askFollowups(questions)

	res, err := p.Run(ctx, subject, followups)
	if err != nil {
		return describeFailure(err)
	}

	canonical := report.Assemble(res.Subject, res.Abstract, res.Chapters, res.Conclusions, res.References)
	paths, err := report.Write(cfg.OutputDir, subject, canonical, cfg.Locale, cfg.EnablePDF)
	if err != nil {
		return err
	}
	for _, path := range paths {
		log.Info().Str("path", path).Msg("wrote artifact")
	}
	return nil
}

// describeFailure logs which stage failed with the underlying message
// verbatim, then passes the error through for the exit policy.
func describeFailure(err error) error {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		log.Error().Str("stage", se.Stage).Msg(se.Err.Error())
	}
	return err
}

// askFollowups prints each clarifying question and reads one answer line from
// stdin. Unanswered questions are skipped.
func askFollowups(questions []string) []pipeline.Followup {
	reader := bufio.NewReader(os.Stdin)
	out := make([]pipeline.Followup, 0, len(questions))
	for _, q := range questions {
		fmt.Println(q)
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		answer := strings.TrimSpace(line)
		if answer != "" {
			out = append(out, pipeline.Followup{Question: q, Answer: answer})
		}
		if err != nil {
			break
		}
	}
	return out
}
