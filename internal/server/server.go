// Package server wires Sparrow's components together and manages their
// lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/earlybirdlabs/sparrow/internal/bot"
	"github.com/earlybirdlabs/sparrow/internal/config"
	"github.com/earlybirdlabs/sparrow/internal/files"
	"github.com/earlybirdlabs/sparrow/internal/jira"
	"github.com/earlybirdlabs/sparrow/internal/llm"
	"github.com/earlybirdlabs/sparrow/internal/monitoring"
	"github.com/earlybirdlabs/sparrow/internal/store"
	"github.com/earlybirdlabs/sparrow/pkg/health"
	"github.com/earlybirdlabs/sparrow/pkg/logger"
	"github.com/earlybirdlabs/sparrow/pkg/metrics"
)

// How often expired prompt contexts are swept out of the store.
const promptPurgeInterval = time.Hour

// Server holds every long-lived component.
type Server struct {
	cfg       *config.AppConfig
	log       logger.Logger
	metrics   *metrics.Metrics
	store     *store.Store
	slack     *bot.Client
	connector *bot.Connector
	checker   *health.Checker
}

// New initializes all components. The error names the first component that
// could not be built.
func New(ctx context.Context, cfg *config.AppConfig, log logger.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
	}

	var err error
	s.store, err = store.New(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := s.store.Migrate(); err != nil {
		s.store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	s.slack, err = bot.NewClient(cfg.Slack, log)
	if err != nil {
		s.store.Close()
		return nil, fmt.Errorf("create slack client: %w", err)
	}

	handler, err := s.createHandler(log)
	if err != nil {
		s.store.Close()
		return nil, err
	}

	s.connector = bot.NewConnector(s.slack, handler, log, s.metrics)

	var jiraURL string
	if cfg.Jira.Enabled() {
		jiraURL = cfg.Jira.InstanceURL
	}
	s.checker = monitoring.NewChecker(cfg.Health, s.store, s.slack.API(), jiraURL, log)

	return s, nil
}

// createHandler builds the LLM stack, file pipeline and event handler.
func (s *Server) createHandler(log logger.Logger) (*bot.Handler, error) {
	cfg := s.cfg

	providers, claude, err := s.createProviders(log)
	if err != nil {
		return nil, err
	}

	dispatcher, err := llm.NewDispatcher(providers,
		cfg.LLM.Provider, cfg.LLM.FallbackProvider, log,
		llm.WithClassifierProvider(cfg.LLM.ClassifierProvider),
		llm.WithTemperature(cfg.LLM.Temperature),
		llm.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create dispatcher: %w", err)
	}

	speech, err := llm.NewSpeechClient(cfg.OpenAI.APIKey, log)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	var index *llm.DocumentIndex
	if cfg.OpenAI.AssistantID != "" {
		index, err = llm.NewDocumentIndex(cfg.OpenAI.APIKey, cfg.OpenAI.AssistantID,
			cfg.LLM.RetrievalPollInterval, cfg.LLM.RetrievalMaxWait, log)
		if err != nil {
			return nil, fmt.Errorf("create document index: %w", err)
		}
	} else {
		s.log.Info("document retrieval disabled (no assistant configured)")
	}

	var describer files.Describer
	if claude != nil {
		describer = claude
	}
	var indexer files.Indexer
	if index != nil {
		indexer = index
	}
	pipeline := files.New(s.slack, describer, speech, indexer, log, s.metrics)

	opts := []bot.HandlerOption{
		bot.WithSpeech(speech),
		bot.WithTicketReaction(cfg.Slack.TicketReaction),
	}
	if index != nil {
		opts = append(opts, bot.WithRetriever(index))
	}
	if cfg.Jira.Enabled() {
		tracker, err := jira.NewClient(cfg.Jira, log)
		if err != nil {
			return nil, fmt.Errorf("create jira client: %w", err)
		}
		opts = append(opts, bot.WithIssueTracker(tracker))
	} else {
		s.log.Info("jira integration disabled")
	}

	return bot.NewHandler(s.slack, dispatcher, pipeline, s.store, log, opts...), nil
}

// createProviders instantiates every chat backend with a configured key. The
// Claude provider is returned separately because it also serves vision.
func (s *Server) createProviders(log logger.Logger) ([]llm.Provider, *llm.ClaudeProvider, error) {
	cfg := s.cfg
	var providers []llm.Provider

	openaiProvider, err := llm.NewChatProvider(config.ProviderOpenAI,
		cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.APIBaseURL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("create openai provider: %w", err)
	}
	providers = append(providers, openaiProvider)

	var claude *llm.ClaudeProvider
	if cfg.Anthropic.APIKey != "" {
		claude, err = llm.NewClaudeProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model, log)
		if err != nil {
			return nil, nil, fmt.Errorf("create anthropic provider: %w", err)
		}
		providers = append(providers, claude)
	}

	if cfg.Groq.APIKey != "" {
		groqProvider, err := llm.NewChatProvider(config.ProviderGroq,
			cfg.Groq.APIKey, cfg.Groq.Model, cfg.Groq.APIBaseURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("create groq provider: %w", err)
		}
		providers = append(providers, groqProvider)
	}

	if cfg.Together.APIKey != "" {
		togetherProvider, err := llm.NewChatProvider(config.ProviderTogether,
			cfg.Together.APIKey, cfg.Together.Model, cfg.Together.APIBaseURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("create together provider: %w", err)
		}
		providers = append(providers, togetherProvider)
	}

	return providers, claude, nil
}

// Run starts the operational HTTP server, the prompt-context sweeper and the
// socket-mode connector, then blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	defer s.store.Close()

	if s.cfg.Health.Enabled {
		go s.runOpsServer(ctx)
	}
	go s.runPromptSweeper(ctx)

	s.log.Info("sparrow starting",
		logger.StringField("version", s.cfg.Version),
		logger.StringField("environment", s.cfg.Environment))

	err := s.connector.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("socket mode connection: %w", err)
	}
	s.log.Info("sparrow stopped")
	return nil
}

// runOpsServer serves health and metrics endpoints until shutdown.
func (s *Server) runOpsServer(ctx context.Context) {
	r := chi.NewRouter()
	r.Use(s.log.HTTPMiddleware)
	r.Get(s.cfg.Health.LivenessPath, s.checker.LivenessHandler())
	r.Get(s.cfg.Health.ReadinessPath, s.checker.ReadinessHandler())
	r.Get(s.cfg.Health.CombinedPath, s.checker.Handler())
	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Health.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("ops server shutdown error", logger.ErrorField(err))
		}
	}()

	s.log.Info("ops server listening", logger.IntField("port", s.cfg.Health.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("ops server failed", logger.ErrorField(err))
	}
}

// runPromptSweeper periodically drops expired prompt contexts.
func (s *Server) runPromptSweeper(ctx context.Context) {
	ticker := time.NewTicker(promptPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.store.PurgeExpiredPromptContexts(ctx); err != nil {
				s.log.Error("prompt context purge failed", logger.ErrorField(err))
			}
		}
	}
}
