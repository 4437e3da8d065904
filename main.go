package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"docrag/acl"
	"docrag/auth"
	"docrag/config"
	"docrag/database"
	"docrag/embed"
	"docrag/extract"
	"docrag/ingest"
	"docrag/llm"
	"docrag/retriever"
	"docrag/templates"
	"docrag/web"
	"docrag/web/handlers"
)

func main() {
	logger, err := config.InitLogger()
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	cfg := config.Load(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)

	store, err := database.NewPostgresStore(database.Config{
		ConnString:         connStr,
		MaxOpenConns:       cfg.DBMaxOpenConns,
		MaxIdleConns:       cfg.DBMaxIdleConns,
		VectorIndexBackend: cfg.VectorIndexBackend,
		VectorDimension:    cfg.VectorDimension,
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer store.DB.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("failed to ensure database schema", zap.Error(err))
	}

	embedder := embed.NewProvider(embed.Config{
		Host:       cfg.EmbeddingHost,
		MaxWorkers: cfg.EmbeddingMaxWorkers,
		MaxTokens:  cfg.EmbeddingMaxTokens,
		Dimension:  cfg.VectorDimension,
		Timeout:    cfg.LLMReadTimeout,
	})
	if err := embedder.Ping(ctx); err != nil {
		logger.Warn("embedding backend unreachable at startup", zap.Error(err))
	}

	chunker := ingest.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	ingestor := ingest.NewIngestor(chunker, embedder, store, logger)
	rtr := retriever.New(store, embedder, logger)
	aclEngine := acl.New(store)
	authService := auth.NewService(store, cfg.JWTSecretKey, cfg.JWTTTL)
	templateStore := templates.New(cfg.SystemMessagesDir)
	extractor := &extract.Extractor{} // no HWP conversion utility wired in by default

	router := llm.NewRouter(cfg.LLMMaxWorkers,
		llm.NewLocalChatBackend(cfg.OllamaHost, cfg.LLMConnectTimeout, cfg.LLMReadTimeout),
		llm.NewLocalCompletionBackend(cfg.OllamaHost, cfg.LLMConnectTimeout, cfg.LLMReadTimeout),
		llm.NewHostedChatBackend(cfg.BaseURL, cfg.GroqAPIKey, cfg.LLMConnectTimeout, cfg.LLMReadTimeout),
	)

	defaultBackend, ok := llm.ParseKind(cfg.DefaultLLMName)
	if !ok {
		logger.Warn("unrecognized DEFAULT_LLMNAME, falling back to the local chat backend",
			zap.String("llm_name", cfg.DefaultLLMName))
		defaultBackend = llm.KindLocalChat
	}

	server := web.NewServer(logger, cfg, web.Deps{
		Store:     store,
		ACL:       aclEngine,
		Auth:      authService,
		Ingestor:  ingestor,
		Retriever: rtr,
		Router:    router,
		QueryDefaults: handlers.QueryDefaults{
			Backend: defaultBackend,
			ModelByBackend: map[llm.Kind]string{
				llm.KindLocalChat:       cfg.OllamaModel,
				llm.KindLocalCompletion: cfg.CompletionModel,
				llm.KindHostedChat:      cfg.GroqModel,
			},
			TopK:           cfg.DocNum,
			ScoreThreshold: cfg.Similarity,
		},
		MaxUploadBytes: int64(cfg.UploadMaxSizeMB) * 1024 * 1024,
		Templates:      templateStore,
		Extractor:      extractor,
	})

	addr := ":" + cfg.Port
	if err := server.Start(ctx, addr); err != nil {
		logger.Error("web server error", zap.Error(err))
		os.Exit(1)
	}
}
