package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/notedex/notedex/internal/ai"
	"github.com/notedex/notedex/internal/config"
	"github.com/notedex/notedex/internal/db"
	"github.com/notedex/notedex/internal/extract"
	"github.com/notedex/notedex/internal/filestore"
	"github.com/notedex/notedex/internal/handler"
	"github.com/notedex/notedex/internal/job"
	"github.com/notedex/notedex/internal/middleware"
	"github.com/notedex/notedex/internal/pkg/jwt"
	"github.com/notedex/notedex/internal/repo"
	"github.com/notedex/notedex/internal/schedule"
	"github.com/notedex/notedex/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "notedex",
		Short: "notedex RAG indexing and query server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the notedex server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			return runServer(app)
		},
	}

	buildCmd := &cobra.Command{
		Use:   "build <user>",
		Short: "rebuild the index for one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			ctx := context.Background()
			if err := app.Index.BuildIndex(ctx, args[0]); err != nil {
				return fmt.Errorf("build index: %w", err)
			}
			status, err := app.Index.Status(ctx, args[0])
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(status, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	askCmd := &cobra.Command{
		Use:   "ask <user> <question>",
		Short: "answer a question against the user's index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(configPath)
			if err != nil {
				return err
			}
			defer app.Close()
			result := app.Chat.Answer(context.Background(), args[0], args[1])
			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token <user>",
		Short: "issue an access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			token, err := jwt.GenerateToken(args[0], []byte(cfg.JWTSecret), time.Hour*time.Duration(cfg.JWTTTLHours))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "verify config, database and redis connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(configPath)
		},
	}

	rootCmd.AddCommand(runCmd, buildCmd, askCmd, tokenCmd, checkCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

// app bundles the wired services so the subcommands can share one setup path.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	redis    *redis.Client
	Index    *service.IndexService
	Search   *service.SearchService
	Chat     *service.ChatService
	Snapshot *service.SnapshotService
	Status   *repo.StatusRepo
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func setup(configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	database, err := db.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(database); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	providerArgs := cfg.AI.Data
	if providerArgs == nil {
		providerArgs = map[string]interface{}{}
	}
	provider, err := ai.NewProvider(cfg.AI.Provider, providerArgs)
	if err != nil {
		_ = database.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init ai provider: %w", err)
	}
	generators := []ai.GeneratorEntry{{Name: cfg.AI.Provider, Generator: ai.NewGenerator(provider, cfg.AI.GenModel)}}
	embedders := []ai.EmbedderEntry{{Name: cfg.AI.Provider, Embedder: ai.NewEmbedder(provider, cfg.AI.EmbedModel)}}
	for _, ref := range cfg.AI.Fallbacks {
		fallback, err := ai.NewProvider(ref.Provider, ref.Data)
		if err != nil {
			_ = database.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init fallback ai provider %s: %w", ref.Provider, err)
		}
		generators = append(generators, ai.GeneratorEntry{Name: ref.Provider, Generator: ai.NewGenerator(fallback, cfg.AI.GenModel)})
		embedders = append(embedders, ai.EmbedderEntry{Name: ref.Provider, Embedder: ai.NewEmbedder(fallback, cfg.AI.EmbedModel)})
	}
	manager := ai.NewManager(
		ai.NewGroupGenerator(generators),
		ai.NewGroupEmbedder(embedders),
		ai.ManagerConfig{Timeout: cfg.AI.TimeoutSeconds},
	)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		_ = database.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init file store: %w", err)
	}

	pageRepo := repo.NewPageRepo(database, cfg.RAG.PageBatchSize)
	chunkRepo := repo.NewChunkRepo(database, cfg.RAG.StoreBatchSize)
	statusRepo := repo.NewStatusRepo(redisClient, time.Duration(cfg.RAG.BuildLockTTLMinutes)*time.Minute)

	chunker := extract.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	embedService := service.NewEmbedService(manager, cfg.RAG.EmbeddingDim, cfg.RAG.EmbedBatchSize)
	indexService := service.NewIndexService(pageRepo, chunker, embedService, chunkRepo, statusRepo)
	searchService := service.NewSearchService(chunkRepo, embedService, cfg.RAG.TopK, cfg.RAG.SimilarityThreshold)
	chatService := service.NewChatService(searchService, manager, cfg.RAG.TopK)
	snapshotService := service.NewSnapshotService(chunkRepo, store)

	return &app{
		cfg:      cfg,
		db:       database,
		redis:    redisClient,
		Index:    indexService,
		Search:   searchService,
		Chat:     chatService,
		Snapshot: snapshotService,
		Status:   statusRepo,
	}, nil
}

func runServer(a *app) error {
	cfg := a.cfg
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("file_store", cfg.FileStore.Type),
	)

	ragHandler := handler.NewRAGHandler(a.Index, a.Search, a.Chat, a.Snapshot)
	deps := handler.RouterDeps{
		RAG:       ragHandler,
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllow),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	reaper := job.NewStuckBuildJob(a.Status, time.Duration(cfg.RAG.StuckBuildMinutes)*time.Minute)
	if err := scheduler.AddJob(reaper, "*/10 * * * *"); err != nil {
		return fmt.Errorf("schedule reaper: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

func runCheck(configPath string) error {
	app, err := setup(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	fmt.Println("database: ok")
	if err := app.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	fmt.Println("redis: ok")
	fmt.Println("config: ok")
	return nil
}
