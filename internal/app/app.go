package app

import (
	"context"
	"fmt"
	"time"

	"github.com/inovalupa/govtech-analyzer/internal/config"
	"github.com/inovalupa/govtech-analyzer/internal/core"
	db "github.com/inovalupa/govtech-analyzer/internal/core/database"
	"github.com/inovalupa/govtech-analyzer/internal/core/ingestion_engine"
	"github.com/inovalupa/govtech-analyzer/internal/core/kv"
	"github.com/inovalupa/govtech-analyzer/internal/core/llm"
	objectclient "github.com/inovalupa/govtech-analyzer/internal/core/object-client"
	"github.com/inovalupa/govtech-analyzer/internal/logger"
	"github.com/inovalupa/govtech-analyzer/internal/models"
	"github.com/inovalupa/govtech-analyzer/internal/services"
	"github.com/inovalupa/govtech-analyzer/internal/session"
	"github.com/inovalupa/govtech-analyzer/internal/store"
)

const redisKeyPrefix = "govtech:"

type App struct {
	KV     core.KVStore
	LLM    *llm.GeminiLLM
	Server *Server
	Log    *logger.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	backend, err := openKV(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("store backend ready", "driver", cfg.StoreDriver)

	st := store.New(backend, models.User{
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
	}, log)
	snap, err := st.Load(appCtx)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("load store: %w", err)
	}
	log.Info("store loaded", "users", len(snap.Users), "projects", len(snap.Projects))

	specialists, err := config.LoadSpecialists(cfg.SpecialistsFile)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("couldn't initialize the llm client, %w", err)
	}

	var archive core.ObjectClient
	if cfg.ArchiveEnabled() {
		s3, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			_ = backend.Close()
			_ = llmProvider.Close()
			return nil, err
		}
		archive = s3
		log.Info("pdf archive enabled", "bucket", cfg.BucketName)
	}

	extractor := ingestion_engine.NewDocconvExtractor(cfg.ExtractReadability, log)
	sessions := session.NewRegistry()

	users := services.NewUserService(snap.Users, st, log)
	projects := services.NewProjectService(snap.Projects, st, specialists, log)
	advisor := services.NewAdvisor(llmProvider, specialists, log)

	server := NewServer(cfg, log, Services{
		Specialists: specialists,
		Sessions:    sessions,
		Users:       users,
		Projects:    projects,
		Uploads:     services.NewUploadService(projects, advisor, extractor, archive, log),
		Proposals:   services.NewProposalService(projects, advisor, extractor, log),
		Chat:        services.NewChatService(projects, advisor, sessions, log),
	})

	return &App{KV: backend, LLM: llmProvider, Server: server, Log: log}, nil
}

func openKV(ctx context.Context, cfg *config.Config) (core.KVStore, error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		r, err := kv.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redisKeyPrefix)
		if err != nil {
			return nil, err
		}
		return r, nil
	case config.StorePostgres:
		pg, err := db.NewDatabaseClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return kv.NewMemoryStore(), nil
	}
}

func (a *App) Close() {
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
	if a.KV != nil {
		if err := a.KV.Close(); err != nil {
			a.Log.Warn("closing store backend", "error", err)
		}
	}
}
