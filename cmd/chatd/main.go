// Command chatd runs the chat service: the conversation engine behind the
// HTTP API, backed by the configured checkpoint store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mayadakhatib/langgraph-crewai/chat"
	"github.com/mayadakhatib/langgraph-crewai/config"
	"github.com/mayadakhatib/langgraph-crewai/llm"
	"github.com/mayadakhatib/langgraph-crewai/log"
	"github.com/mayadakhatib/langgraph-crewai/server"
	"github.com/mayadakhatib/langgraph-crewai/store"
	"github.com/mayadakhatib/langgraph-crewai/store/memory"
	"github.com/mayadakhatib/langgraph-crewai/store/postgres"
	redisstore "github.com/mayadakhatib/langgraph-crewai/store/redis"
	"github.com/mayadakhatib/langgraph-crewai/store/sqlite"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Error("chatd: %v", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.SetLevel(log.ParseLevel(cfg.LogLevel))
	logger := log.GetDefaultLogger()

	ctx := context.Background()
	cs, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("using %s checkpoint store", cfg.Store.Backend)

	opts := []chat.Option{chat.WithLogger(logger)}
	if cfg.LLM.Provider == "openai" {
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("llm provider openai requires an api key")
		}
		opts = append(opts, chat.WithGenerator(llm.NewOpenAIGenerator(llm.OpenAIOptions{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})))
		logger.Info("replies generated by openai model %s", cfg.LLM.Model)
	}

	engine, err := chat.NewEngine(cs, opts...)
	if err != nil {
		return err
	}

	srv, err := server.NewServer(engine, cs, logger, &server.Config{
		Listen:    cfg.Listen,
		StoreName: cfg.Store.Backend,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore builds the configured checkpoint backend and returns it with its
// cleanup function.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.CheckpointStore, func(), error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewMemoryCheckpointStore(), func() {}, nil

	case "sqlite":
		s, err := sqlite.NewSqliteCheckpointStore(sqlite.SqliteOptions{Path: cfg.Path})
		if err != nil {
			return nil, nil, err
		}
		if err := s.InitSchema(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case "redis":
		s := redisstore.NewRedisCheckpointStore(redisstore.RedisOptions{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return s, func() { _ = s.Close() }, nil

	case "postgres":
		s, err := postgres.NewPostgresCheckpointStore(ctx, postgres.PostgresOptions{
			ConnString: cfg.ConnString,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := s.InitSchema(ctx); err != nil {
			s.Close()
			return nil, nil, err
		}
		return s, s.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
