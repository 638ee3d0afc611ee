// Локальный сервис данных форума в формате json-server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ButyrinIA/forum/internal/config"
	"github.com/ButyrinIA/forum/internal/dataservice"
	"github.com/ButyrinIA/forum/internal/logging"
	"github.com/ButyrinIA/forum/internal/storage"
	"github.com/ButyrinIA/forum/internal/storage/memory"
	"github.com/ButyrinIA/forum/internal/storage/postgres"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath  string
		storageType string
		seedPath    string
		port        string
	)

	cmd := &cobra.Command{
		Use:   "dataservice",
		Short: "json-server compatible data service for the forum",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
			}
			if storageType != "" {
				cfg.DataService.Storage = storageType
			}
			if seedPath != "" {
				cfg.DataService.Seed = seedPath
			}
			if port != "" {
				cfg.DataService.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "путь к файлу конфигурации")
	cmd.Flags().StringVar(&storageType, "storage", "", "тип хранилища: memory или postgres")
	cmd.Flags().StringVar(&seedPath, "seed", "", "файл с начальными данными (YAML или JSON)")
	cmd.Flags().StringVar(&port, "port", "", "порт HTTP сервера")
	return cmd
}

func run(cfg *config.Config) error {
	logger := logging.New(cfg.Log, os.Stderr)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Storage
	switch cfg.DataService.Storage {
	case "postgres":
		logger.Info("Инициализация хранилища PostgreSQL")
		pg, err := postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("не удалось инициализировать PostgreSQL: %w", err)
		}
		store = pg
	default:
		logger.Info("Инициализация хранилища Memory")
		store = memory.New()
	}
	defer store.Close()

	if cfg.DataService.Seed != "" {
		n, err := dataservice.Seed(ctx, store, cfg.DataService.Seed)
		if err != nil {
			return err
		}
		logger.Infof("Загружено записей: %d", n)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.DataService.Port,
		Handler:           dataservice.New(store, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Запуск сервиса данных на порту %s", cfg.DataService.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("не удалось запустить сервер: %w", err)
	}
	return nil
}
