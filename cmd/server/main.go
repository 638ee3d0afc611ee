package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ButyrinIA/forum/internal/config"
	"github.com/ButyrinIA/forum/internal/gateway"
	"github.com/ButyrinIA/forum/internal/logging"
	"github.com/ButyrinIA/forum/internal/metrics"
	"github.com/ButyrinIA/forum/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
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
		configPath string
		logLevel   string
		port       string
		apiURL     string
	)

	cmd := &cobra.Command{
		Use:   "forum",
		Short: "Community forum web client",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if port != "" {
				cfg.Server.Port = port
			}
			if apiURL != "" {
				cfg.API.BaseURL = apiURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "путь к файлу конфигурации")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "уровень логирования (debug, info, warn, error)")
	cmd.Flags().StringVar(&port, "port", "", "порт HTTP сервера")
	cmd.Flags().StringVar(&apiURL, "api", "", "адрес сервиса данных")
	return cmd
}

func run(cfg *config.Config) error {
	logger := logging.New(cfg.Log, os.Stderr)
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	api := gateway.New(cfg.API.BaseURL,
		gateway.WithLogger(logger.WithField("component", "gateway")),
		gateway.WithMetrics(m))

	srv := server.New(cfg, api, server.WithLogger(logger), server.WithMetrics(m))
	defer srv.Close()

	logger.WithField("api", cfg.API.BaseURL).Infof("Запуск сервера на порту %s", cfg.Server.Port)
	if err := srv.Run(ctx); err != nil {
		logger.WithError(err).Error("Сервер остановлен с ошибкой")
		return err
	}
	logger.Info("Сервер остановлен")
	return nil
}
