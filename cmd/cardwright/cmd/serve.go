package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/cardwright/internal/authoring"
	"github.com/solatis/cardwright/internal/core/api"
	"github.com/solatis/cardwright/internal/core/auth"
	"github.com/solatis/cardwright/internal/core/config"
	"github.com/solatis/cardwright/internal/core/server"
	"github.com/solatis/cardwright/internal/metrics"
	"github.com/solatis/cardwright/internal/platform/logger"
	"github.com/solatis/cardwright/internal/rules"
	"github.com/solatis/cardwright/internal/validate"
)

const Version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC expression API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	serveCmd.Flags().String("validator-addr", "", "delegate evaluation to a remote validator at this address")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyServeFlags(cmd, cfg)

	log, err := logger.New(logLevel, logFormat)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	m := metrics.New()
	sqlStore, loader, err := openStore(database, cfg, m)
	if err != nil {
		return err
	}

	var validator validate.Validator = rules.NewEvaluator()
	if cfg.ValidatorAddr != "" {
		conn, err := api.DialValidator(cfg.ValidatorAddr, cfg.ValidatorToken)
		if err != nil {
			return err
		}
		defer conn.Close()
		validator = api.NewRemoteValidator(conn, cfg.ValidatorTimeout)
		log.Info("using remote validator", "addr", cfg.ValidatorAddr)
	}

	validation := validate.NewService(loader, validator, validate.WithMetrics(m), validate.WithLogger(log))
	writer := authoring.NewService(loader, sqlStore, authoring.WithMetrics(m), authoring.WithLogger(log))
	expression, err := api.NewExpressionService(loader, validation, writer,
		api.WithLenientParse(cfg.LenientUnresolved),
		api.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	opts := []server.Option{server.WithLogger(log), server.WithMetrics(m)}
	if cfg.APIToken != "" {
		opts = append(opts, server.WithAuthenticator(auth.NewAuthenticator(cfg.APIToken)))
	} else {
		log.Warn("CW_API_TOKEN not set, serving without authentication")
	}

	// The validator service always evaluates in process, so this instance can
	// act as the remote validator of another.
	grpcServer, err := server.NewGRPCServer(cfg, expression, api.NewValidatorService(rules.NewEvaluator(), log), opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("starting cardwright", "version", Version, "host", cfg.Host, "port", cfg.Port)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(context.Background())
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout+5*time.Second)
		defer cancel()
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errChan
	}
}

func applyServeFlags(cmd *cobra.Command, cfg *config.ServerConfig) {
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}
	if cmd.Flags().Changed("validator-addr") {
		cfg.ValidatorAddr, _ = cmd.Flags().GetString("validator-addr")
	}
}
