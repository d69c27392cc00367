package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"showtimedb-cli/config"
	"showtimedb-cli/devserver"
	"showtimedb-cli/logger"
)

const appName = "showtimedb-devserver"

var version = "dev"

func main() {
	flagSet := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	configPath := flagSet.String("config", "", "path to a YAML config file (default: $SHOWTIMEDB_CONFIG)")
	addr := flagSet.String("addr", "", "listen address (overrides devserver.addr)")
	mysqlDSN := flagSet.String("mysql", "", "MySQL DSN; the in-memory store is used when empty")
	seed := flagSet.Bool("seed", true, "load the demo catalog into an empty store")
	showVersion := flagSet.BoolP("version", "v", false, "print version and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\nRun the movie service REST API locally.\n\nFlags:\n", appName)
		fmt.Fprint(os.Stderr, flagSet.FlagUsages())
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	if *showVersion {
		fmt.Printf("%s %s\n", appName, version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if flagSet.Changed("addr") {
		cfg.DevServer.Addr = *addr
	}
	if flagSet.Changed("mysql") {
		cfg.DevServer.MySQLDSN = *mysqlDSN
	}
	if flagSet.Changed("seed") {
		cfg.DevServer.Seed = *seed
	}
	if err := cfg.ValidateDevServer(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	if err := run(cfg, log); err != nil {
		logger.Fatal("devserver stopped", "error", err)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg.DevServer.MySQLDSN, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	if cfg.DevServer.Seed {
		seeded, err := repo.Seed(ctx, devserver.DefaultSeed(time.Now()))
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		log.Info("catalog seed", "loaded", seeded)
	}

	auth := devserver.NewAuthenticator(cfg.DevServer.JWTSecret, cfg.DevServer.TokenTTL.Std(), cfg.DevServer.BcryptCost)
	srv := devserver.New(devserver.Options{Repo: repo, Auth: auth, Logger: log})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(cfg.DevServer.Addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openRepository(ctx context.Context, dsn string, log *slog.Logger) (devserver.Repository, func(), error) {
	if dsn == "" {
		log.Info("using in-memory store")
		return devserver.NewMemoryRepository(), func() {}, nil
	}
	repo, err := devserver.OpenMySQL(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open mysql: %w", err)
	}
	log.Info("using mysql store")
	return repo, func() {
		if err := repo.Close(); err != nil {
			log.Warn("close mysql", "error", err)
		}
	}, nil
}
