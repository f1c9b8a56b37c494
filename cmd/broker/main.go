package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/congo-pay/payword/internal/config"
	"github.com/congo-pay/payword/internal/infra"
	"github.com/congo-pay/payword/internal/keys"
	"github.com/congo-pay/payword/internal/logging"
	"github.com/congo-pay/payword/internal/metrics"
	"github.com/congo-pay/payword/internal/migrations"
	"github.com/congo-pay/payword/internal/protocol"
	"github.com/congo-pay/payword/internal/routes"
	"github.com/congo-pay/payword/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.With(logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat), "broker")

	ctx := context.Background()

	stores, err := infra.OpenStores(ctx, cfg.DatabaseURL, cfg.RedisURL, !cfg.IsDev())
	if err != nil {
		logger.Error("open stores", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			logger.Warn("close stores", "error", err)
		}
	}()
	if stores.DB != nil {
		if err := migrations.Up(ctx, stores.DB); err != nil {
			logger.Error("migrate", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no DATABASE_URL, using in-memory registry and ledger")
	}

	name := cfg.Payword.Identity
	if name == "" {
		name = "broker"
	}
	identity, err := protocol.NewIdentity(name, cfg.Payword.IdentityWidth)
	if err != nil {
		logger.Error("identity", "error", err)
		os.Exit(1)
	}
	scheme, err := keys.Scheme(cfg.Payword.SignatureScheme)
	if err != nil {
		logger.Error("signature scheme", "error", err)
		os.Exit(1)
	}
	keystore, err := keys.OpenKeystore(cfg.Payword.Keystore)
	if err != nil {
		logger.Error("open keystore", "error", err)
		os.Exit(1)
	}
	defer keystore.Close()
	kp, created, err := keystore.LoadOrGenerate(scheme, name)
	if err != nil {
		logger.Error("load broker key", "error", err)
		os.Exit(1)
	}
	if created {
		logger.Info("generated broker key", "scheme", scheme.Name(), "persistent", cfg.Payword.Keystore != "")
	}

	srv, _, err := server.NewBroker(cfg, stores, routes.BrokerParty{Identity: identity, Keys: kp}, metrics.New("broker"), logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
