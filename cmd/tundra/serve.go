package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cfoust/tundra/pkg/config"
	"github.com/cfoust/tundra/pkg/ingress"
	"github.com/cfoust/tundra/pkg/servers"
	"github.com/cfoust/tundra/pkg/state"
	"github.com/cfoust/tundra/pkg/statsd"

	"github.com/rs/zerolog/log"
)

func serveCommand(configs []string) error {
	cfg, err := config.Process(configs)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.StatsdAddress != "" {
		err := statsd.Init(cfg.Metrics.StatsdAddress, cfg.Metrics.Tags)
		if err != nil {
			return fmt.Errorf("failed to initialize statsd: %w", err)
		}
		log.Info().Str("address", cfg.Metrics.StatsdAddress).Msg("emitting metrics")
	}

	var accounts ingress.Authenticator
	if cfg.Storage.DBPath != "" {
		db, err := state.InitDB(cfg.Storage.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		accounts = state.NewAccounts(db)
		log.Info().Str("path", cfg.Storage.DBPath).Msg("player accounts enabled")
	}

	manager := servers.NewManager(ctx, servers.UUIDGenerator{})

	if cfg.Storage.Redis.Address != "" {
		presence := state.NewPresence(cfg.Storage.Redis)
		defer presence.Close()

		if err := presence.Ping(ctx); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
		manager.SetPresence(presence)
		log.Info().Str("address", cfg.Storage.Redis.Address).Msg("recording presence")
	}

	defer manager.Shutdown()

	for _, id := range cfg.Server.Sessions {
		_, err := manager.Create(servers.Options{
			ID:     id,
			Config: cfg.Game,
		})
		if err != nil {
			return err
		}
	}

	wsIngress := ingress.NewWSIngress(manager, accounts, cfg.Ingress)

	mux := http.NewServeMux()
	mux.Handle(ingress.WS_PREFIX, wsIngress)
	mux.Handle(servers.API_PREFIX, manager)
	mux.Handle(servers.API_PREFIX+"/", manager)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listen, err := net.Listen("tcp", address)
	if err != nil {
		log.Error().Err(err).Msg("failed to bind port")
		return err
	}

	httpServer := &http.Server{
		Handler: LogRequests(NoStore(mux)),
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Msgf("listening on http://%v", listen.Addr())
		errc <- httpServer.Serve(listen)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Info().Msgf("caught %s, shutting down", sig)
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownMillis)*time.Millisecond,
	)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("connections did not drain")
	}

	return nil
}
