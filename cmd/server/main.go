package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-token-exchange/authcode"
	"github.com/jrsteele09/go-token-exchange/clients"
	fakeclientrepo "github.com/jrsteele09/go-token-exchange/clients/fakerepo"
	"github.com/jrsteele09/go-token-exchange/exchange"
	"github.com/jrsteele09/go-token-exchange/internal/config"
	"github.com/jrsteele09/go-token-exchange/internal/logging"
	"github.com/jrsteele09/go-token-exchange/internal/metrics"
	"github.com/jrsteele09/go-token-exchange/server"
	"github.com/jrsteele09/go-token-exchange/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return err
	}
	if err := logging.SetupStderr(c.GetLogLevel(), c.GetLogFormat()); err != nil {
		return err
	}
	displayAppname(c.GetAppName())

	store, err := authcode.NewStore(c.GetAuthCodeStoreConfig())
	if err != nil {
		return errors.Wrap(err, "open authorization code store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Err(err).Msg("close authorization code store")
		}
	}()

	handler, collector, err := buildServer(c, store)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go purgeExpiredCodes(ctx, store, c.GetCodeCleanupInterval(), collector)

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func buildServer(c config.Config, store authcode.Store) (http.Handler, *metrics.Collector, error) {
	repo := fakeclientrepo.NewFakeClientRepo()
	if path := c.GetClientsFile(); path != "" {
		registered, err := clients.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		if err := clients.Seed(repo, registered); err != nil {
			return nil, nil, err
		}
		log.Info().Int("clients", len(registered)).Str("file", path).Msg("Loaded clients")
	} else {
		log.Warn().Msg("CLIENTS_FILE is not set; every client will be rejected")
	}

	validator, err := clients.NewCredentialValidator(repo)
	if err != nil {
		return nil, nil, err
	}

	signerConfig := c.GetSignerConfig()
	if signerConfig.Type != token.SignerTypeHS256 && signerConfig.PrivateKeyFile == "" {
		log.Warn().Str("kid", signerConfig.KeyID).Msg("No SIGNING_KEY_FILE; using a generated key that will not survive a restart")
	}
	signer, err := token.NewSignerFromConfig(signerConfig)
	if err != nil {
		return nil, nil, err
	}

	issuer, err := token.NewIssuer(store, signer,
		token.WithIssuer(c.GetBaseURL()),
		token.WithAudience(c.GetAudience()),
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetIDTokenExpiry()),
	)
	if err != nil {
		return nil, nil, err
	}

	ex, err := exchange.NewExchange(exchange.Collaborators{
		Clients:      validator,
		Codes:        store,
		AccessTokens: issuer,
		IDTokens:     issuer,
	})
	if err != nil {
		return nil, nil, err
	}

	collector := metrics.NewCollector()
	srv, err := server.New(c, server.Dependencies{
		Exchange: ex,
		Signer:   signer,
		Metrics:  collector,
	})
	if err != nil {
		return nil, nil, err
	}
	return srv, collector, nil
}

// purgeExpiredCodes removes codes that expired more than
// authcode.ExpiredRetention ago, until ctx is cancelled.
func purgeExpiredCodes(ctx context.Context, store authcode.Store, interval time.Duration, collector *metrics.Collector) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := store.DeleteExpired(ctx, now.Add(-authcode.ExpiredRetention)); err != nil {
				log.Err(err).Msg("purge expired authorization codes")
				continue
			}
			collector.RecordExpiredCodePurge()
		}
	}
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server.ListenAndServe")
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
