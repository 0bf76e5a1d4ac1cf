package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/leakwatch/blockchain/app/services/node/handlers"
	"github.com/leakwatch/blockchain/business/core/leak"
	"github.com/leakwatch/blockchain/foundation/blockchain/signature"
	"github.com/leakwatch/blockchain/foundation/blockchain/state"
	"github.com/leakwatch/blockchain/foundation/blockchain/storage"
	"github.com/leakwatch/blockchain/foundation/blockchain/worker"
	"github.com/leakwatch/blockchain/foundation/events"
	"github.com/leakwatch/blockchain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("LEDGER")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	// This is all the configuration for the application and the default values.
	// Configuration values will be passed through the application as individual
	// values.
	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
			CORSOrigin      string        `conf:"default:*"`
		}
		Ledger struct {
			Storage      string        `conf:"default:disk"`
			Path         string        `conf:"default:zblock/ledger"`
			DSN          string        `conf:"mask"`
			DBTimeout    time.Duration `conf:"default:5s"`
			NodeKey      string        `conf:"default:zblock/node.ecdsa"`
			ReportReward float64       `conf:"default:5"`
			ReportRate   float64       `conf:"default:1"`
			ReportBurst  int           `conf:"default:5"`
			VerifyEvery  time.Duration `conf:"default:5m"`
		}
		Model struct {
			Path string `conf:"default:zblock/models/leak.yaml"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "water leak reports and rewards ledger",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "LEDGER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Ledger Support

	// The node key signs the chain tip so clients can check what this node
	// attests to without trusting its storage.
	nodeKey, err := loadNodeKey(cfg.Ledger.NodeKey)
	if err != nil {
		return fmt.Errorf("unable to load node key: %w", err)
	}
	log.Infow("startup", "status", "node key loaded", "address", signature.Address(nodeKey.PublicKey))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Ledger.DBTimeout)
	defer cancel()

	strg, err := storage.Open(ctx, storage.Config{
		Kind:    cfg.Ledger.Storage,
		Path:    cfg.Ledger.Path,
		DSN:     cfg.Ledger.DSN,
		Timeout: cfg.Ledger.DBTimeout,
	})
	if err != nil {
		return fmt.Errorf("unable to open %s storage: %w", cfg.Ledger.Storage, err)
	}

	// The ledger packages accept a function of this signature to allow the
	// application to log. Block events are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := evts.Handler(log)

	// The state value represents the ledger and manages the chain and
	// provides an API for application support.
	st, err := state.New(state.Config{
		Storage:      strg,
		ReportReward: cfg.Ledger.ReportReward,
		NodeKey:      nodeKey,
		EvHandler:    ev,
	})
	if err != nil {
		strg.Close()
		return err
	}
	defer st.Shutdown()

	log.Infow("startup", "status", "ledger verified", "blocks", len(st.RetrieveChain()), "latest", st.RetrieveLatestBlock().Hash)

	// The worker re-verifies the chain against storage in the background so
	// tampering with the stored blocks halts the ledger.
	wrk := worker.Run(st, cfg.Ledger.VerifyEvery, ev)
	defer wrk.Shutdown()

	// =========================================================================
	// Leak Model Support

	detector, err := leak.NewDetector(log, cfg.Model.Path)
	if err != nil {
		return fmt.Errorf("unable to load leak model: %w", err)
	}

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// The Debug function returns a mux to listen and serve on for all the debug
	// related endpoints. This includes the standard library endpoints.

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	muxCfg := handlers.MuxConfig{
		Shutdown:    shutdown,
		Log:         log,
		State:       st,
		Detector:    detector,
		Worker:      wrk,
		Evts:        evts,
		CORSOrigin:  cfg.Web.CORSOrigin,
		ReportRate:  cfg.Ledger.ReportRate,
		ReportBurst: cfg.Ledger.ReportBurst,
	}

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      handlers.PublicMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	// Construct a server to service the requests against the mux.
	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      handlers.PrivateMux(muxCfg),
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// loadNodeKey reads the node's private key, generating and saving a new one
// on first start.
func loadNodeKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.LoadECDSA(path)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	key, err = crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	if err := crypto.SaveECDSA(path, key); err != nil {
		return nil, err
	}

	return key, nil
}
