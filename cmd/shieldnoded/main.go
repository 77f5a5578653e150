// Command shieldnoded is the node binary: it loads the operator's
// environment config, opens the durable KV store, wires every component
// into pkg/app, and serves the resulting ABCI application to a CometBFT
// consensus process over the configured socket address. Grounded on the
// teacher's main.go (config.Load, signal-driven graceful shutdown, an HTTP
// mux for operational endpoints run alongside the consensus engine), with
// the Accumulate/Ethereum/Firestore/batch-anchoring wiring that file does
// replaced by this state machine's own component set.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	abciserver "github.com/cometbft/cometbft/abci/server"
	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/shieldnet/core/internal/metrics"
	"github.com/shieldnet/core/pkg/app"
	"github.com/shieldnet/core/pkg/component/ibc"
	"github.com/shieldnet/core/pkg/config"
	"github.com/shieldnet/core/pkg/store"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	log.Printf("shieldnoded starting: abci=%s data=%s genesis=%s ibc_verifier=%s",
		cfg.ABCIListenAddr, cfg.DataDir, cfg.GenesisPath, cfg.IBCVerifierMode)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("creating data directory %s: %v", cfg.DataDir, err)
	}

	db, err := dbm.NewGoLevelDB("shieldnode", cfg.DataDir)
	if err != nil {
		log.Fatalf("opening state database: %v", err)
	}
	st, err := store.Open(store.NewKVDBAdapter(db))
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer st.Close()

	verifier := verifierForMode(cfg.IBCVerifierMode)
	application := app.New(st, verifier)

	abciSrv, err := abciserver.NewServer(cfg.ABCIListenAddr, "socket", application)
	if err != nil {
		log.Fatalf("creating ABCI server: %v", err)
	}
	abciSrv.SetLogger(cmtlog.NewTMLogger(os.Stdout).With("module", "abci"))
	if err := abciSrv.Start(); err != nil {
		log.Fatalf("starting ABCI server: %v", err)
	}
	log.Printf("ABCI server listening on %s", cfg.ABCIListenAddr)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","height":%d}`, st.Version())
	})
	healthServer := &http.Server{Addr: cfg.HealthAddr, Handler: healthMux}

	go func() {
		log.Printf("metrics server listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server: %v", err)
		}
	}()
	go func() {
		log.Printf("health server listening on %s", cfg.HealthAddr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("health server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down shieldnoded...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("health server shutdown error: %v", err)
	}
	if err := abciSrv.Stop(); err != nil {
		log.Printf("abci server shutdown error: %v", err)
	}
	log.Printf("shieldnoded stopped")
}

// verifierForMode selects the IBC light-client verifier. "strict" is
// reserved for a future real header-verification implementation; today
// both modes resolve to the trusted verifier, since this repo does not yet
// carry the Tendermint light-client proof machinery spec.md's Non-goal
// excludes. The distinct mode still exists so an operator's config file
// documents intent and the switch has a home to grow into.
func verifierForMode(mode string) ibc.ClientVerifier {
	switch mode {
	case "strict":
		log.Printf("warning: strict IBC verifier mode requested but not implemented; falling back to trusted")
		return ibc.TrustedVerifier{}
	default:
		return ibc.TrustedVerifier{}
	}
}
