package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/orbitdesk/orbit/go-companion/internal/brain"
	"github.com/orbitdesk/orbit/go-companion/internal/config"
	"github.com/orbitdesk/orbit/go-companion/internal/ipc"
	"github.com/orbitdesk/orbit/go-companion/internal/loop"
	"github.com/orbitdesk/orbit/go-companion/internal/store"
)

// #region main

func main() {
	configPath := flag.String("config", "companion.toml", "path to companion.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Persistence is observability only; the companion runs without it.
	var st *store.Store
	st, err = store.New(cfg.DBPath)
	if err != nil {
		log.Printf("[MAIN] store unavailable, running without persistence: %v", err)
		st = nil
	} else {
		defer st.Close()
	}

	ollama := brain.NewOllamaGenerator(cfg.OllamaEndpoint, cfg.OllamaModel)
	b := brain.New(cfg.BrainMode(), ollama)

	server := ipc.NewServer()
	defer server.Close()

	deps := loop.Deps{
		Sampler:   server,
		Generator: b,
		Publisher: server,
		Actions:   server.Actions(),
		Toggles:   server.Toggles(),
	}
	if st != nil {
		deps.Recorder = st
	}
	lp := loop.New(cfg, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go serveIPC(ctx, cfg.ListenAddr, server)
	go watchReload(ctx, *configPath, lp)

	log.Printf("[MAIN] companiond ready (addr=%s, db=%s, mode=%s)", cfg.ListenAddr, cfg.DBPath, cfg.Mode)
	if err := lp.Run(ctx); err != nil {
		log.Fatalf("loop: %v", err)
	}
}

// #endregion main

// #region ipc-server

func serveIPC(ctx context.Context, addr string, server *ipc.Server) {
	mux := http.NewServeMux()
	mux.Handle("/ws", server)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("[MAIN] ipc server: %v", err)
	}
}

// #endregion ipc-server

// #region reload

// watchReload re-reads the config on SIGHUP. An invalid file is rejected
// whole; the running configuration stays in effect.
func watchReload(ctx context.Context, path string, lp *loop.Loop) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			cfg, err := config.Load(path)
			if err != nil {
				log.Printf("[MAIN] reload rejected: %v", err)
				continue
			}
			if err := lp.SubmitConfig(cfg); err != nil {
				log.Printf("[MAIN] reload rejected: %v", err)
				continue
			}
			log.Printf("[MAIN] config reload queued from %s", path)
		}
	}
}

// #endregion reload
