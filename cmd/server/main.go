package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"outlands.gg/internal/config"
	"outlands.gg/internal/events"
	"outlands.gg/internal/guard"
	"outlands.gg/internal/persistence/indexdb"
	persistlog "outlands.gg/internal/persistence/log"
	"outlands.gg/internal/policy"
	"outlands.gg/internal/registry"
	"outlands.gg/internal/transport/ws"
	"outlands.gg/internal/trust"
	"outlands.gg/internal/waypoints"
)

// auditFan forwards pipeline outcomes to every sink.
type auditFan []policy.AuditSink

func (f auditFan) RecordPolicy(e policy.AuditEntry) {
	for _, s := range f {
		s.RecordPolicy(e)
	}
}

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		configPath = flag.String("config", "./configs/server.yaml", "server config path")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load config: %v", err)
		}
		logger.Printf("config %s missing, using defaults", *configPath)
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Addr = *addr
	}
	if strings.TrimSpace(*dataDir) != "" {
		cfg.DataDir = *dataDir
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)

	// Read-model index (does not affect gameplay dispatch).
	var idx *indexdb.Index
	if !*disableDB {
		idx, err = indexdb.Open(filepath.Join(cfg.DataDir, "index", "server.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
	}

	policyLog := persistlog.NewPolicyLogger(cfg.DataDir)
	defer policyLog.Close()
	trustLog := persistlog.NewTrustLogger(cfg.DataDir)
	defer trustLog.Close()

	// External collaborator registries.
	owners := registry.NewOwnership()
	balances := registry.NewBalances()
	wanted := registry.NewWantedList()
	bounties := registry.NewBountyBoard(balances)
	clans := registry.NewClans()

	// Trust ledger: wholesale load now, wholesale save at shutdown. A load
	// failure degrades to an empty ledger.
	ledger := trust.NewLedger(owners)
	trustPath := filepath.Join(cfg.DataDir, "trust.json")
	guard.Run(logger, "trust.load", func() error {
		return ledger.LoadFile(trustPath)
	})

	store := waypoints.NewStore()
	bus := events.NewBus(logger)

	sinks := auditFan{policyLog}
	if idx != nil {
		sinks = append(sinks, idx)
	}
	pipeline := policy.NewPipeline(policy.Deps{
		Logger:   logger,
		Config:   func() policy.Config { return cfg.PolicySnapshot() },
		Owners:   owners,
		Balances: balances,
		Wanted:   wanted,
		Bounties: bounties,
		Groups:   clans,
		Audit:    sinks,
	})
	bus.OnDeath("policy.death_pipeline", pipeline.HandleDeath)

	var recorder ws.HandshakeRecorder
	if idx != nil {
		recorder = idx
	}
	server := ws.NewServer(logger, store, recorder, cfg.PushInterval())
	bus.OnTick("ws.snapshot_push", func(uint64) { server.TickAll(time.Now()) })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// World tick driver. The per-session debounce keeps the actual push
	// rate at the configured interval.
	go func() {
		tk := time.NewTicker(250 * time.Millisecond)
		defer tk.Stop()
		var tick uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				tick++
				bus.PublishTick(tick)
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", server.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	registerAdminHandlers(mux, adminDeps{
		logger:   logger,
		ledger:   ledger,
		owners:   owners,
		clans:    clans,
		wanted:   wanted,
		store:    store,
		bus:      bus,
		trustLog: trustLog,
		index:    idx,
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	httpSrv := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	// Save failure leaves the previous on-disk ledger stale; log and move on.
	guard.Run(logger, "trust.save", func() error {
		return ledger.SaveFile(trustPath)
	})
	logger.Printf("bye")
}
