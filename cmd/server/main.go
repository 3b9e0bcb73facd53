package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gastrochef/internal/auth"
	"gastrochef/internal/catalog"
	"gastrochef/internal/game"
	"gastrochef/internal/httpapi"
	"gastrochef/internal/journal"
	"gastrochef/internal/metrics"
	"gastrochef/internal/store"
	"gastrochef/internal/transport/ws"
	"gastrochef/internal/tuning"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		dbPath      = flag.String("db", "", "sqlite database path (default: <data>/gastrochef.db)")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		catalogPath = flag.String("catalog", "", "path to catalog.yaml (default: <configs>/catalog.yaml)")
		secret      = flag.String("secret", "", "token signing secret (or set GC_TOKEN_SECRET)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tokenSecret := strings.TrimSpace(*secret)
	if tokenSecret == "" {
		tokenSecret = strings.TrimSpace(os.Getenv("GC_TOKEN_SECRET"))
	}
	authority, err := auth.NewTokenAuthority(tokenSecret)
	if err != nil {
		logger.Fatalf("token authority: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	cp := strings.TrimSpace(*catalogPath)
	if cp == "" {
		cp = filepath.Join(*configDir, "catalog.yaml")
	}
	cat, err := catalog.Load(cp)
	if err != nil {
		logger.Fatalf("load catalog: %v", err)
	}

	_ = os.MkdirAll(*dataDir, 0o755)
	dp := strings.TrimSpace(*dbPath)
	if dp == "" {
		dp = filepath.Join(*dataDir, "gastrochef.db")
	}
	st, err := store.Open(dp)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ledger := journal.NewWriter(filepath.Join(*dataDir, "ledger"), "ledger")
	defer ledger.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	engine, err := game.NewEngine(game.EngineConfig{
		Store:   st,
		Catalog: cat,
		Tuning:  tune,
		Metrics: m,
		Journal: ledger,
		Log:     logger,
	})
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}

	api := httpapi.New(st, cat, authority, tune, ledger, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", ws.NewServer(engine, authority, logger).Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", api.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
