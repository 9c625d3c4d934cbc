package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/justloop/cloudstate"
	"github.com/justloop/cloudstate/cloud"
	"github.com/justloop/cloudstate/coord"
	"github.com/justloop/cloudstate/statecache"
	"github.com/justloop/cloudstate/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	servers        = flag.String("servers", "127.0.0.1:2181", "comma-separated coordination servers (host:port)")
	sessionTimeout = flag.Duration("session-timeout", coord.DefaultSessionTimeout, "session timeout")
	updateDelay    = flag.Duration("update-delay", cloudstate.DefaultUpdateDelay, "delay of scheduled refreshes")
	cacheDir       = flag.String("cache-dir", "", "directory of the last known state cache, disabled if empty")
	logLevel       = flag.String("log-level", "info", "log level")

	leader      = flag.String("leader", "", "print the leader url of collection/shard and exit")
	cached      = flag.Bool("cached", false, "print the state saved in -cache-dir and exit, no connection is made")
	watch       = flag.Bool("watch", false, "keep running and follow the cluster state")
	metricsAddr = flag.String("metrics-addr", ":9108", "metrics listen address in watch mode")
)

func main() {
	flag.Parse()

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level %q: %v", *logLevel, err)
	}
	log.SetLevel(level)

	if *cached {
		runCached(*cacheDir)
		return
	}

	reader, err := cloudstate.NewWithServers(&cloudstate.Config{
		UpdateDelay: *updateDelay,
		CacheDir:    *cacheDir,
		CoordConfig: &coord.Config{
			Servers:        coord.ParseServers(*servers),
			SessionTimeout: *sessionTimeout,
		},
	})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.Errorf("Error closing reader: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := reader.Bootstrap(ctx); err != nil {
		log.Errorf("Failed to bootstrap: %v", err)
		return
	}

	switch {
	case *leader != "":
		printLeader(ctx, reader, *leader)
	case *watch:
		runWatch(ctx, reader, *metricsAddr)
	default:
		printSnapshot(reader.CurrentSnapshot(), time.Now())
	}
}

func printLeader(ctx context.Context, reader cloudstate.Reader, target string) {
	collection, shard, ok := strings.Cut(target, "/")
	if !ok {
		log.Errorf("Invalid -leader %q, expected collection/shard", target)
		return
	}
	if !reader.CurrentSnapshot().HasCollection(collection) {
		log.Errorf("Unknown collection %q", collection)
		return
	}
	url, err := reader.GetLeaderURL(ctx, collection, shard)
	if err != nil {
		log.Errorf("Failed to get leader: %v", err)
		return
	}
	fmt.Println(url)
}

func runWatch(ctx context.Context, reader cloudstate.Reader, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics server error: %v", err)
		}
	}()
	log.Infof("Serving metrics on %s", addr)

	<-ctx.Done()
	log.Infof("Shutting down, reader state: %s", utils.GetJSONStr(reader.Debug()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error stopping metrics server: %v", err)
	}
}

func runCached(dir string) {
	if dir == "" {
		fmt.Println("Usage: cloudstate -cached -cache-dir <dir>")
		os.Exit(1)
	}
	cache, err := statecache.Open(dir)
	if err != nil {
		log.Fatalf("Failed to open state cache: %v", err)
	}
	defer cache.Close()

	snapshot, savedAt, err := cache.Load()
	if err != nil {
		log.Errorf("Failed to load state cache: %v", err)
		return
	}
	printSnapshot(snapshot, savedAt)
}

func printSnapshot(snapshot *cloud.Snapshot, at time.Time) {
	data, err := cloud.JSONCodec{}.Encode(snapshot)
	if err != nil {
		log.Errorf("Failed to encode snapshot: %v", err)
		return
	}
	fmt.Printf("# %s\n", at.Format(time.RFC3339))
	fmt.Printf("live_nodes: %s\n", strings.Join(snapshot.LiveNodes().List(), ","))
	fmt.Println(string(data))
}
