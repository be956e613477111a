// Command arbor-uci is the UCI entrypoint: it loads the quantized policy
// and value networks, opens the telemetry store, and drives the protocol
// loop over stdin/stdout.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arborchess/arbor/internal/arena"
	"github.com/arborchess/arbor/internal/network"
	"github.com/arborchess/arbor/internal/search"
	"github.com/arborchess/arbor/internal/store"
	"github.com/arborchess/arbor/internal/uci"
)

var (
	policyPath  = flag.String("policy", "", "path to the quantized policy network file")
	valuePath   = flag.String("value", "", "path to the quantized value network file")
	hashMB      = flag.Int("hash", 256, "search tree size in MB")
	threads     = flag.Int("threads", 1, "number of search worker threads")
	dataDir     = flag.String("datadir", "", "override the telemetry database directory")
	metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. 127.0.0.1:9600)")
)

var (
	nodesSearched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbor_nodes_searched_total",
		Help: "Total MCTS iterations performed across all searches.",
	})
	treeFlips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arbor_tree_flips_total",
		Help: "Total arena half-flips performed across all searches.",
	})
	hashFullGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arbor_hashfull_permille",
		Help: "Hash table occupancy in permille, sampled after the most recent search.",
	})
)

func main() {
	flag.Parse()

	// UCI's wire protocol owns stdout; all diagnostic logging goes to
	// stderr, never stdout.
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	if *policyPath == "" || *valuePath == "" {
		logger.Fatal("missing required network paths", zap.String("policy", *policyPath), zap.String("value", *valuePath))
	}

	policy, err := network.LoadPolicy(*policyPath)
	if err != nil {
		logger.Fatal("failed to load policy network", zap.Error(err), zap.String("path", *policyPath))
	}
	value, err := network.LoadValue(*valuePath)
	if err != nil {
		logger.Fatal("failed to load value network", zap.Error(err), zap.String("path", *valuePath))
	}
	logger.Info("networks loaded", zap.String("policy", *policyPath), zap.String("value", *valuePath))

	var telemetry *store.Store
	if *dataDir != "" {
		telemetry, err = store.OpenAt(*dataDir)
	} else {
		telemetry, err = store.Open()
	}
	if err != nil {
		logger.Warn("telemetry store unavailable, continuing without it", zap.Error(err))
		telemetry = nil
	} else {
		defer telemetry.Close()
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("addr", *metricsAddr))
	}

	eng := uci.NewEngine(policy, value, telemetry, logger)
	eng.HashMB = *hashMB
	eng.Threads = *threads
	eng.Tree = arena.NewMB(*hashMB, *threads)
	eng.Searcher = search.NewSearcher(eng.Tree, eng.Params, policy, value, *threads)
	eng.Metrics = &uci.Metrics{
		NodesSearched: nodesSearched,
		TreeFlips:     treeFlips,
		HashFull:      hashFullGauge,
	}

	handler := uci.New(eng)
	handler.Run()

	fmt.Fprintln(os.Stderr, "arbor-uci exiting")
}
