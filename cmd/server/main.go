package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"lottery-view/internal/api"
	"lottery-view/internal/cache"
	"lottery-view/internal/chain"
	"lottery-view/internal/logs"
	"lottery-view/internal/metrics"
	"lottery-view/internal/view"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "listen address for the view API")
		endpoints = flag.String("endpoints", "", "comma-separated contract gateway URLs")
		owner     = flag.String("owner", "", "hex address whose balance and allowance gate writes")
		spender   = flag.String("spender", "", "hex address of the lottery contract")
	)
	flag.Parse()

	if *endpoints == "" {
		log.Fatal("at least one -endpoints URL is required")
	}
	if !common.IsHexAddress(*owner) || !common.IsHexAddress(*spender) {
		log.Fatal("-owner and -spender must be hex addresses")
	}

	ctx := context.Background()
	cfg := view.DefaultConfig()

	// Logger
	logger := logs.NewLogger(1000, logs.DEBUG)

	// Metrics
	metricsRegistry := metrics.NewRegistry()

	// Cache + sweeper
	store := cache.NewStore(logger, metricsRegistry)
	sweeper := cache.NewSweeper(store, cfg.SweepInterval, logger, metricsRegistry)
	go sweeper.Start(ctx)

	// Ledger client with endpoint failover
	pool := chain.NewEndpointPool(chain.DefaultHealthPolicy(), metricsRegistry)
	for _, url := range strings.Split(*endpoints, ",") {
		pool.Add(strings.TrimSpace(url))
	}

	transport := chain.NewHTTPTransport(2 * cfg.CallDeadline)
	client := chain.NewClient(transport, pool, cfg.CallDeadline, logger, metricsRegistry)

	// Write path
	submitter := chain.NewSubmitter(client, client, chain.DefaultRetryPolicy(), logger, metricsRegistry)

	// Orchestrator
	ownerAddr := common.HexToAddress(*owner)
	spenderAddr := common.HexToAddress(*spender)

	orch := view.NewOrchestrator(client, store, cfg, ownerAddr, logger, metricsRegistry)
	go orch.Run(ctx)

	// API
	handler := api.NewHandler(
		orch,
		submitter,
		client,
		pool,
		metricsRegistry,
		logger,
		ownerAddr,
		spenderAddr,
	)
	mux := http.NewServeMux()
	httpHandler := api.RegisterRoutes(mux, handler)

	server := &http.Server{
		Addr:    *addr,
		Handler: httpHandler,
	}

	logger.Infof("view server started on %s", *addr)

	if err := server.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
