package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/clearsettle/clearsettle/params"
	"github.com/clearsettle/clearsettle/pkg/api"
	"github.com/clearsettle/clearsettle/pkg/exchange"
	"github.com/clearsettle/clearsettle/pkg/storage"
	"github.com/clearsettle/clearsettle/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("") // .env in current directory, then ENV

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("starting",
		"fee_account", cfg.Exchange.FeeAccount.Hex(),
		"fee_percent", cfg.Exchange.FeePercent,
		"db_path", cfg.Node.DBPath,
	)

	opts := []exchange.Option{exchange.WithLogger(sugar)}

	var store *storage.Store
	if cfg.Node.DBPath != "" {
		store, err = storage.Open(cfg.Node.DBPath)
		if err != nil {
			sugar.Fatalw("open_store", "err", err)
		}
		defer store.Close()
		opts = append(opts, exchange.WithStore(store))
	}
	if cfg.Exchange.Address != (common.Address{}) {
		opts = append(opts, exchange.WithAddress(cfg.Exchange.Address))
	}

	x := exchange.New(cfg.Exchange.FeeAccount, cfg.Exchange.FeePercent, opts...)
	if err := x.Load(); err != nil {
		sugar.Fatalw("load_state", "err", err)
	}
	sugar.Infow("state_ready", "orders", x.OrderCount())

	server := api.NewServer(x, sugar)
	go func() {
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	sugar.Infow("shutting_down")
}
