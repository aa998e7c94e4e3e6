package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/clearport/params"
	"github.com/uhyunpark/clearport/pkg/api"
	"github.com/uhyunpark/clearport/pkg/auth"
	"github.com/uhyunpark/clearport/pkg/order"
	"github.com/uhyunpark/clearport/pkg/settlement"
	"github.com/uhyunpark/clearport/pkg/storage"
	"github.com/uhyunpark/clearport/pkg/util"
	"github.com/uhyunpark/clearport/pkg/vault"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	store, err := storage.NewLedgerStore(cfg.Node.DBPath)
	if err != nil {
		logger.Fatal("open_ledger_store", zap.Error(err))
	}
	defer store.Close()

	custodian := vault.NewAccountVault(common.HexToAddress(cfg.Node.Relayer))

	allowlist := auth.NewAllowlist(common.HexToAddress(cfg.Node.Manager))
	for _, s := range cfg.Solvers {
		if err := allowlist.AddSolver(allowlist.Manager(), common.HexToAddress(s)); err != nil {
			logger.Fatal("seed_solver", zap.String("solver", s), zap.Error(err))
		}
	}

	domain := order.Domain{
		Name:              cfg.Domain.Name,
		Version:           cfg.Domain.Version,
		ChainID:           cfg.Domain.ChainID,
		VerifyingContract: common.HexToAddress(cfg.Domain.VerifyingContract),
	}

	server := api.NewServer(logger, store, domain)

	engine := settlement.NewEngine(settlement.Config{
		Log:       logger,
		Domain:    domain,
		Self:      common.HexToAddress(cfg.Node.Self),
		Auth:      allowlist,
		Custodian: custodian,
		Store:     store,
		Contracts: auth.NewContractRegistry(),
		Executor: settlement.ExecutorFunc(func(i settlement.Interaction) error {
			logger.Info("interaction_executed", zap.String("target", i.Target.Hex()))
			return nil
		}),
		Sink:  server,
		Clock: util.RealClock{},
	})

	logger.Info("engine_ready",
		zap.String("self", engine.Self().Hex()),
		zap.String("domain", domain.Name),
		zap.Int("solvers", len(cfg.Solvers)))

	go func() {
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			logger.Fatal("api_server", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting_down")
}
