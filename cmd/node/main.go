package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/hyosong/custodex/params"
	"github.com/hyosong/custodex/pkg/api"
	"github.com/hyosong/custodex/pkg/dex"
	"github.com/hyosong/custodex/pkg/dex/token"
	"github.com/hyosong/custodex/pkg/proxy"
	"github.com/hyosong/custodex/pkg/storage"
	"github.com/hyosong/custodex/pkg/util"
)

// devnet seeding: three tradable tokens plus the base currency, four
// trader accounts funded with 100000 of each.
var (
	devnetTokens  = []token.Ticker{"BAT", "REP", "ZRX"}
	devnetTraders = []common.Address{
		common.HexToAddress("0x00000000000000000000000000000000000000a0"),
		common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		common.HexToAddress("0x00000000000000000000000000000000000000a2"),
		common.HexToAddress("0x00000000000000000000000000000000000000a3"),
	}
)

const devnetSeedAmount = 100000

func main() {
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Node.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.Node.LogFile)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	store, err := storage.Open(cfg.Node.DataDir)
	if err != nil {
		sugar.Fatalw("storage_open_failed", "dir", cfg.Node.DataDir, "err", err)
	}

	admin := common.HexToAddress(cfg.Exchange.Admin)
	custody := common.HexToAddress(cfg.Exchange.Custody)
	base := token.Ticker(cfg.Exchange.BaseTicker)

	state, err := dex.NewState(dex.StateConfig{
		Base:    base,
		Admin:   admin,
		Custody: custody,
		Store:   store,
		Logger:  sugar,
	})
	if err != nil {
		sugar.Fatalw("state_init_failed", "err", err)
	}
	defer state.Close()

	p := proxy.New(state, dex.NewEngine())
	sugar.Infow("exchange_ready",
		"logic", p.Version(),
		"base", base,
		"admin", admin.Hex(),
		"next_order_id", p.NextOrderID())

	if cfg.Node.Devnet {
		if err := seedDevnet(p, state, base, admin, custody, sugar); err != nil {
			sugar.Fatalw("devnet_seed_failed", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiServer := api.NewServer(p, sugar)
	go func() {
		if err := apiServer.Start(cfg.Node.ListenAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")
}

// seedDevnet attaches mock token contracts and, on a fresh database,
// funds the trader accounts. Contract handles are runtime bindings so
// they are re-attached on every start; deposits only happen once.
func seedDevnet(p *proxy.Proxy, state *dex.State, base token.Ticker, admin, custody common.Address, sugar *zap.SugaredLogger) error {
	baseMock := token.NewMockToken(common.HexToAddress("0x00000000000000000000000000000000000d0001"))
	state.Registry.BindBase(baseMock)

	mocks := map[token.Ticker]*token.MockToken{base: baseMock}
	for i, ticker := range devnetTokens {
		m := token.NewMockToken(common.HexToAddress(fmt.Sprintf("0x00000000000000000000000000000000000d%04x", i+2)))
		if err := p.RegisterToken(admin, ticker, m); err != nil {
			return err
		}
		mocks[ticker] = m
	}

	seeded := len(state.Ledger.Accounts()) > 0
	for _, trader := range devnetTraders {
		for ticker, m := range mocks {
			m.Faucet(trader, devnetSeedAmount)
			if seeded {
				continue
			}
			if err := m.Approve(trader, custody, devnetSeedAmount); err != nil {
				return err
			}
			if err := p.Deposit(trader, ticker, devnetSeedAmount); err != nil {
				return err
			}
		}
	}

	if seeded {
		sugar.Infow("devnet_tokens_attached", "tokens", len(mocks))
	} else {
		sugar.Infow("devnet_seeded",
			"tokens", len(mocks),
			"traders", len(devnetTraders),
			"amount", devnetSeedAmount)
	}
	return nil
}
