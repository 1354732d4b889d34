// Command dlobsim loads an order fixture into a Dlob and prints the taking
// and resting books at a given slot, the way a live subscriber-fed book
// would look to a caller without standing up an RPC connection.
package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"dlob/internal/common"
	"dlob/internal/dlob"
	"dlob/internal/oracle"
	"dlob/internal/subscriber"
)

func main() {
	configPath := flag.String("config", "configs/dlobsim.yaml", "path to dlobsim config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.Logging.Level).Msg("invalid logging.level")
	}
	zerolog.SetGlobalLevel(level)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("dlobsim failed")
	}
}

func run(ctx context.Context, cfg *Config) error {
	marketType, err := parseMarketTypeFlag(cfg.MarketType)
	if err != nil {
		return err
	}
	tickSize, err := oracle.ParsePrice(cfg.TickSize)
	if err != nil {
		return fmt.Errorf("tick_size: %w", err)
	}
	oraclePriceRaw, err := oracle.ParsePrice(cfg.OraclePrice)
	if err != nil {
		return fmt.Errorf("oracle_price: %w", err)
	}
	oraclePrice := oracle.PriceData{Price: oraclePriceRaw, Slot: cfg.QuerySlot}

	source := subscriber.NewFileSource(cfg.FixturePath)
	target, poller, err := buildDlob(source, cfg.PollInterval)
	if err != nil {
		return err
	}

	printBook(target, marketType, cfg.MarketIndex, cfg.QuerySlot, oraclePrice, tickSize)

	t := poller.Start()
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		t.Kill(nil)
	}()

	return t.Wait()
}

// buildDlob wires a Poller as the Dlob's AccountSubscriber, so Load primes
// the book from one fixture snapshot before anything is queried, and the
// returned Poller keeps refreshing it on cfg.PollInterval afterward. The
// poller is built before the Dlob that needs it as a subscriber, then given
// that Dlob as its target once the builder has produced it.
func buildDlob(source subscriber.Source, pollInterval time.Duration) (*dlob.Dlob, *subscriber.Poller, error) {
	poller := subscriber.NewPoller(source, nil, pollInterval)
	target := dlob.NewBuilder().AccountSubscriber(poller).Build()
	poller.SetTarget(target)

	if err := target.Load(); err != nil {
		return nil, nil, fmt.Errorf("load: %w", err)
	}
	return target, poller, nil
}

func printBook(d *dlob.Dlob, marketType common.MarketType, marketIndex uint16, slot uint64, oraclePrice oracle.PriceData, tickSize int64) {
	fmt.Printf("=== %s market %d @ slot %d ===\n", marketType, marketIndex, slot)

	sections := []struct {
		name string
		get  func() (func(func(dlob.Node) bool), error)
	}{
		{"taking bids", func() (func(func(dlob.Node) bool), error) {
			return d.GetTakingBids(marketIndex, marketType, slot, oraclePrice)
		}},
		{"taking asks", func() (func(func(dlob.Node) bool), error) {
			return d.GetTakingAsks(marketIndex, marketType, slot, oraclePrice)
		}},
		{"resting bids", func() (func(func(dlob.Node) bool), error) {
			return d.GetRestingBids(marketIndex, marketType, slot, oraclePrice)
		}},
		{"resting asks", func() (func(func(dlob.Node) bool), error) {
			return d.GetRestingAsks(marketIndex, marketType, slot, oraclePrice)
		}},
	}

	for _, s := range sections {
		nodes, err := s.get()
		if err != nil {
			log.Error().Err(err).Str("section", s.name).Msg("query failed")
			return
		}
		fmt.Printf("-- %s --\n", s.name)
		printNodes(nodes, oraclePrice, slot, tickSize)
	}
}

func printNodes(nodes func(func(dlob.Node) bool), oraclePrice oracle.PriceData, slot uint64, tickSize int64) {
	for n := range nodes {
		order := n.Order()
		price := n.GetPrice(oraclePrice, slot, tickSize)
		fmt.Printf("  order=%d user=%s price=%d\n", order.OrderID, n.User(), price)
	}
}

func parseMarketTypeFlag(s string) (common.MarketType, error) {
	switch s {
	case "", "perp":
		return common.Perp, nil
	case "spot":
		return common.Spot, nil
	default:
		return 0, fmt.Errorf("unknown market_type %q", s)
	}
}
