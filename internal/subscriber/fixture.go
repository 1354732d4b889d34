package subscriber

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"

	"dlob/internal/common"
	"dlob/internal/dlob"
	"dlob/internal/oracle"
)

// FixtureOrder is the YAML-friendly shape an order fixture is authored in:
// plain strings and ints rather than the engine's fixed-point/enum types.
type FixtureOrder struct {
	User      string `mapstructure:"user"`
	OrderID   uint32 `mapstructure:"order_id"`
	Status    string `mapstructure:"status"`
	OrderType string `mapstructure:"order_type"`

	MarketType  string `mapstructure:"market_type"`
	MarketIndex uint16 `mapstructure:"market_index"`
	Direction   string `mapstructure:"direction"`

	Slot  uint64 `mapstructure:"slot"`
	Price string `mapstructure:"price"`

	TriggerPrice     string `mapstructure:"trigger_price"`
	TriggerCondition string `mapstructure:"trigger_condition"`

	OraclePriceOffset string `mapstructure:"oracle_price_offset"`
	AuctionDuration   uint64 `mapstructure:"auction_duration"`
	AuctionStartPrice string `mapstructure:"auction_start_price"`
	AuctionEndPrice   string `mapstructure:"auction_end_price"`
}

// FixtureFile is the top-level shape of a fixture YAML document.
type FixtureFile struct {
	Slot   uint64         `mapstructure:"slot"`
	Orders []FixtureOrder `mapstructure:"orders"`
}

// FileSource reads a fixture once per FetchSnapshot call, re-reading the
// file from disk so edits between polls are picked up without a restart.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) FetchSnapshot() (Snapshot, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return Snapshot{}, fmt.Errorf("read fixture %s: %w", s.path, err)
	}

	var file FixtureFile
	if err := v.Unmarshal(&file); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal fixture %s: %w", s.path, err)
	}

	updates := make([]OrderUpdate, 0, len(file.Orders))
	for i, fo := range file.Orders {
		order, user, err := decodeFixtureOrder(fo)
		if err != nil {
			return Snapshot{}, fmt.Errorf("fixture order %d: %w", i, err)
		}
		updates = append(updates, OrderUpdate{User: user, Order: order})
	}

	return Snapshot{Slot: file.Slot, Orders: updates}, nil
}

func decodeFixtureOrder(fo FixtureOrder) (dlob.Order, solana.PublicKey, error) {
	user, err := solana.PublicKeyFromBase58(fo.User)
	if err != nil {
		return dlob.Order{}, solana.PublicKey{}, fmt.Errorf("user: %w", err)
	}

	status, err := parseOrderStatus(fo.Status)
	if err != nil {
		return dlob.Order{}, solana.PublicKey{}, err
	}
	orderType, err := parseOrderType(fo.OrderType)
	if err != nil {
		return dlob.Order{}, solana.PublicKey{}, err
	}
	marketType, err := parseMarketType(fo.MarketType)
	if err != nil {
		return dlob.Order{}, solana.PublicKey{}, err
	}
	direction, err := parseDirection(fo.Direction)
	if err != nil {
		return dlob.Order{}, solana.PublicKey{}, err
	}
	triggerCondition, err := parseTriggerCondition(fo.TriggerCondition)
	if err != nil {
		return dlob.Order{}, solana.PublicKey{}, err
	}

	price, err := parseOptionalPrice(fo.Price)
	if err != nil {
		return dlob.Order{}, solana.PublicKey{}, fmt.Errorf("price: %w", err)
	}
	triggerPrice, err := parseOptionalPrice(fo.TriggerPrice)
	if err != nil {
		return dlob.Order{}, solana.PublicKey{}, fmt.Errorf("trigger_price: %w", err)
	}
	oracleOffset, err := parseOptionalPrice(fo.OraclePriceOffset)
	if err != nil {
		return dlob.Order{}, solana.PublicKey{}, fmt.Errorf("oracle_price_offset: %w", err)
	}
	auctionStart, err := parseOptionalPrice(fo.AuctionStartPrice)
	if err != nil {
		return dlob.Order{}, solana.PublicKey{}, fmt.Errorf("auction_start_price: %w", err)
	}
	auctionEnd, err := parseOptionalPrice(fo.AuctionEndPrice)
	if err != nil {
		return dlob.Order{}, solana.PublicKey{}, fmt.Errorf("auction_end_price: %w", err)
	}

	order := dlob.Order{
		OrderID:           fo.OrderID,
		Status:            status,
		OrderType:         orderType,
		MarketType:        marketType,
		MarketIndex:       fo.MarketIndex,
		Direction:         direction,
		Slot:              fo.Slot,
		Price:             price,
		TriggerPrice:      triggerPrice,
		TriggerCondition:  triggerCondition,
		OraclePriceOffset: oracleOffset,
		AuctionDuration:   fo.AuctionDuration,
		AuctionStartPrice: auctionStart,
		AuctionEndPrice:   auctionEnd,
	}
	return order, user, nil
}

func parseOptionalPrice(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return oracle.ParsePrice(s)
}

func parseOrderStatus(s string) (common.OrderStatus, error) {
	switch s {
	case "", "open":
		return common.OrderStatusOpen, nil
	case "init":
		return common.OrderStatusInit, nil
	case "filled":
		return common.OrderStatusFilled, nil
	case "canceled":
		return common.OrderStatusCanceled, nil
	default:
		return 0, fmt.Errorf("unknown status %q", s)
	}
}

func parseOrderType(s string) (common.OrderType, error) {
	switch s {
	case "", "limit":
		return common.OrderTypeLimit, nil
	case "trigger_market":
		return common.OrderTypeTriggerMarket, nil
	case "trigger_limit":
		return common.OrderTypeTriggerLimit, nil
	case "market":
		return common.OrderTypeMarket, nil
	case "oracle":
		return common.OrderTypeOracle, nil
	default:
		return 0, fmt.Errorf("unknown order_type %q", s)
	}
}

func parseMarketType(s string) (common.MarketType, error) {
	switch s {
	case "", "perp":
		return common.Perp, nil
	case "spot":
		return common.Spot, nil
	default:
		return 0, fmt.Errorf("unknown market_type %q", s)
	}
}

func parseDirection(s string) (common.PositionDirection, error) {
	switch s {
	case "", "long":
		return common.Long, nil
	case "short":
		return common.Short, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

func parseTriggerCondition(s string) (common.OrderTriggerCondition, error) {
	switch s {
	case "", "above":
		return common.TriggerConditionAbove, nil
	case "below":
		return common.TriggerConditionBelow, nil
	case "triggered_above":
		return common.TriggerConditionTriggeredAbove, nil
	case "triggered_below":
		return common.TriggerConditionTriggeredBelow, nil
	default:
		return 0, fmt.Errorf("unknown trigger_condition %q", s)
	}
}
