// Package config provides centralized configuration for OpenMatch:
// supported markets, risk limits, reservation TTL and capacity defaults.
// The epoch length is not defined here; cmd/openmatchd takes it as a flag.
package config

import (
	"fmt"
	"time"

	"github.com/openibank/openmatch/internal/types"
)

// NetworkType distinguishes a production deployment from a test network,
// mirroring how the node is told which market set and risk limits apply.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// MarketConfig declares one tradable (base, quote) pair and the decimal
// precision its amounts are expected to carry. OpenMatch itself does not
// round — Amount is arbitrary precision — and nothing in this module
// reads the decimals or the min/max order quantities declared here (the
// risk gate applies RiskConfig.MaxOrderSize).
type MarketConfig struct {
	Market          types.Market
	BaseDecimals    uint8
	QuoteDecimals   uint8
	MinOrderQty     types.Amount
	MaxOrderQty     types.Amount
}

// SupportedMarkets defines every market this node accepts orders for.
var SupportedMarkets = []MarketConfig{
	{
		Market:        types.Market{Base: "BTC", Quote: "USDT"},
		BaseDecimals:  8,
		QuoteDecimals: 6,
		MinOrderQty:   types.NewAmountFromInt(0),
		MaxOrderQty:   types.NewAmountFromInt(1000),
	},
	{
		Market:        types.Market{Base: "ETH", Quote: "USDT"},
		BaseDecimals:  18,
		QuoteDecimals: 6,
		MinOrderQty:   types.NewAmountFromInt(0),
		MaxOrderQty:   types.NewAmountFromInt(10000),
	},
	{
		Market:        types.Market{Base: "ETH", Quote: "BTC"},
		BaseDecimals:  18,
		QuoteDecimals: 8,
		MinOrderQty:   types.NewAmountFromInt(0),
		MaxOrderQty:   types.NewAmountFromInt(10000),
	},
}

// GetMarket returns the configuration for m, if this node supports it.
func GetMarket(m types.Market) (MarketConfig, bool) {
	for _, mc := range SupportedMarkets {
		if mc.Market.Equal(m) {
			return mc, true
		}
	}
	return MarketConfig{}, false
}

// IsMarketSupported reports whether m is in SupportedMarkets.
func IsMarketSupported(m types.Market) bool {
	_, ok := GetMarket(m)
	return ok
}

// ListMarkets returns every supported market.
func ListMarkets() []types.Market {
	out := make([]types.Market, len(SupportedMarkets))
	for i, mc := range SupportedMarkets {
		out[i] = mc.Market
	}
	return out
}

// RiskConfig holds the baseline risk gate parameters (§4.3).
type RiskConfig struct {
	MaxOrderSize          types.Amount
	MaxOrdersPerUserEpoch int
}

// DefaultRiskConfig returns conservative baseline risk parameters.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxOrderSize:          types.NewAmountFromInt(1000),
		MaxOrdersPerUserEpoch: 50,
	}
}

// EscrowConfig holds reservation lifecycle parameters (§4.2).
type EscrowConfig struct {
	// DefaultReservationTTL is how long a minted reservation stays ACTIVE
	// before it becomes eligible for ReleaseExpired. Zero means no TTL
	// (reservation lives until explicitly released or spent).
	DefaultReservationTTL time.Duration
}

// DefaultEscrowConfig returns the default reservation TTL.
func DefaultEscrowConfig() EscrowConfig {
	return EscrowConfig{DefaultReservationTTL: 10 * time.Minute}
}

// FinalityConfig holds settlement-layer parameters (§4.7).
type FinalityConfig struct {
	// IdempotencyGuardCapacity bounds the settled-trade LRU. Must be at
	// least large enough to hold one epoch's worth of trades.
	IdempotencyGuardCapacity int
}

// DefaultFinalityConfig returns the default idempotency guard capacity.
func DefaultFinalityConfig() FinalityConfig {
	return FinalityConfig{IdempotencyGuardCapacity: 65536}
}

// IngressConfig holds pending-buffer parameters (§4.4).
type IngressConfig struct {
	// BufferCapacity bounds the number of orders accepted per epoch.
	// Zero means unbounded.
	BufferCapacity int
}

// DefaultIngressConfig returns the default buffer capacity.
func DefaultIngressConfig() IngressConfig {
	return IngressConfig{BufferCapacity: 100000}
}

// CoreConfig aggregates every sub-config needed to construct a Core
// handle (internal/core). Exactly one CoreConfig exists per running node.
type CoreConfig struct {
	Network  NetworkType
	Risk     RiskConfig
	Escrow   EscrowConfig
	Finality FinalityConfig
	Ingress  IngressConfig
}

// NewCoreConfig returns the default configuration for network.
func NewCoreConfig(network NetworkType) CoreConfig {
	return CoreConfig{
		Network:  network,
		Risk:     DefaultRiskConfig(),
		Escrow:   DefaultEscrowConfig(),
		Finality: DefaultFinalityConfig(),
		Ingress:  DefaultIngressConfig(),
	}
}

// Validate reports a descriptive error if cfg is internally inconsistent.
func (cfg CoreConfig) Validate() error {
	if cfg.Risk.MaxOrdersPerUserEpoch <= 0 {
		return fmt.Errorf("config: MaxOrdersPerUserEpoch must be positive")
	}
	if !cfg.Risk.MaxOrderSize.IsPositive() {
		return fmt.Errorf("config: MaxOrderSize must be positive")
	}
	if cfg.Finality.IdempotencyGuardCapacity <= 0 {
		return fmt.Errorf("config: IdempotencyGuardCapacity must be positive")
	}
	if len(SupportedMarkets) == 0 {
		return fmt.Errorf("config: no supported markets configured")
	}
	return nil
}
