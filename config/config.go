// Package config loads the service configuration from a TOML file and turns
// it into the campaign and staking definitions the engines consume.
package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"fundmint/core/types"
	"fundmint/native/crowdfund"
	"fundmint/native/staking"
)

// TierConfig is the per-tier sale definition. Prices are decimal strings in
// the coin's base unit, keyed native/stable/partner.
type TierConfig struct {
	Cap          uint64 `toml:"Cap"`
	NativePrice  string `toml:"NativePrice"`
	StablePrice  string `toml:"StablePrice"`
	PartnerPrice string `toml:"PartnerPrice"`
}

// CampaignConfig is the tier sale section.
type CampaignConfig struct {
	Creator          string     `toml:"Creator"`
	Collection       string     `toml:"Collection"`
	DueDate          int64      `toml:"DueDate"`
	MinSoldRateBps   uint32     `toml:"MinSoldRateBps"`
	DonationFeeBps   uint32     `toml:"DonationFeeBps"`
	DonationReceiver string     `toml:"DonationReceiver"`
	RefundWindow     int64      `toml:"RefundWindow"`
	Low              TierConfig `toml:"Low"`
	Regular          TierConfig `toml:"Regular"`
	High             TierConfig `toml:"High"`
}

// StakingConfig is the reward engine section. Rates are decimal strings in
// the reward token's base unit per staked token per time unit.
type StakingConfig struct {
	TimeUnit      int64  `toml:"TimeUnit"`
	LowRate       string `toml:"LowRate"`
	RegularRate   string `toml:"RegularRate"`
	HighRate      string `toml:"HighRate"`
	Vault         string `toml:"Vault"`
	LatestOnly    bool   `toml:"LatestOnly"`
	CountWeighted bool   `toml:"CountWeighted"`
}

// Config is the full service configuration.
type Config struct {
	ListenAddress  string         `toml:"ListenAddress"`
	Managers       []string       `toml:"Managers"`
	Treasury       string         `toml:"Treasury"`
	PlatformFeeBps uint32         `toml:"PlatformFeeBps"`
	RoyaltyFeeBps  uint32         `toml:"RoyaltyFeeBps"`
	Campaign       CampaignConfig `toml:"Campaign"`
	Staking        StakingConfig  `toml:"Staking"`
}

const (
	defaultListenAddress = ":8080"
	defaultTimeUnit      = int64(3600)
	feeDenominator       = 10_000
)

// Load reads and validates the configuration at path, filling defaults for
// absent fields.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = defaultListenAddress
	}
	if c.Managers == nil {
		c.Managers = []string{}
	}
	if c.Staking.TimeUnit == 0 {
		c.Staking.TimeUnit = defaultTimeUnit
	}
	if c.Campaign.RefundWindow == 0 {
		c.Campaign.RefundWindow = crowdfund.DefaultRefundWindow
	}
}

// Validate checks the configuration for internal consistency. Address and
// amount strings are parsed but not retained; the typed accessors re-parse.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if c.PlatformFeeBps > feeDenominator {
		return fmt.Errorf("config: platform fee bps out of range: %d", c.PlatformFeeBps)
	}
	if c.RoyaltyFeeBps > feeDenominator {
		return fmt.Errorf("config: royalty fee bps out of range: %d", c.RoyaltyFeeBps)
	}
	if c.Campaign.MinSoldRateBps > feeDenominator {
		return fmt.Errorf("config: min sold rate bps out of range: %d", c.Campaign.MinSoldRateBps)
	}
	if c.Staking.TimeUnit <= 0 {
		return fmt.Errorf("config: staking time unit must be positive")
	}
	if _, err := ParseAddress(c.Campaign.Creator); err != nil {
		return fmt.Errorf("config: campaign creator: %w", err)
	}
	if _, err := ParseAddress(c.Campaign.Collection); err != nil {
		return fmt.Errorf("config: campaign collection: %w", err)
	}
	if c.Campaign.DonationReceiver != "" {
		if _, err := ParseAddress(c.Campaign.DonationReceiver); err != nil {
			return fmt.Errorf("config: donation receiver: %w", err)
		}
	}
	if c.Treasury != "" {
		if _, err := ParseAddress(c.Treasury); err != nil {
			return fmt.Errorf("config: treasury: %w", err)
		}
	}
	if c.Staking.Vault != "" {
		if _, err := ParseAddress(c.Staking.Vault); err != nil {
			return fmt.Errorf("config: staking vault: %w", err)
		}
	}
	for i, manager := range c.Managers {
		if _, err := ParseAddress(manager); err != nil {
			return fmt.Errorf("config: manager %d: %w", i, err)
		}
	}
	for _, tier := range []TierConfig{c.Campaign.Low, c.Campaign.Regular, c.Campaign.High} {
		for _, raw := range []string{tier.NativePrice, tier.StablePrice, tier.PartnerPrice} {
			if _, err := parseAmount(raw); err != nil {
				return err
			}
		}
	}
	for _, raw := range []string{c.Staking.LowRate, c.Staking.RegularRate, c.Staking.HighRate} {
		if _, err := parseAmount(raw); err != nil {
			return err
		}
	}
	return nil
}

// CampaignDefinition converts the campaign section into the engine's typed
// form. Validate must have passed.
func (c *Config) CampaignDefinition() (*crowdfund.Campaign, error) {
	creator, err := ParseAddress(c.Campaign.Creator)
	if err != nil {
		return nil, err
	}
	collection, err := ParseAddress(c.Campaign.Collection)
	if err != nil {
		return nil, err
	}
	campaign := &crowdfund.Campaign{
		Creator:        creator,
		Collection:     collection,
		DueDate:        c.Campaign.DueDate,
		MinSoldRateBps: c.Campaign.MinSoldRateBps,
		DonationFeeBps: c.Campaign.DonationFeeBps,
		RefundWindow:   c.Campaign.RefundWindow,
	}
	if c.Campaign.DonationReceiver != "" {
		receiver, err := ParseAddress(c.Campaign.DonationReceiver)
		if err != nil {
			return nil, err
		}
		campaign.DonationReceiver = receiver
	}
	tiers := [types.TierCount]TierConfig{c.Campaign.Low, c.Campaign.Regular, c.Campaign.High}
	for _, tier := range types.Tiers() {
		campaign.TierCaps[tier] = tiers[tier].Cap
		prices := [crowdfund.CoinCount]string{tiers[tier].NativePrice, tiers[tier].StablePrice, tiers[tier].PartnerPrice}
		for _, coin := range crowdfund.Coins() {
			price, err := parseAmount(prices[coin])
			if err != nil {
				return nil, err
			}
			campaign.TierPrices[tier][coin] = price
		}
	}
	return campaign, nil
}

// StakingRates converts the staking section's rates into the engine's typed
// form.
func (c *Config) StakingRates() ([types.TierCount]*big.Int, error) {
	var rates [types.TierCount]*big.Int
	raw := [types.TierCount]string{c.Staking.LowRate, c.Staking.RegularRate, c.Staking.HighRate}
	for _, tier := range types.Tiers() {
		rate, err := parseAmount(raw[tier])
		if err != nil {
			return rates, err
		}
		rates[tier] = rate
	}
	return rates, nil
}

// FlushMode returns the accrual mode the staking section selects.
func (c *Config) FlushMode() staking.FlushMode {
	if c.Staking.LatestOnly {
		return staking.FlushLatestOnly
	}
	return staking.FlushIntegrated
}

// WeightMode returns the USD split weighting the staking section selects.
func (c *Config) WeightMode() staking.WeightMode {
	if c.Staking.CountWeighted {
		return staking.WeightByCount
	}
	return staking.WeightByRate
}

// ManagerAddresses returns the parsed manager set.
func (c *Config) ManagerAddresses() ([][20]byte, error) {
	managers := make([][20]byte, 0, len(c.Managers))
	for _, raw := range c.Managers {
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		managers = append(managers, addr)
	}
	return managers, nil
}

// TreasuryAddress returns the parsed treasury, zero when unset.
func (c *Config) TreasuryAddress() ([20]byte, error) {
	if c.Treasury == "" {
		return [20]byte{}, nil
	}
	return ParseAddress(c.Treasury)
}

// VaultAddress returns the parsed staking vault, zero when unset.
func (c *Config) VaultAddress() ([20]byte, error) {
	if c.Staking.Vault == "" {
		return [20]byte{}, nil
	}
	return ParseAddress(c.Staking.Vault)
}

// ParseAddress decodes a 20-byte hex address, with or without a 0x prefix.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return addr, fmt.Errorf("config: empty address")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("config: invalid address %q: %w", raw, err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("config: address %q must be %d bytes", raw, len(addr))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// parseAmount decodes a non-negative decimal string. Empty means zero.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid amount %q", raw)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("config: negative amount %q", raw)
	}
	return amount, nil
}
