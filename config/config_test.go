package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"fundmint/core/types"
	"fundmint/native/crowdfund"
	"fundmint/native/staking"
)

const sampleConfig = `
ListenAddress = ":9090"
Managers = ["0x0101010101010101010101010101010101010101"]
Treasury = "0x0202020202020202020202020202020202020202"
PlatformFeeBps = 250
RoyaltyFeeBps = 100

[Campaign]
Creator = "0x0303030303030303030303030303030303030303"
Collection = "0x0404040404040404040404040404040404040404"
DueDate = 1924992000
MinSoldRateBps = 5000
DonationFeeBps = 300

[Campaign.Low]
Cap = 100
NativePrice = "1000"
StablePrice = "10"

[Campaign.Regular]
Cap = 50
NativePrice = "5000"
StablePrice = "50"

[Campaign.High]
Cap = 10
NativePrice = "20000"
StablePrice = "200"

[Staking]
TimeUnit = 86400
LowRate = "1"
RegularRate = "5"
HighRate = "20"
Vault = "0x0505050505050505050505050505050505050505"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fundmint.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSample(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddress)
	require.Equal(t, uint32(250), cfg.PlatformFeeBps)

	campaign, err := cfg.CampaignDefinition()
	require.NoError(t, err)
	require.Equal(t, uint64(100), campaign.TierCaps[types.TierLow])
	require.Equal(t, uint64(10), campaign.TierCaps[types.TierHigh])
	require.Equal(t, big.NewInt(5000), campaign.TierPrices[types.TierRegular][crowdfund.CoinNative])
	require.Equal(t, big.NewInt(0), campaign.TierPrices[types.TierRegular][crowdfund.CoinPartner])
	require.Equal(t, crowdfund.DefaultRefundWindow, campaign.RefundWindow)

	rates, err := cfg.StakingRates()
	require.NoError(t, err)
	require.Equal(t, big.NewInt(20), rates[types.TierHigh])
	require.Equal(t, staking.FlushIntegrated, cfg.FlushMode())

	managers, err := cfg.ManagerAddresses()
	require.NoError(t, err)
	require.Len(t, managers, 1)
	require.Equal(t, byte(0x01), managers[0][0])
}

func TestLoadDefaults(t *testing.T) {
	minimal := `
[Campaign]
Creator = "0x0303030303030303030303030303030303030303"
Collection = "0x0404040404040404040404040404040404040404"
DueDate = 1924992000
`
	cfg, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)
	require.Equal(t, defaultListenAddress, cfg.ListenAddress)
	require.Equal(t, defaultTimeUnit, cfg.Staking.TimeUnit)
	require.Equal(t, crowdfund.DefaultRefundWindow, cfg.Campaign.RefundWindow)
	require.Equal(t, staking.FlushIntegrated, cfg.FlushMode())
}

func TestLoadRejectsBadAddress(t *testing.T) {
	bad := `
[Campaign]
Creator = "not-an-address"
Collection = "0x0404040404040404040404040404040404040404"
DueDate = 1924992000
`
	_, err := Load(writeConfig(t, bad))
	require.Error(t, err)
}

func TestLoadRejectsFeeOutOfRange(t *testing.T) {
	bad := `
PlatformFeeBps = 10001

[Campaign]
Creator = "0x0303030303030303030303030303030303030303"
Collection = "0x0404040404040404040404040404040404040404"
DueDate = 1924992000
`
	_, err := Load(writeConfig(t, bad))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x0a0b0c0d0e0f101112131415161718191a1b1c1d")
	require.NoError(t, err)
	require.Equal(t, byte(0x0a), addr[0])
	require.Equal(t, byte(0x1d), addr[19])

	_, err = ParseAddress("0x0a0b")
	require.Error(t, err)
	_, err = ParseAddress("")
	require.Error(t, err)
}

func TestFlushModeLatestOnly(t *testing.T) {
	cfg := &Config{Staking: StakingConfig{LatestOnly: true}}
	require.Equal(t, staking.FlushLatestOnly, cfg.FlushMode())
}

func TestWeightModeCountWeighted(t *testing.T) {
	cfg := &Config{}
	require.Equal(t, staking.WeightByRate, cfg.WeightMode())
	cfg.Staking.CountWeighted = true
	require.Equal(t, staking.WeightByCount, cfg.WeightMode())
}
