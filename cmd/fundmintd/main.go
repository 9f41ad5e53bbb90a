package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fundmint/config"
	"fundmint/gateway/routes"
	"fundmint/native/authority"
	"fundmint/native/crowdfund"
	"fundmint/native/staking"
	"fundmint/observability/logging"
	"fundmint/observability/metrics"
	"fundmint/storage/memstate"
)

func main() {
	configFile := flag.String("config", "./fundmint.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("FUNDMINT_ENV"))
	logger := logging.Setup("fundmintd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	campaignEngine, stakingEngine, err := buildEngines(cfg)
	if err != nil {
		logger.Error("failed to build engines", slog.Any("error", err))
		os.Exit(1)
	}

	router := routes.NewRouter(campaignEngine, stakingEngine)
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("gateway listening", slog.String("address", cfg.ListenAddress))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway shutdown failed", slog.Any("error", err))
	}
	logger.Info("gateway stopped")
}

// buildEngines assembles the in-memory deployment: the authority oracle, the
// simulated token and collectible collaborators and the two engines.
func buildEngines(cfg *config.Config) (*crowdfund.Engine, *staking.Engine, error) {
	campaign, err := cfg.CampaignDefinition()
	if err != nil {
		return nil, nil, err
	}
	managers, err := cfg.ManagerAddresses()
	if err != nil {
		return nil, nil, err
	}
	treasury, err := cfg.TreasuryAddress()
	if err != nil {
		return nil, nil, err
	}
	vault, err := cfg.VaultAddress()
	if err != nil {
		return nil, nil, err
	}

	oracle := authority.NewStatic(cfg.PlatformFeeBps, cfg.RoyaltyFeeBps, treasury)
	for _, manager := range managers {
		oracle.AddManager(manager)
	}
	oracle.SetCreator(campaign.Collection, campaign.Creator)

	emitter := metrics.NewEmitter(nil)

	collectible := memstate.NewCollectible(campaign.TierCaps)
	custody := campaign.Collection
	nativeCoin := memstate.NewTokenLedger(custody)
	stableCoin := memstate.NewTokenLedger(custody)
	partnerCoin := memstate.NewTokenLedger(custody)
	rewardToken := memstate.NewTokenLedger(custody)

	campaignEngine := crowdfund.NewEngine()
	campaignEngine.SetState(memstate.NewCampaignState())
	campaignEngine.SetAuthority(oracle)
	campaignEngine.SetCollectible(collectible)
	campaignEngine.SetCoinBackend(crowdfund.CoinNative, nativeCoin)
	campaignEngine.SetCoinBackend(crowdfund.CoinStable, stableCoin)
	campaignEngine.SetCoinBackend(crowdfund.CoinPartner, partnerCoin)
	campaignEngine.SetEmitter(emitter)
	if err := campaignEngine.Initialize(campaign); err != nil {
		return nil, nil, err
	}

	stakingEngine := staking.NewEngine()
	stakingEngine.SetState(memstate.NewStakingState())
	stakingEngine.SetAuthority(oracle)
	stakingEngine.SetCollectible(collectible)
	stakingEngine.SetRewardToken(rewardToken)
	stakingEngine.SetStableToken(stableCoin)
	stakingEngine.SetVault(vault)
	stakingEngine.SetCollection(campaign.Collection, campaign.Creator)
	stakingEngine.SetFlushMode(cfg.FlushMode())
	stakingEngine.SetWeightMode(cfg.WeightMode())
	stakingEngine.SetEmitter(emitter)

	if len(managers) > 0 {
		rates, err := cfg.StakingRates()
		if err != nil {
			return nil, nil, err
		}
		if _, err := stakingEngine.SetStakingCondition(managers[0], cfg.Staking.TimeUnit, rates); err != nil {
			return nil, nil, err
		}
	}

	return campaignEngine, stakingEngine, nil
}
