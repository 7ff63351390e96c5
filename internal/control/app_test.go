package control

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/config"
	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
)

func httpProvider(url string) []config.ProviderConfig {
	return []config.ProviderConfig{{Name: "primary", URL: url, Type: "http", Timeout: time.Second}}
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Server: config.ServerConfig{Port: 0},
		Chains: []config.ChainConfig{
			{ChainID: domain.ChainEthereum, Type: domain.ChainTypeEVM, Providers: httpProvider("http://127.0.0.1:1")},
			{ChainID: domain.ChainOsmosis, Type: domain.ChainTypeCosmos, GasPrice: 10_000, Providers: httpProvider("http://127.0.0.1:1")},
			{ChainID: domain.ChainSolana, Type: domain.ChainTypeSolana, Providers: httpProvider("http://127.0.0.1:1")},
			{ChainID: domain.ChainBitcoin, Type: domain.ChainTypeBitcoin, Providers: httpProvider("http://127.0.0.1:1")},
			{ChainID: domain.ChainSui, Type: domain.ChainTypeSui, Providers: httpProvider("http://127.0.0.1:1")},
			{ChainID: domain.ChainTron, Type: domain.ChainTypeTron, Providers: httpProvider("http://127.0.0.1:1")},
		},
		Tracker: config.TrackerConfig{RescanInterval: time.Minute, BroadcastDelay: 500 * time.Millisecond, ChangeBuffer: 8},
	}
}

func TestNew_RegistersEveryChainType(t *testing.T) {
	app, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	chains := app.Chains()
	if len(chains) != 6 {
		t.Fatalf("expected 6 chains, got %v", chains)
	}
	for _, c := range []domain.Chain{domain.ChainEthereum, domain.ChainOsmosis, domain.ChainSolana, domain.ChainBitcoin, domain.ChainSui, domain.ChainTron} {
		adapter, err := app.registry.Adapter(c)
		if err != nil {
			t.Errorf("chain %s not registered: %v", c, err)
			continue
		}
		if adapter.Chain() != c {
			t.Errorf("adapter for %s reports %s", c, adapter.Chain())
		}
	}
	if app.Engine() == nil || app.Changes() == nil {
		t.Error("engine not wired")
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name  string
		chain config.ChainConfig
	}{
		{"unsupported type", config.ChainConfig{ChainID: "fantom", Type: "opera", Providers: httpProvider("http://127.0.0.1:1")}},
		{"unknown provider type", config.ChainConfig{ChainID: domain.ChainTron, Type: domain.ChainTypeTron, Providers: []config.ProviderConfig{{Name: "ws", URL: "ws://x", Type: "websocket"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Chains = []config.ChainConfig{tt.chain}
			if _, err := New(context.Background(), cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestApp_StartStop(t *testing.T) {
	app, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if app.tracker.Active() != 0 {
		t.Error("jobs still running after stop")
	}
}

func TestOptionalInt(t *testing.T) {
	if optionalInt(0) != nil {
		t.Error("zero should mean unset")
	}
	if got := optionalInt(10_000); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Errorf("expected 10000, got %s", got)
	}
}
