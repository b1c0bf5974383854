package config

import "testing"

func TestLoad_RedisOptIn(t *testing.T) {
	t.Setenv("BROKER_USERNAME", "u")
	t.Setenv("BROKER_API_KEY", "k")
	t.Setenv("BROKER_ACCOUNT_ID", "a")
	t.Setenv("REDIS_ADDR", "")

	cfg := Load()
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty when REDIS_ADDR unset", cfg.RedisAddr)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BROKER_USERNAME", "u")
	t.Setenv("BROKER_API_KEY", "k")
	t.Setenv("BROKER_ACCOUNT_ID", "a")

	cfg := Load()
	if cfg.Symbol != "XCME:MNQ.Z25" {
		t.Errorf("Symbol = %q", cfg.Symbol)
	}
	if cfg.BarIntervalSec != 1 {
		t.Errorf("BarIntervalSec = %d, want 1", cfg.BarIntervalSec)
	}
	if cfg.StopLoss != -25 {
		t.Errorf("StopLoss = %v, want -25", cfg.StopLoss)
	}
	if !cfg.TradeOnly {
		t.Error("TradeOnly should default to true")
	}
}
