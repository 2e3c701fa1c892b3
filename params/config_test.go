package params

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Exchange.FeePercent != 10 {
		t.Errorf("fee percent = %d, want 10", cfg.Exchange.FeePercent)
	}
	if cfg.Exchange.FeeAccount == (common.Address{}) {
		t.Error("default fee account is zero")
	}
	if cfg.Node.APIAddr == "" {
		t.Error("default api addr is empty")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FEE_ACCOUNT", "0x1100000000000000000000000000000000000011")
	t.Setenv("FEE_PERCENT", "3")
	t.Setenv("DB_PATH", "/tmp/x.db")
	t.Setenv("API_ADDR", ":9999")

	cfg := LoadFromEnv("")
	if cfg.Exchange.FeeAccount != common.HexToAddress("0x1100000000000000000000000000000000000011") {
		t.Errorf("fee account = %s", cfg.Exchange.FeeAccount.Hex())
	}
	if cfg.Exchange.FeePercent != 3 {
		t.Errorf("fee percent = %d, want 3", cfg.Exchange.FeePercent)
	}
	if cfg.Node.DBPath != "/tmp/x.db" {
		t.Errorf("db path = %q", cfg.Node.DBPath)
	}
	if cfg.Node.APIAddr != ":9999" {
		t.Errorf("api addr = %q", cfg.Node.APIAddr)
	}
}

func TestBadEnvValuesKeepDefaults(t *testing.T) {
	t.Setenv("FEE_ACCOUNT", "not-an-address")
	t.Setenv("FEE_PERCENT", "ten")

	cfg := LoadFromEnv("")
	def := Default()
	if cfg.Exchange.FeeAccount != def.Exchange.FeeAccount {
		t.Errorf("fee account = %s, want default", cfg.Exchange.FeeAccount.Hex())
	}
	if cfg.Exchange.FeePercent != def.Exchange.FeePercent {
		t.Errorf("fee percent = %d, want default", cfg.Exchange.FeePercent)
	}
}
