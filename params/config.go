package params

import (
	"os"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

type Exchange struct {
	// FeeAccount collects the protocol fee on every trade. Immutable after
	// the node starts.
	FeeAccount common.Address
	// FeePercent is the integer fee percent on the taker's get leg, applied
	// with floor division.
	FeePercent uint64
	// Address is the custody address tokens are pulled to. Zero means the
	// exchange default.
	Address common.Address
}

type Node struct {
	DBPath  string // Pebble database directory; empty disables persistence
	APIAddr string // REST/WebSocket listen address
	LogFile string
}

type Config struct {
	Exchange Exchange
	Node     Node
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			FeeAccount: common.HexToAddress("0x00000000000000000000000000000000000000fe"),
			FeePercent: 10,
		},
		Node: Node{
			DBPath:  "data/exchange.db",
			APIAddr: ":8080",
			LogFile: "data/exchange.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("FEE_ACCOUNT"); v != "" && common.IsHexAddress(v) {
		cfg.Exchange.FeeAccount = common.HexToAddress(v)
	}
	if v := os.Getenv("FEE_PERCENT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Exchange.FeePercent = n
		}
	}
	if v := os.Getenv("EXCHANGE_ADDRESS"); v != "" && common.IsHexAddress(v) {
		cfg.Exchange.Address = common.HexToAddress(v)
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}

	return cfg
}
