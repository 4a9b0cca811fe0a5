// Package params holds node configuration with .env/environment
// overrides. Priority: ENV > .env file > defaults.
package params

import (
	"os"

	"github.com/joho/godotenv"
)

type Node struct {
	ListenAddr string // REST/WebSocket bind address
	DataDir    string // pebble database directory
	LogFile    string // optional log tee target ("" = console only)

	// Devnet seeds four mock tokens and faucets the trader accounts.
	// Production binds real token contracts instead.
	Devnet bool
}

type Exchange struct {
	BaseTicker string // settlement currency, never tradable
	Admin      string // privileged account (hex address), set once
	Custody    string // address external tokens are held under
}

type Config struct {
	Node     Node
	Exchange Exchange
}

func Default() Config {
	return Config{
		Node: Node{
			ListenAddr: ":8080",
			DataDir:    "data/custodex.db",
			LogFile:    "",
			Devnet:     true,
		},
		Exchange: Exchange{
			BaseTicker: "DAI",
			Admin:      "0x0000000000000000000000000000000000000001",
			Custody:    "0x00000000000000000000000000000000000c0de",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. An empty envPath loads .env from the current
// directory.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("LISTEN"); v != "" {
		cfg.Node.ListenAddr = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("DEVNET"); v != "" {
		cfg.Node.Devnet = v == "true"
	}
	if v := os.Getenv("BASE_TICKER"); v != "" {
		cfg.Exchange.BaseTicker = v
	}
	if v := os.Getenv("ADMIN_ADDRESS"); v != "" {
		cfg.Exchange.Admin = v
	}
	if v := os.Getenv("CUSTODY_ADDRESS"); v != "" {
		cfg.Exchange.Custody = v
	}

	return cfg
}
