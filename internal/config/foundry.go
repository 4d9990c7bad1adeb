package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FoundryTOML represents the raw foundry.toml structure.
type FoundryTOML struct {
	RpcEndpoints map[string]string            `toml:"rpc_endpoints"`
	Etherscan    map[string]map[string]string `toml:"etherscan"`
	Profile      map[string]map[string]any    `toml:"profile"`
}

// EtherscanConfig is one [etherscan.<network>] entry.
type EtherscanConfig struct {
	URL    string
	APIKey string
}

// Config is the merged interpreter configuration: the global
// ~/.foundry/foundry.toml overlaid with the project-local file.
type Config struct {
	RPCURL       string
	RpcEndpoints map[string]string
	Etherscan    map[string]EtherscanConfig
	ProjectRoot  string
}

// Load reads the global and project foundry.toml files. A missing file
// is not an error; the project file overrides the global one.
func Load(projectRoot string) (*Config, error) {
	cfg := &Config{
		RpcEndpoints: make(map[string]string),
		Etherscan:    make(map[string]EtherscanConfig),
		ProjectRoot:  projectRoot,
	}

	// .env files load first for variable expansion.
	for _, envFile := range []string{
		filepath.Join(projectRoot, ".env"),
		filepath.Join(projectRoot, ".env.local"),
	} {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", envFile, err)
			}
		}
	}

	paths := []string{}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".foundry", "foundry.toml"))
	}
	paths = append(paths, filepath.Join(projectRoot, "foundry.toml"))

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if url := os.Getenv("ETH_RPC_URL"); url != "" {
		cfg.RPCURL = url
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	var raw FoundryTOML
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	for name, url := range raw.RpcEndpoints {
		c.RpcEndpoints[name] = os.ExpandEnv(url)
	}
	for network, entry := range raw.Etherscan {
		ec := EtherscanConfig{}
		if url, ok := entry["url"]; ok {
			ec.URL = os.ExpandEnv(url)
		}
		if key, ok := entry["key"]; ok {
			ec.APIKey = os.ExpandEnv(key)
		}
		c.Etherscan[network] = ec
	}
	return nil
}

// ResolveRPC expands an rpc_endpoints alias, passing URLs through.
func (c *Config) ResolveRPC(urlOrAlias string) string {
	if url, ok := c.RpcEndpoints[urlOrAlias]; ok {
		return url
	}
	return urlOrAlias
}

// chainEnvKeys maps chain IDs to the explorer API key environment
// variable consulted before the generic ETHERSCAN_API_KEY.
var chainEnvKeys = map[uint64]string{
	10:    "OP_ETHERSCAN_API_KEY",
	42161: "ARBISCAN_API_KEY",
	137:   "POLYGONSCAN_API_KEY",
	8453:  "BASESCAN_API_KEY",
	56:    "BSCSCAN_API_KEY",
	43114: "SNOWTRACE_API_KEY",
	250:   "FTMSCAN_API_KEY",
	100:   "GNOSISSCAN_API_KEY",
}

// chainNames maps chain IDs to the [etherscan] section names foundry
// uses for them.
var chainNames = map[uint64]string{
	1:        "mainnet",
	10:       "optimism",
	42161:    "arbitrum",
	137:      "polygon",
	8453:     "base",
	56:       "bsc",
	43114:    "avalanche",
	250:      "fantom",
	100:      "gnosis",
	11155111: "sepolia",
}

// EtherscanKey resolves the explorer API key for a chain: per-chain env
// var, then [etherscan] config, then the generic env var.
func (c *Config) EtherscanKey(chainID uint64) string {
	if envKey, ok := chainEnvKeys[chainID]; ok {
		if key := os.Getenv(envKey); key != "" {
			return key
		}
	}
	if name, ok := chainNames[chainID]; ok {
		if entry, ok := c.Etherscan[name]; ok && entry.APIKey != "" {
			return entry.APIKey
		}
	}
	return os.Getenv("ETHERSCAN_API_KEY")
}
