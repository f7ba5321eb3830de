package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	if value.Tag == "!!int" {
		var v int64
		if err := value.Decode(&v); err != nil {
			return err
		}
		d.Duration = time.Duration(v) * time.Millisecond
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = dur
	return nil
}

// Config is the project file. The three top-level camelCase keys are shared
// with existing project_conf.json files, which parse as YAML.
type Config struct {
	BuildDir          string            `yaml:"buildDir"`
	ContractModuleMap map[string]string `yaml:"contractModuleMap"`
	ReleaseURL        string            `yaml:"releaseUrl"`

	RPC struct {
		HTTP           string   `yaml:"http"`
		RequestTimeout Duration `yaml:"request_timeout"`
	} `yaml:"rpc"`

	Tx struct {
		GasMarginPercent    uint64   `yaml:"gas_margin_percent"`
		PriorityFeePercent  uint64   `yaml:"priority_fee_percent"`
		ReceiptPollInterval Duration `yaml:"receipt_poll_interval"`
	} `yaml:"tx"`

	Accounts struct {
		KeyJSON       string `yaml:"key_json"`
		Index         int    `yaml:"index"`
		KeystoreDir   string `yaml:"keystore_dir"`
		PassphraseEnv string `yaml:"passphrase_env"`
	} `yaml:"accounts"`

	Events struct {
		MinPollInterval Duration `yaml:"min_poll_interval"`
	} `yaml:"events"`

	DevNode DevNode `yaml:"devnode"`

	Deployments struct {
		Path string `yaml:"path"`
	} `yaml:"deployments"`
}

type DevNode struct {
	Geth         string   `yaml:"geth"`
	HTTPPort     int      `yaml:"http_port"`
	ChainID      uint64   `yaml:"chain_id"`
	BlockPeriod  uint64   `yaml:"block_period"`
	GasLimit     uint64   `yaml:"gas_limit"`
	HTTPAPIs     []string `yaml:"http_apis"`
	DataDir      string   `yaml:"data_dir"`
	ConnTimeout  Duration `yaml:"conn_timeout"`
	ConnInterval Duration `yaml:"conn_interval"`
	TermTimeout  Duration `yaml:"term_timeout"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no project file exists.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.BuildDir == "" {
		c.BuildDir = "build"
	}
	if c.ContractModuleMap == nil {
		c.ContractModuleMap = map[string]string{}
	}
	if c.RPC.HTTP == "" {
		c.RPC.HTTP = "http://localhost:7545"
	}
	if c.RPC.RequestTimeout.Duration == 0 {
		c.RPC.RequestTimeout = Duration{Duration: 30 * time.Second}
	}
	if c.Tx.GasMarginPercent == 0 {
		c.Tx.GasMarginPercent = 10
	}
	if c.Tx.PriorityFeePercent == 0 {
		c.Tx.PriorityFeePercent = 2
	}
	if c.Tx.ReceiptPollInterval.Duration == 0 {
		c.Tx.ReceiptPollInterval = Duration{Duration: time.Second}
	}
	if c.Accounts.PassphraseEnv == "" {
		c.Accounts.PassphraseEnv = "ETHHELPER_KEYSTORE_PASSPHRASE"
	}
	if c.Events.MinPollInterval.Duration == 0 {
		c.Events.MinPollInterval = Duration{Duration: 100 * time.Millisecond}
	}
	if c.DevNode.Geth == "" {
		c.DevNode.Geth = "geth"
	}
	if c.DevNode.HTTPPort == 0 {
		c.DevNode.HTTPPort = 7545
	}
	if c.DevNode.ChainID == 0 {
		c.DevNode.ChainID = 1337
	}
	if c.DevNode.BlockPeriod == 0 {
		c.DevNode.BlockPeriod = 12
	}
	if c.DevNode.GasLimit == 0 {
		c.DevNode.GasLimit = 30_000_000
	}
	if len(c.DevNode.HTTPAPIs) == 0 {
		c.DevNode.HTTPAPIs = []string{"eth", "net", "web3", "debug", "engine", "admin"}
	}
	if c.DevNode.ConnTimeout.Duration == 0 {
		c.DevNode.ConnTimeout = Duration{Duration: 5 * time.Second}
	}
	if c.DevNode.ConnInterval.Duration == 0 {
		c.DevNode.ConnInterval = Duration{Duration: 500 * time.Millisecond}
	}
	if c.DevNode.TermTimeout.Duration == 0 {
		c.DevNode.TermTimeout = Duration{Duration: 10 * time.Second}
	}
}

func (c *Config) validate() error {
	if c.Tx.GasMarginPercent > 100 {
		return fmt.Errorf("tx.gas_margin_percent must be <= 100")
	}
	if c.Accounts.Index < 0 {
		return fmt.Errorf("accounts.index must be >= 0")
	}
	if c.ReleaseURL != "" && !strings.Contains(c.ReleaseURL, "{contract}") {
		return fmt.Errorf("releaseUrl must contain a {contract} placeholder")
	}
	if c.DevNode.HTTPPort <= 0 || c.DevNode.HTTPPort > 65535 {
		return fmt.Errorf("devnode.http_port out of range: %d", c.DevNode.HTTPPort)
	}
	return nil
}

// ContractPaths returns the locally built ABI and bytecode paths for name.
// Contracts missing from contractModuleMap live in a module named after
// themselves.
func (c *Config) ContractPaths(name string) (abiPath, binPath string) {
	module, ok := c.ContractModuleMap[name]
	if !ok || module == "" {
		module = name
	}
	dir := filepath.Join(c.BuildDir, module)
	return filepath.Join(dir, name+".abi"), filepath.Join(dir, name+".bin")
}
