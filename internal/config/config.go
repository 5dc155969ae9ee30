package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMarketplace = "0x705279FAE070DEe258156940d88A6eCF5B302073"
	DefaultChainID     = int64(11155111)
	DefaultEnvFile     = ".env"
)

type GlobalFlags struct {
	ConfigPath     string
	EnvFile        string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Retries        int
	RPCURL         string
	Marketplace    string
	KeySource      string
	PrivateKey     string
	Account        string
	LogLevel       string
	NoCache        bool
	MetricsFile    string
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	Timeout        time.Duration
	Retries        int
	LogLevel       string

	RPCURL         string
	ChainID        int64
	Marketplace    string
	KeySource      string
	PrivateKey     string
	Account        string
	Fanout         int
	RPCRateLimit   float64
	GasMultiplier  float64
	PollInterval   time.Duration
	ReceiptTimeout time.Duration

	IPFSAPIURL        string
	IPFSProjectID     string
	IPFSProjectSecret string
	IPFSGateway       string

	CacheEnabled    bool
	CachePath       string
	CacheLockPath   string
	MetadataTTL     time.Duration
	JournalPath     string
	JournalLockPath string
	MetricsPath     string
}

type fileConfig struct {
	Output   string `yaml:"output"`
	Timeout  string `yaml:"timeout"`
	Retries  *int   `yaml:"retries"`
	LogLevel string `yaml:"log_level"`
	Chain    struct {
		RPCURL         string   `yaml:"rpc_url"`
		ChainID        *int64   `yaml:"chain_id"`
		Marketplace    string   `yaml:"marketplace"`
		KeySource      string   `yaml:"key_source"`
		Fanout         *int     `yaml:"fanout"`
		RPCRateLimit   *float64 `yaml:"rpc_rate_limit"`
		GasMultiplier  *float64 `yaml:"gas_multiplier"`
		PollInterval   string   `yaml:"poll_interval"`
		ReceiptTimeout string   `yaml:"receipt_timeout"`
	} `yaml:"chain"`
	IPFS struct {
		APIURL           string `yaml:"api_url"`
		ProjectID        string `yaml:"project_id"`
		ProjectSecret    string `yaml:"project_secret"`
		ProjectSecretEnv string `yaml:"project_secret_env"`
		Gateway          string `yaml:"gateway"`
	} `yaml:"ipfs"`
	Cache struct {
		Enabled     *bool  `yaml:"enabled"`
		Path        string `yaml:"path"`
		LockPath    string `yaml:"lock_path"`
		MetadataTTL string `yaml:"metadata_ttl"`
	} `yaml:"cache"`
	Journal struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"journal"`
	Metrics struct {
		File string `yaml:"file"`
	} `yaml:"metrics"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	if err := loadDotEnv(flags.EnvFile); err != nil {
		return Settings{}, err
	}
	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 15 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.Fanout <= 0 {
		settings.Fanout = 8
	}
	if settings.GasMultiplier < 1 {
		settings.GasMultiplier = 1.2
	}
	if settings.RPCRateLimit < 0 {
		settings.RPCRateLimit = 0
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	dir, err := defaultCacheDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:      "json",
		Timeout:         15 * time.Second,
		Retries:         2,
		LogLevel:        "warn",
		ChainID:         DefaultChainID,
		Marketplace:     DefaultMarketplace,
		KeySource:       "auto",
		Fanout:          8,
		RPCRateLimit:    10,
		GasMultiplier:   1.2,
		PollInterval:    2 * time.Second,
		ReceiptTimeout:  3 * time.Minute,
		CacheEnabled:    true,
		CachePath:       filepath.Join(dir, "cache.db"),
		CacheLockPath:   filepath.Join(dir, "cache.lock"),
		MetadataTTL:     7 * 24 * time.Hour,
		JournalPath:     filepath.Join(dir, "journal.db"),
		JournalLockPath: filepath.Join(dir, "journal.lock"),
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "nftmp", "config.yaml"), nil
}

func defaultCacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "nftmp"), nil
}

// loadDotEnv exports the variables of path that are not already set. A missing
// file is not an error.
func loadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if err := parseDuration("config timeout", cfg.Timeout, &settings.Timeout); err != nil {
		return err
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = cfg.LogLevel
	}

	if cfg.Chain.RPCURL != "" {
		settings.RPCURL = cfg.Chain.RPCURL
	}
	if cfg.Chain.ChainID != nil {
		settings.ChainID = *cfg.Chain.ChainID
	}
	if cfg.Chain.Marketplace != "" {
		settings.Marketplace = cfg.Chain.Marketplace
	}
	if cfg.Chain.KeySource != "" {
		settings.KeySource = cfg.Chain.KeySource
	}
	if cfg.Chain.Fanout != nil {
		settings.Fanout = *cfg.Chain.Fanout
	}
	if cfg.Chain.RPCRateLimit != nil {
		settings.RPCRateLimit = *cfg.Chain.RPCRateLimit
	}
	if cfg.Chain.GasMultiplier != nil {
		settings.GasMultiplier = *cfg.Chain.GasMultiplier
	}
	if err := parseDuration("config chain.poll_interval", cfg.Chain.PollInterval, &settings.PollInterval); err != nil {
		return err
	}
	if err := parseDuration("config chain.receipt_timeout", cfg.Chain.ReceiptTimeout, &settings.ReceiptTimeout); err != nil {
		return err
	}

	if cfg.IPFS.APIURL != "" {
		settings.IPFSAPIURL = cfg.IPFS.APIURL
	}
	if cfg.IPFS.ProjectID != "" {
		settings.IPFSProjectID = cfg.IPFS.ProjectID
	}
	if cfg.IPFS.ProjectSecret != "" {
		settings.IPFSProjectSecret = cfg.IPFS.ProjectSecret
	}
	if cfg.IPFS.ProjectSecretEnv != "" {
		settings.IPFSProjectSecret = os.Getenv(cfg.IPFS.ProjectSecretEnv)
	}
	if cfg.IPFS.Gateway != "" {
		settings.IPFSGateway = cfg.IPFS.Gateway
	}

	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}
	if err := parseDuration("config cache.metadata_ttl", cfg.Cache.MetadataTTL, &settings.MetadataTTL); err != nil {
		return err
	}
	if cfg.Journal.Path != "" {
		settings.JournalPath = cfg.Journal.Path
	}
	if cfg.Journal.LockPath != "" {
		settings.JournalLockPath = cfg.Journal.LockPath
	}
	if cfg.Metrics.File != "" {
		settings.MetricsPath = cfg.Metrics.File
	}

	return nil
}

func parseDuration(field, raw string, dst *time.Duration) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("NFTMP_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("NFTMP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("NFTMP_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("NFTMP_LOG_LEVEL"); v != "" {
		settings.LogLevel = v
	}
	if v := os.Getenv("NFTMP_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("NFTMP_CHAIN_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			settings.ChainID = n
		}
	}
	if v := os.Getenv("NFTMP_MARKETPLACE"); v != "" {
		settings.Marketplace = v
	}
	if v := os.Getenv("NFTMP_KEY_SOURCE"); v != "" {
		settings.KeySource = v
	}
	if v := os.Getenv("NFTMP_ACCOUNT"); v != "" {
		settings.Account = v
	}
	if v := os.Getenv("NFTMP_FANOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Fanout = n
		}
	}
	if v := os.Getenv("NFTMP_RPC_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.RPCRateLimit = f
		}
	}
	if v := os.Getenv("NFTMP_GAS_MULTIPLIER"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			settings.GasMultiplier = f
		}
	}
	if v := os.Getenv("NFTMP_IPFS_API_URL"); v != "" {
		settings.IPFSAPIURL = v
	}
	if v := os.Getenv("NFTMP_IPFS_PROJECT_ID"); v != "" {
		settings.IPFSProjectID = v
	}
	if v := os.Getenv("NFTMP_IPFS_PROJECT_SECRET"); v != "" {
		settings.IPFSProjectSecret = v
	}
	if v := os.Getenv("NFTMP_IPFS_GATEWAY"); v != "" {
		settings.IPFSGateway = v
	}
	if v := os.Getenv("NFTMP_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := os.Getenv("NFTMP_CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := os.Getenv("NFTMP_CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
	if v := os.Getenv("NFTMP_JOURNAL_PATH"); v != "" {
		settings.JournalPath = v
	}
	if v := os.Getenv("NFTMP_JOURNAL_LOCK_PATH"); v != "" {
		settings.JournalLockPath = v
	}
	if v := os.Getenv("NFTMP_METRICS_FILE"); v != "" {
		settings.MetricsPath = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if fields := splitList(flags.Select); len(fields) > 0 {
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly
	if allowed := splitList(flags.EnableCommands); len(allowed) > 0 {
		settings.EnableCommands = allowed
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if v := strings.TrimSpace(flags.RPCURL); v != "" {
		settings.RPCURL = v
	}
	if v := strings.TrimSpace(flags.Marketplace); v != "" {
		settings.Marketplace = v
	}
	if v := strings.TrimSpace(flags.KeySource); v != "" {
		settings.KeySource = v
	}
	if v := strings.TrimSpace(flags.PrivateKey); v != "" {
		settings.PrivateKey = v
	}
	if v := strings.TrimSpace(flags.Account); v != "" {
		settings.Account = v
	}
	if v := strings.TrimSpace(flags.LogLevel); v != "" {
		settings.LogLevel = v
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	if v := strings.TrimSpace(flags.MetricsFile); v != "" {
		settings.MetricsPath = v
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	return nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
