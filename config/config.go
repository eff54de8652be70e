package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config contains all top-level configuration settings for the application, accessible for reading.
type Config struct {
	Server    *ServerConfig
	Log       *LogConfig
	Chain     *ChainConfig
	Contracts *ContractsConfig
	Features  *FeaturesConfig
	Wallet    *WalletConfig
	DB        *DBConfig
	Redis     *RedisConfig
	Poller    *PollerConfig
}

// ServerConfig contains configuration details for the server, with fields unexported for encapsulation.
type ServerConfig struct {
	host        string
	port        int
	metricsPort int
}

// LogConfig contains configuration settings for logging.
type LogConfig struct {
	level string
}

// ChainConfig contains configuration details for interacting with the chain node REST API.
type ChainConfig struct {
	url               string
	timeout           int
	retryAttempts     uint
	maxGasAmount      uint64
	gasUnitPrice      uint64
	expirationSeconds int
	waitTimeout       int
}

// ContractsConfig holds the account addresses the contract modules are published under.
type ContractsConfig struct {
	secureVoting    string
	financialSystem string
	onChainLevels   string
	truthRewards    string
}

// FeaturesConfig holds feature toggles.
type FeaturesConfig struct {
	onChainLevels bool
}

// WalletConfig holds the key of the account the service signs with.
type WalletConfig struct {
	privateKey string
}

// DBConfig contains database connection settings with sensitive details unexported.
type DBConfig struct {
	user     string
	dbname   string
	password string
	host     string
	port     int
}

// RedisConfig contains the leaderboard cache connection settings.
type RedisConfig struct {
	url      string
	password string
}

// PollerConfig contains the resolver poller settings.
type PollerConfig struct {
	enabled  bool
	interval int
}

const (
	defaultPort              = 8080
	defaultMetricsPort       = 9090
	defaultLogLevel          = "info"
	defaultChainTimeout      = 10
	defaultRetryAttempts     = 3
	defaultMaxGasAmount      = 200000
	defaultGasUnitPrice      = 100
	defaultExpirationSeconds = 600
	defaultWaitTimeout       = 30
	defaultPollerInterval    = 30
)

// Environment variables overriding the YAML file.
const (
	EnvNodeURL                = "VOCE_NODE_URL"
	EnvSecureVotingAddress    = "VOCE_SECURE_VOTING_ADDRESS"
	EnvFinancialSystemAddress = "VOCE_FINANCIAL_SYSTEM_ADDRESS"
	EnvOnChainLevelsAddress   = "VOCE_ON_CHAIN_LEVELS_ADDRESS"
	EnvTruthRewardsAddress    = "VOCE_TRUTH_REWARDS_ADDRESS"
	EnvEnableOnChainLevels    = "VOCE_ENABLE_ON_CHAIN_LEVELS"
	EnvPrivateKey             = "VOCE_PRIVATE_KEY"
	EnvDBPassword             = "VOCE_DB_PASSWORD"
)

// Frontend build variables read when the matching VOCE_ variable is unset.
const (
	EnvViteSecureVotingAddress    = "VITE_SECURE_VOTING_ADDRESS"
	EnvViteFinancialSystemAddress = "VITE_FINANCIAL_SYSTEM_ADDRESS"
	EnvViteEnableOnChainLevels    = "VITE_ENABLE_ON_CHAIN_LEVELS"
)

// envFallbacks lists the variables consulted after the primary one, in order.
var envFallbacks = map[string][]string{
	EnvSecureVotingAddress:    {EnvViteSecureVotingAddress},
	EnvFinancialSystemAddress: {EnvViteFinancialSystemAddress},
	EnvEnableOnChainLevels:    {EnvViteEnableOnChainLevels},
}

var (
	cfg      *Config
	once     sync.Once
	loadErr  error
	validate = validator.New()
)

// LoadConfig reads configuration from the given file. An optional .env file next to the
// working directory is loaded first so its variables can override the YAML values.
func LoadConfig(configFile string) (*Config, error) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			loadErr = fmt.Errorf("error loading .env file: %w", err)
			return
		}

		absPath, err := filepath.Abs(configFile)
		if err != nil {
			loadErr = fmt.Errorf("error finding absolute path for the configuration file: %w", err)
			return
		}

		yamlFile, err := os.ReadFile(absPath)
		if err != nil {
			loadErr = fmt.Errorf("error reading YAML file: %w", err)
			return
		}

		cfg, loadErr = Parse(yamlFile)
	})

	return cfg, loadErr
}

// Parse builds a Config from raw YAML, applying environment overrides, defaults and validation.
func Parse(data []byte) (*Config, error) {
	raw := configYAML{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}

	if err := applyEnv(&raw); err != nil {
		return nil, err
	}
	applyDefaults(&raw)

	if err := validate.Struct(raw); err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if raw.Features.OnChainLevels && raw.Contracts.OnChainLevels == "" {
		return nil, fmt.Errorf("validation error: contracts.onChainLevels is required when features.onChainLevels is enabled")
	}

	enabled := true
	if raw.Poller.Enabled != nil {
		enabled = *raw.Poller.Enabled
	}

	return &Config{
		Server: &ServerConfig{
			host:        raw.Server.Host,
			port:        raw.Server.Port,
			metricsPort: raw.Server.MetricsPort,
		},
		Log: &LogConfig{
			level: raw.Log.Level,
		},
		Chain: &ChainConfig{
			url:               raw.Chain.URL,
			timeout:           raw.Chain.Timeout,
			retryAttempts:     raw.Chain.RetryAttempts,
			maxGasAmount:      raw.Chain.MaxGasAmount,
			gasUnitPrice:      raw.Chain.GasUnitPrice,
			expirationSeconds: raw.Chain.ExpirationSeconds,
			waitTimeout:       raw.Chain.WaitTimeout,
		},
		Contracts: &ContractsConfig{
			secureVoting:    raw.Contracts.SecureVoting,
			financialSystem: raw.Contracts.FinancialSystem,
			onChainLevels:   raw.Contracts.OnChainLevels,
			truthRewards:    raw.Contracts.TruthRewards,
		},
		Features: &FeaturesConfig{
			onChainLevels: raw.Features.OnChainLevels,
		},
		Wallet: &WalletConfig{
			privateKey: raw.Wallet.PrivateKey,
		},
		DB: &DBConfig{
			user:     raw.DB.User,
			dbname:   raw.DB.DBName,
			password: raw.DB.Password,
			host:     raw.DB.Host,
			port:     raw.DB.Port,
		},
		Redis: &RedisConfig{
			url:      raw.Redis.URL,
			password: raw.Redis.Password,
		},
		Poller: &PollerConfig{
			enabled:  enabled,
			interval: raw.Poller.Interval,
		},
	}, nil
}

// lookupEnv returns the first non-empty value among env and its fallbacks.
func lookupEnv(env string) (name, value string, ok bool) {
	for _, name := range append([]string{env}, envFallbacks[env]...) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return name, v, true
		}
	}
	return "", "", false
}

func applyEnv(raw *configYAML) error {
	overrides := map[string]*string{
		EnvNodeURL:                &raw.Chain.URL,
		EnvSecureVotingAddress:    &raw.Contracts.SecureVoting,
		EnvFinancialSystemAddress: &raw.Contracts.FinancialSystem,
		EnvOnChainLevelsAddress:   &raw.Contracts.OnChainLevels,
		EnvTruthRewardsAddress:    &raw.Contracts.TruthRewards,
		EnvPrivateKey:             &raw.Wallet.PrivateKey,
		EnvDBPassword:             &raw.DB.Password,
	}
	for env, field := range overrides {
		if _, v, ok := lookupEnv(env); ok {
			*field = v
		}
	}

	if name, v, ok := lookupEnv(EnvEnableOnChainLevels); ok {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s value %q: %w", name, v, err)
		}
		raw.Features.OnChainLevels = enabled
	}
	return nil
}

func applyDefaults(raw *configYAML) {
	if raw.Server.Port == 0 {
		raw.Server.Port = defaultPort
	}
	if raw.Server.MetricsPort == 0 {
		raw.Server.MetricsPort = defaultMetricsPort
	}
	if raw.Log.Level == "" {
		raw.Log.Level = defaultLogLevel
	}
	if raw.Chain.Timeout == 0 {
		raw.Chain.Timeout = defaultChainTimeout
	}
	if raw.Chain.RetryAttempts == 0 {
		raw.Chain.RetryAttempts = defaultRetryAttempts
	}
	if raw.Chain.MaxGasAmount == 0 {
		raw.Chain.MaxGasAmount = defaultMaxGasAmount
	}
	if raw.Chain.GasUnitPrice == 0 {
		raw.Chain.GasUnitPrice = defaultGasUnitPrice
	}
	if raw.Chain.ExpirationSeconds == 0 {
		raw.Chain.ExpirationSeconds = defaultExpirationSeconds
	}
	if raw.Chain.WaitTimeout == 0 {
		raw.Chain.WaitTimeout = defaultWaitTimeout
	}
	if raw.Poller.Interval == 0 {
		raw.Poller.Interval = defaultPollerInterval
	}
}

// GetHost returns the host configuration from the ServerConfig.
func (s *ServerConfig) GetHost() string {
	return s.host
}

// GetPort returns the port configuration from the ServerConfig.
func (s *ServerConfig) GetPort() int {
	return s.port
}

// GetMetricsPort returns the metrics port configuration from the ServerConfig.
func (s *ServerConfig) GetMetricsPort() int {
	return s.metricsPort
}

// GetListenAddress constructs the listening address from the ServerConfig.
func (s *ServerConfig) GetListenAddress() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}

// GetLevel returns the log level from LogConfig.
func (l *LogConfig) GetLevel() string {
	return l.level
}

// GetURL returns the node url from the ChainConfig.
func (c *ChainConfig) GetURL() string {
	return c.url
}

// GetTimeout returns the http timeout of a single node request.
func (c *ChainConfig) GetTimeout() time.Duration {
	return time.Duration(c.timeout) * time.Second
}

// GetRetryAttempts returns the maximum retry attempts from the ChainConfig.
func (c *ChainConfig) GetRetryAttempts() uint {
	return c.retryAttempts
}

// GetMaxGasAmount returns the gas limit set on every transaction.
func (c *ChainConfig) GetMaxGasAmount() uint64 {
	return c.maxGasAmount
}

// GetGasUnitPrice returns the gas unit price set on every transaction.
func (c *ChainConfig) GetGasUnitPrice() uint64 {
	return c.gasUnitPrice
}

// GetExpiration returns how long a built transaction stays valid.
func (c *ChainConfig) GetExpiration() time.Duration {
	return time.Duration(c.expirationSeconds) * time.Second
}

// GetWaitTimeout returns how long to wait for a submitted transaction to commit.
func (c *ChainConfig) GetWaitTimeout() time.Duration {
	return time.Duration(c.waitTimeout) * time.Second
}

func (c *ContractsConfig) GetSecureVoting() string {
	return c.secureVoting
}

func (c *ContractsConfig) GetFinancialSystem() string {
	return c.financialSystem
}

func (c *ContractsConfig) GetOnChainLevels() string {
	return c.onChainLevels
}

func (c *ContractsConfig) GetTruthRewards() string {
	return c.truthRewards
}

// OnChainLevelsEnabled reports whether XP is mirrored to the on_chain_levels module.
func (f *FeaturesConfig) OnChainLevelsEnabled() bool {
	return f.onChainLevels
}

// GetPrivateKey returns the hex encoded ed25519 key, empty when the service runs read-only.
func (w *WalletConfig) GetPrivateKey() string {
	return w.privateKey
}

// GetUser returns the user configuration from the DBConfig.
func (d *DBConfig) GetUser() string {
	return d.user
}

// GetDbname returns the name configuration from the DBConfig.
func (d *DBConfig) GetDbname() string {
	return d.dbname
}

// GetPassword returns the password configuration from the DBConfig.
func (d *DBConfig) GetPassword() string {
	return d.password
}

// GetHost returns the host configuration from the DBConfig.
func (d *DBConfig) GetHost() string {
	return d.host
}

// GetPort returns the port configuration from the DBConfig.
func (d *DBConfig) GetPort() int {
	return d.port
}

// GetPostgresqlDSN constructs a PostgreSQL DSN from the DBConfig.
func (d *DBConfig) GetPostgresqlDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", d.user, d.password, d.host, d.port, d.dbname)
}

func (r *RedisConfig) GetURL() string {
	return r.url
}

func (r *RedisConfig) GetPassword() string {
	return r.password
}

// Enabled reports whether a redis url was configured.
func (r *RedisConfig) Enabled() bool {
	return r.url != ""
}

// IsEnabled reports whether the resolver poller should run.
func (p *PollerConfig) IsEnabled() bool {
	return p.enabled
}

// GetInterval returns the delay between two resolver passes.
func (p *PollerConfig) GetInterval() time.Duration {
	return time.Duration(p.interval) * time.Second
}
