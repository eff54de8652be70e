package config

// configYAML is a transitional struct that contains all the configuration settings, mirroring the structure of the Config struct.
type configYAML struct {
	Server    serverConfigYAML    `yaml:"server"`
	Log       logConfigYAML       `yaml:"log"`
	Chain     chainConfigYAML     `yaml:"chain" validate:"required"`
	Contracts contractsConfigYAML `yaml:"contracts" validate:"required"`
	Features  featuresConfigYAML  `yaml:"features"`
	Wallet    walletConfigYAML    `yaml:"wallet"`
	DB        dbConfigYAML        `yaml:"db" validate:"required"`
	Redis     redisConfigYAML     `yaml:"redis"`
	Poller    pollerConfigYAML    `yaml:"poller"`
}

// serverConfigYAML is a transitional struct used for unmarshaling the server configuration from YAML.
type serverConfigYAML struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port" validate:"gte=0,lte=65535"`
	MetricsPort int    `yaml:"metricsPort" validate:"gte=0,lte=65535"`
}

// logConfigYAML is a transitional struct used for unmarshaling the log configuration from YAML.
type logConfigYAML struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
}

// chainConfigYAML is a transitional struct used for unmarshaling the chain node configuration from YAML.
type chainConfigYAML struct {
	URL               string `yaml:"url" validate:"required,url"`
	Timeout           int    `yaml:"timeout" validate:"gte=0"`
	RetryAttempts     uint   `yaml:"retryAttempts"`
	MaxGasAmount      uint64 `yaml:"maxGasAmount"`
	GasUnitPrice      uint64 `yaml:"gasUnitPrice"`
	ExpirationSeconds int    `yaml:"expirationSeconds" validate:"gte=0"`
	WaitTimeout       int    `yaml:"waitTimeout" validate:"gte=0"`
}

// contractsConfigYAML is a transitional struct holding the addresses of the deployed contract modules.
type contractsConfigYAML struct {
	SecureVoting    string `yaml:"secureVoting" validate:"required,hexadecimal"`
	FinancialSystem string `yaml:"financialSystem" validate:"required,hexadecimal"`
	OnChainLevels   string `yaml:"onChainLevels" validate:"omitempty,hexadecimal"`
	TruthRewards    string `yaml:"truthRewards" validate:"omitempty,hexadecimal"`
}

type featuresConfigYAML struct {
	OnChainLevels bool `yaml:"onChainLevels"`
}

type walletConfigYAML struct {
	PrivateKey string `yaml:"privateKey"`
}

// dbConfigYAML is a transitional struct used for unmarshaling the database configuration from YAML.
type dbConfigYAML struct {
	User     string `yaml:"user" validate:"required"`
	DBName   string `yaml:"dbname" validate:"required"`
	Password string `yaml:"password"`
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required"`
}

// redisConfigYAML is optional, an empty url disables the leaderboard cache.
type redisConfigYAML struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// pollerConfigYAML is a transitional struct used for unmarshaling the resolver poller configuration from YAML.
type pollerConfigYAML struct {
	Enabled  *bool `yaml:"enabled"`
	Interval int   `yaml:"interval" validate:"gte=0"`
}
