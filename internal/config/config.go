package config

import (
	"log"
	"strings"
	"time"

	"github.com/beanbot/backend/internal/models"
	"github.com/spf13/viper"
)

// Storage drivers understood by the server.
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type LedgerConfig struct {
	MergeWindow     time.Duration
	MaxConfigValues int
	Defaults        models.UserConfig
}

type VoiceConfig struct {
	Enabled      bool
	LanguageCode string
}

// AppConfig is everything the server reads at startup.
type AppConfig struct {
	Server        ServerConfig
	StorageDriver string
	Ledger        LedgerConfig
	Voice         VoiceConfig
}

// Init wires viper to the .env file and the environment. Call it once before Load.
func Init() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("storage.driver", "STORAGE_DRIVER")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("ledger.merge_window", "LEDGER_MERGE_WINDOW")
	viper.BindEnv("ledger.max_config_values", "LEDGER_MAX_CONFIG_VALUES")
	viper.BindEnv("defaults.timezone", "DEFAULT_TIMEZONE")
	viper.BindEnv("defaults.currencies", "DEFAULT_CURRENCIES")
	viper.BindEnv("defaults.accounts", "DEFAULT_ACCOUNTS")

	viper.BindEnv("voice.enabled", "VOICE_ENABLED")
	viper.BindEnv("voice.language_code", "VOICE_LANGUAGE_CODE")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}
}

// Load returns the application config with defaults applied.
func Load() *AppConfig {
	def := models.DefaultUserConfig()

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)
	viper.SetDefault("storage.driver", StorageMemory)
	viper.SetDefault("ledger.merge_window", 5*time.Minute)
	viper.SetDefault("ledger.max_config_values", 4)
	viper.SetDefault("defaults.timezone", def.Timezone)
	viper.SetDefault("defaults.currencies", strings.Join(def.Currencies, ","))
	viper.SetDefault("defaults.accounts", strings.Join(def.CreditAccounts, ","))
	viper.SetDefault("voice.enabled", false)
	viper.SetDefault("voice.language_code", "en-US")

	return &AppConfig{
		Server: ServerConfig{
			Port:            viper.GetString("server.port"),
			ReadTimeout:     viper.GetDuration("server.read_timeout"),
			WriteTimeout:    viper.GetDuration("server.write_timeout"),
			ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
		},
		StorageDriver: strings.ToLower(viper.GetString("storage.driver")),
		Ledger: LedgerConfig{
			MergeWindow:     viper.GetDuration("ledger.merge_window"),
			MaxConfigValues: viper.GetInt("ledger.max_config_values"),
			Defaults: models.UserConfig{
				Timezone:       viper.GetString("defaults.timezone"),
				Currencies:     splitList(viper.GetString("defaults.currencies"), def.Currencies),
				CreditAccounts: splitList(viper.GetString("defaults.accounts"), def.CreditAccounts),
			},
		},
		Voice: VoiceConfig{
			Enabled:      viper.GetBool("voice.enabled"),
			LanguageCode: viper.GetString("voice.language_code"),
		},
	}
}

// splitList reads a comma separated setting, falling back when nothing usable is set.
func splitList(raw string, fallback []string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
