package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Engine   EngineConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	ShutdownPeriod time.Duration `mapstructure:"shutdownPeriod"`
	AllowedOrigins []string      `mapstructure:"allowedOrigins"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// Channel carries license change notifications for snapshot refresh.
	Channel string `mapstructure:"channel"`
}

type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"tokenTTL"`
	Issuer   string        `mapstructure:"issuer"`
	// AgentPassword is the shared login password seeded for agent accounts.
	// Empty disables agent logins.
	AgentPassword string `mapstructure:"agentPassword"`
}

// EngineConfig carries the status engine knobs exposed to operators.
type EngineConfig struct {
	SoonWindowDays int    `mapstructure:"soonWindowDays"`
	TopAgents      int    `mapstructure:"topAgents"`
	KeyScheme      string `mapstructure:"keyScheme"`
	BulkCreateMax  int    `mapstructure:"bulkCreateMax"`
	ExtendDays     int    `mapstructure:"extendDays"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func LoadConfig(configPath string) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables and config file")
	}

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.readTimeout", 5*time.Second)
	viper.SetDefault("server.writeTimeout", 10*time.Second)
	viper.SetDefault("server.idleTimeout", 120*time.Second)
	viper.SetDefault("server.shutdownPeriod", 15*time.Second)
	viper.SetDefault("server.allowedOrigins", []string{"http://localhost:3000"})

	viper.SetDefault("database.maxOpenConns", 25)
	viper.SetDefault("database.maxIdleConns", 25)
	viper.SetDefault("database.connMaxLifetime", 5*time.Minute)

	viper.SetDefault("redis.db", "0")
	viper.SetDefault("redis.channel", "licenses:changed")

	viper.SetDefault("jwt.tokenTTL", 12*time.Hour)
	viper.SetDefault("jwt.issuer", "license-admin-api")

	viper.SetDefault("engine.soonWindowDays", 7)
	viper.SetDefault("engine.topAgents", 5)
	viper.SetDefault("engine.keyScheme", "alphabet")
	viper.SetDefault("engine.bulkCreateMax", 5000)
	viper.SetDefault("engine.extendDays", 30)

	viper.SetDefault("log.level", "info")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AllowEmptyEnv(true)

	if configPath != "" {
		viper.SetConfigFile(configPath)
		if err := viper.ReadInConfig(); err != nil {
			log.Printf("Warning: could not read config file: %s. Error: %v\n", configPath, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SoonWindow converts the configured day count to a duration.
func (c EngineConfig) SoonWindow() time.Duration {
	days := c.SoonWindowDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}
