// Package config loads the server's settings with spf13/viper: defaults
// set in code, overridden by a config file and then by LOGINSERVER_*
// environment variables, the same three-tier precedence every other
// viper-based service in this stack uses.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every setting the original reads out of its Lua/INI
// config: network bind address, MySQL connection details, the
// password-hash salt, the protocol version floor and its human-readable
// name, the MOTD, and the Redis bus endpoint.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	MySQLHost     string `mapstructure:"mysqlHost"`
	MySQLUser     string `mapstructure:"mysqlUser"`
	MySQLPass     string `mapstructure:"mysqlPass"`
	MySQLDatabase string `mapstructure:"mysqlDatabase"`
	MySQLPort     int    `mapstructure:"mysqlPort"`
	MySQLSock     string `mapstructure:"mysqlSock"`

	EncryptionSalt string `mapstructure:"encryptionSalt"`

	VersionMin uint16 `mapstructure:"versionMin"`
	VersionStr string `mapstructure:"versionStr"`

	MotdNumber  int    `mapstructure:"motdNumber"`
	MotdMessage string `mapstructure:"motdMessage"`

	RedisHost string `mapstructure:"redisHost"`
	RedisPort int    `mapstructure:"redisPort"`

	RSAKeyPath string `mapstructure:"rsaKeyPath"`

	ModulesPath string `mapstructure:"modulesPath"`

	LogLevel string `mapstructure:"logLevel"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 7171)
	v.SetDefault("mysqlHost", "127.0.0.1")
	v.SetDefault("mysqlPort", 3306)
	v.SetDefault("versionMin", 1100)
	v.SetDefault("versionStr", "11.00")
	v.SetDefault("motdNumber", 1)
	v.SetDefault("motdMessage", "Welcome.")
	v.SetDefault("redisHost", "127.0.0.1")
	v.SetDefault("redisPort", 6379)
	v.SetDefault("rsaKeyPath", "key.pem")
	v.SetDefault("modulesPath", "modules")
	v.SetDefault("logLevel", "info")
}

// Load reads configuration from path (if non-empty, "" skips the file
// entirely and relies on defaults plus environment) and environment
// variables prefixed LOGINSERVER_, e.g. LOGINSERVER_MYSQLHOST.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("loginserver")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Addr returns the host:port pair the TCP listener should bind to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
