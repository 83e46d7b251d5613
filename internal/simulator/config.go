package simulator

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/larsks/npsctl/internal/config"
	"github.com/larsks/npsctl/internal/relay"
	"github.com/spf13/pflag"
)

const defaultListenAddress = "127.0.0.1:2323"

// Config holds configuration for the simulator service
type Config struct {
	// ConfigFile holds the path to the configuration file
	ConfigFile string `mapstructure:"config" json:"config"`
	// ListenAddress is the telnet address to accept connections on
	ListenAddress string `mapstructure:"listen-address" json:"listen-address"`
	// RelayCount is the number of simulated relays
	RelayCount int `mapstructure:"relay-count" json:"relay-count"`
	// Password, when set, must be entered before the first prompt
	Password string `mapstructure:"password" json:"password"`
	// Prompt is printed after every response
	Prompt string `mapstructure:"prompt" json:"prompt"`
	// Echo controls whether command lines are echoed back
	Echo bool `mapstructure:"echo" json:"echo"`
	Debug bool `mapstructure:"debug" json:"debug"`
}

func configDefaults() map[string]any {
	return map[string]any{
		"listen-address": defaultListenAddress,
		"relay-count":    relay.MaxRelay,
		"password":       "",
		"prompt":         defaultPrompt,
		"echo":           true,
		"debug":          false,
	}
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		ListenAddress: defaultListenAddress,
		RelayCount:    relay.MaxRelay,
		Prompt:        defaultPrompt,
		Echo:          true,
	}
}

// AddFlags adds command line flags for this config
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", "", "Path to configuration file")
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress, "Address to accept telnet connections on")
	fs.IntVar(&c.RelayCount, "relay-count", c.RelayCount, "Number of simulated relays")
	fs.StringVar(&c.Password, "password", c.Password, "Require this password before the first prompt")
	fs.StringVar(&c.Prompt, "prompt", c.Prompt, "Prompt printed after every response")
	fs.BoolVar(&c.Echo, "echo", c.Echo, "Echo command lines back to the client")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Log every command")
}

// LoadConfigWithFlagSet loads configuration using a custom flag set.
// Unknown keys in the config file are rejected.
func (c *Config) LoadConfigWithFlagSet(fs *pflag.FlagSet) error {
	loader := config.NewConfigLoader()
	loader.SetConfigFile(c.ConfigFile)
	loader.SetDefaults(configDefaults())
	loader.SetStrictMode(true)
	return loader.LoadConfigWithFlagSet(c, fs)
}

// Validate checks the configuration
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.ListenAddress, validation.Required),
		validation.Field(&c.RelayCount, validation.Required, validation.Min(relay.MinRelay), validation.Max(relay.MaxRelay)),
		validation.Field(&c.Prompt, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("invalid simulator configuration: %w", err)
	}
	return nil
}
