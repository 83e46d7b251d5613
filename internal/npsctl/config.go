package npsctl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/larsks/npsctl/internal/config"
	"github.com/larsks/npsctl/internal/mqtt"
	"github.com/larsks/npsctl/internal/nps"
	"github.com/larsks/npsctl/internal/relay"
	"github.com/larsks/npsctl/internal/transport"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

const (
	defaultTransport   = "telnet"
	defaultDialTimeout = 10 * time.Second
	defaultMQTTTopic   = "nps"

	// PasswordEnvVar supplies the password when neither a flag nor the
	// config file does.
	PasswordEnvVar = "NPS_PASSWORD"
)

// Config holds the npsctl configuration
type Config struct {
	ConfigFile   string        `mapstructure:"config" json:"config"`
	Host         string        `mapstructure:"host" json:"host"`
	Port         int           `mapstructure:"port" json:"port"`
	Password     string        `mapstructure:"password" json:"password"`
	Transport    string        `mapstructure:"transport" json:"transport"`
	SerialDevice string        `mapstructure:"serial-device" json:"serial-device"`
	BaudRate     int           `mapstructure:"baud-rate" json:"baud-rate"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
	DialTimeout  time.Duration `mapstructure:"dial-timeout" json:"dial-timeout"`
	RelayCount   int           `mapstructure:"relay-count" json:"relay-count"`
	Debug        bool          `mapstructure:"debug" json:"debug"`
	MQTTServer   string        `mapstructure:"mqtt-server" json:"mqtt-server"`
	MQTTTopic    string        `mapstructure:"mqtt-topic" json:"mqtt-topic"`

	// Action flags select what to do; they are never read from a config file.
	On     string `mapstructure:"-" json:"-"`
	Off    string `mapstructure:"-" json:"-"`
	Reboot string `mapstructure:"-" json:"-"`
	Status string `mapstructure:"-" json:"-"`
}

// Request is a resolved action against one relay or all of them
type Request struct {
	Action   relay.Action
	Selector relay.Selector
}

// DefaultConfigFile returns the config file read when --config is not given
func DefaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, "npsctl", "npsctl.toml")
}

func defaults() map[string]any {
	return map[string]any{
		"port":         transport.DefaultTelnetPort,
		"password":     os.Getenv(PasswordEnvVar),
		"transport":    defaultTransport,
		"baud-rate":    transport.DefaultBaudRate,
		"timeout":      nps.DefaultTimeout,
		"dial-timeout": defaultDialTimeout,
		"relay-count":  relay.MaxRelay,
		"debug":        false,
		"mqtt-topic":   defaultMQTTTopic,
	}
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Port:        transport.DefaultTelnetPort,
		Transport:   defaultTransport,
		BaudRate:    transport.DefaultBaudRate,
		Timeout:     nps.DefaultTimeout,
		DialTimeout: defaultDialTimeout,
		RelayCount:  relay.MaxRelay,
		MQTTTopic:   defaultMQTTTopic,
	}
}

// AddFlags adds command-line flags for all configuration options
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", DefaultConfigFile(), "Config file to use")
	fs.StringVar(&c.Host, "host", c.Host, "Device address (host or host:port)")
	fs.IntVar(&c.Port, "port", c.Port, "Telnet port, used when --host does not include one")
	fs.StringVar(&c.Password, "password", "", "Device password (default $"+PasswordEnvVar+")")
	fs.StringVar(&c.Transport, "transport", c.Transport, "How to reach the device ("+strings.Join(transport.ListTransports(), ", ")+")")
	fs.StringVar(&c.SerialDevice, "serial-device", c.SerialDevice, "Serial port for the serial transport")
	fs.IntVar(&c.BaudRate, "baud-rate", c.BaudRate, "Serial port speed")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "How long to wait for the device prompt")
	fs.DurationVar(&c.DialTimeout, "dial-timeout", c.DialTimeout, "How long to wait for the connection")
	fs.IntVar(&c.RelayCount, "relay-count", c.RelayCount, "Number of relays covered by \"all\"")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Trace traffic to and from the device")
	fs.StringVar(&c.MQTTServer, "mqtt-server", c.MQTTServer, "Publish relay activity to this broker (mqtt://host:port)")
	fs.StringVar(&c.MQTTTopic, "mqtt-topic", c.MQTTTopic, "Topic prefix for published messages")

	fs.StringVar(&c.On, "on", "", "Turn on relay <n|all>")
	fs.StringVar(&c.Off, "off", "", "Turn off relay <n|all>")
	fs.StringVar(&c.Reboot, "reboot", "", "Reboot relay <n|all>")
	fs.StringVar(&c.Status, "status", "", "Show the state of relay <n|all>")
}

// LoadConfigWithFlagSet loads configuration with proper precedence using a custom flag set
func (c *Config) LoadConfigWithFlagSet(fs *pflag.FlagSet) error {
	if _, err := os.Stat(c.ConfigFile); c.ConfigFile != "" && os.IsNotExist(err) {
		if fs.Changed("config") {
			return fmt.Errorf("%w: config file not found: %s", ErrUsage, c.ConfigFile)
		}
		// A missing default config file is not an error.
		c.ConfigFile = ""
	}

	loader := config.NewConfigLoader()
	loader.SetConfigFile(c.ConfigFile)
	loader.SetDefaults(defaults())

	return loader.LoadConfigWithFlagSet(c, fs)
}

// LoadFile loads path on its own, rejecting keys npsctl does not know
func (c *Config) LoadFile(path string) error {
	c.ConfigFile = path

	loader := config.NewConfigLoader()
	loader.SetConfigFile(path)
	loader.SetDefaults(defaults())
	loader.SetStrictMode(true)

	return loader.LoadConfigWithFlagSet(c, pflag.NewFlagSet("npsctl", pflag.ContinueOnError))
}

// Validate checks the connection settings
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Transport,
			validation.Required,
			validation.In(lo.ToAnySlice(transport.ListTransports())...).Error(
				fmt.Sprintf("must be one of %v", transport.ListTransports()))),
		validation.Field(&c.Host,
			validation.When(c.Transport == "telnet", validation.Required)),
		validation.Field(&c.Port,
			validation.When(c.Transport == "telnet", validation.Required, validation.Max(65535))),
		validation.Field(&c.SerialDevice,
			validation.When(c.Transport == "serial", validation.Required)),
		validation.Field(&c.BaudRate,
			validation.When(c.Transport == "serial", validation.Required)),
		validation.Field(&c.RelayCount,
			validation.Required, validation.Min(relay.MinRelay), validation.Max(relay.MaxRelay)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.DialTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.MQTTServer, validation.By(func(value interface{}) error {
			if s, _ := value.(string); s != "" {
				return mqtt.ValidateServerURL(s)
			}
			return nil
		})),
		validation.Field(&c.MQTTTopic,
			validation.When(c.MQTTServer != "", validation.Required)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := transport.ValidateOptions(c.Transport, c.TransportOptions(zerolog.Nop())); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// TransportOptions describes how to reach the device
func (c *Config) TransportOptions(logger zerolog.Logger) transport.Options {
	opts := transport.Options{
		Device:      c.SerialDevice,
		BaudRate:    c.BaudRate,
		DialTimeout: c.DialTimeout,
		Logger:      logger,
	}
	if c.Host != "" {
		opts.Address = transport.TelnetAddress(c.Host, c.Port)
	}
	return opts
}

type actionFlag struct {
	name   string
	action relay.Action
	value  string
}

// Request resolves the action flags. Exactly one of them must be set.
func (c *Config) Request() (Request, error) {
	set := lo.Filter([]actionFlag{
		{"on", relay.ActionOn, c.On},
		{"off", relay.ActionOff, c.Off},
		{"reboot", relay.ActionReboot, c.Reboot},
		{"status", relay.ActionStatus, c.Status},
	}, func(f actionFlag, _ int) bool {
		return f.value != ""
	})

	switch len(set) {
	case 0:
		return Request{}, fmt.Errorf("%w: one of --on, --off, --reboot or --status is required", ErrUsage)
	case 1:
	default:
		return Request{}, fmt.Errorf("%w: only one of --on, --off, --reboot or --status may be given", ErrUsage)
	}

	sel, err := relay.ParseSelector(set[0].value)
	if err != nil {
		return Request{}, fmt.Errorf("--%s: %w", set[0].name, err)
	}

	return Request{Action: set[0].action, Selector: sel}, nil
}
