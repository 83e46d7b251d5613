package mqtt

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const defaultConnectTimeout = 5 * time.Second

// Client publishes relay activity to an MQTT broker
type Client struct {
	client mqtt.Client
	logger zerolog.Logger
}

// Config holds MQTT client configuration
type Config struct {
	ServerURL      string
	ClientID       string
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

// RelayEvent is published whenever an action is sent to a relay
type RelayEvent struct {
	Relay     int    `json:"relay"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// ValidateServerURL checks that url names an MQTT broker
func ValidateServerURL(serverURL string) error {
	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid MQTT server URL: %w", err)
	}

	if parsedURL.Scheme != "mqtt" {
		return fmt.Errorf("MQTT server URL must use mqtt:// scheme")
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("MQTT server URL must include a host")
	}

	return nil
}

// NewClient connects to the broker and waits for the connection to be
// established. Callers are short-lived, so there is no background retry.
func NewClient(config Config) (*Client, error) {
	if err := ValidateServerURL(config.ServerURL); err != nil {
		return nil, err
	}

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.ServerURL)
	opts.SetClientID(config.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(timeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker at %s", config.ServerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker at %s: %w", config.ServerURL, err)
	}

	config.Logger.Debug().Str("server", config.ServerURL).Msg("connected to MQTT broker")
	return &Client{client: client, logger: config.Logger}, nil
}

// Publish publishes a message to the specified topic
func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	if token := c.client.Publish(topic, qos, retained, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish MQTT message: %w", token.Error())
	}

	c.logger.Debug().Str("topic", topic).Msg("published MQTT message")
	return nil
}

// StateTopic is where the last known state of a relay is retained
func StateTopic(prefix string, relay int) string {
	return fmt.Sprintf("%s/relay/%d/state", prefix, relay)
}

// EventTopic is where actions sent to a relay are announced
func EventTopic(prefix string, relay int) string {
	return fmt.Sprintf("%s/relay/%d/event", prefix, relay)
}

// PublishRelayState publishes a relay's state as a retained message
func (c *Client) PublishRelayState(prefix string, relay int, state string) error {
	return c.Publish(StateTopic(prefix, relay), 1, true, state)
}

// PublishRelayEvent announces that action was sent to relay
func (c *Client) PublishRelayEvent(prefix string, relay int, action string) error {
	event := RelayEvent{
		Relay:     relay,
		Action:    action,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	return c.Publish(EventTopic(prefix, relay), 0, false, eventJSON)
}

// IsConnected returns true if the client is connected to the MQTT broker
func (c *Client) IsConnected() bool {
	return c != nil && c.client != nil && c.client.IsConnected()
}

// Disconnect disconnects from the MQTT broker
func (c *Client) Disconnect(quiesce uint) {
	if c.IsConnected() {
		c.client.Disconnect(quiesce)
		c.logger.Debug().Msg("disconnected from MQTT broker")
	}
}
