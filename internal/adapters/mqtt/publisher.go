package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/bft-labs/ledship/internal/ports"
)

// Connection defaults.
const (
	DefaultQoS                  = 1
	DefaultConnectRetryInterval = 5 * time.Second
	DefaultMaxReconnectInterval = 10 * time.Second
	DefaultPublishTimeout       = 5 * time.Second
	disconnectQuiesceMillis     = 250
)

// Config holds the broker connection settings.
type Config struct {
	URL      string
	ClientID string
	User     string
	Password string
	QoS      byte
}

// client is the subset of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// Publisher implements ports.Publisher on top of the paho MQTT client.
// The client reconnects on its own; Publish only waits for delivery.
type Publisher struct {
	client client
	qos    byte
	url    string
	logger ports.Logger
}

// NewPublisher creates a publisher for cfg. Call Connect before publishing.
// An empty ClientID becomes "ledship-<uuid>".
func NewPublisher(cfg Config, logger ports.Logger) *Publisher {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "ledship-" + uuid.NewString()
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(clientID).
		SetUsername(cfg.User).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(DefaultConnectRetryInterval).
		SetMaxReconnectInterval(DefaultMaxReconnectInterval).
		SetOnConnectHandler(func(paho.Client) {
			logger.Info("mqtt connected", ports.String("broker", cfg.URL), ports.String("client_id", clientID))
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", ports.String("broker", cfg.URL), ports.Err(err))
		}).
		SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
			logger.Debug("mqtt reconnecting", ports.String("broker", cfg.URL))
		})

	return newPublisher(paho.NewClient(opts), cfg.QoS, cfg.URL, logger)
}

func newPublisher(c client, qos byte, url string, logger ports.Logger) *Publisher {
	return &Publisher{client: c, qos: qos, url: url, logger: logger}
}

// Connect starts the connection. It returns once the broker accepted the
// connection or ctx is done; in the latter case the client keeps retrying
// in the background.
func (p *Publisher) Connect(ctx context.Context) error {
	if err := wait(ctx, p.client.Connect()); err != nil {
		return fmt.Errorf("connect to %s: %w", p.url, err)
	}
	return nil
}

// Publish sends payload to topic and waits for the client to finish with it.
// Without a ctx deadline the wait is bounded by DefaultPublishTimeout, since
// paho holds QoS>0 messages while it reconnects.
func (p *Publisher) Publish(ctx context.Context, topic, payload string) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPublishTimeout)
		defer cancel()
	}
	return wait(ctx, p.client.Publish(topic, p.qos, false, payload))
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect(disconnectQuiesceMillis)
	return nil
}

// Connected reports whether the client currently has a broker connection.
func (p *Publisher) Connected() bool {
	return p.client.IsConnected()
}

func wait(ctx context.Context, t paho.Token) error {
	select {
	case <-t.Done():
		return t.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
