package ledship

import (
	"github.com/bft-labs/ledship/internal/ports"
	"github.com/bft-labs/ledship/pkg/log"
)

// Logger is the interface for structured logging.
type Logger = log.Logger

// LogField represents a structured log field.
type LogField = log.Field

// Transport ports that can be replaced with WithFrameSource, WithPublisher
// and WithDatagramSender.
type (
	FrameSource    = ports.FrameSource
	Publisher      = ports.Publisher
	DatagramSender = ports.DatagramSender
)

// Option configures optional behavior of Ledship.
type Option func(*options)

type options struct {
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin
	source       FrameSource
	publisher    Publisher
	sender       DatagramSender
}

func defaultOptions() options {
	return options{logger: log.NewNoopLogger()}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventHandler sets a handler for bridge events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the bridge starts.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithFrameSource replaces the UDP receiver. The source is closed on Stop.
func WithFrameSource(source FrameSource) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithPublisher replaces the MQTT client used for text devices.
func WithPublisher(publisher Publisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

// WithDatagramSender replaces the UDP socket used for WLED devices.
func WithDatagramSender(sender DatagramSender) Option {
	return func(o *options) {
		o.sender = sender
	}
}
