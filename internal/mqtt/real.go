package mqtt

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/brew-monitor/internal/logic"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int

	// OnConnectionChange, if set, is called from the paho goroutine
	// whenever the connection goes up or down.
	OnConnectionChange func(connected bool)
}

// Handler receives the payload of a subscribed message.
type Handler func(payload []byte)

// RealPublisher publishes to an actual MQTT broker.
// Events and system messages sent while offline are buffered and replayed
// in order on reconnect.
type RealPublisher struct {
	client   paho.Client
	onChange func(bool)

	mu            sync.Mutex
	buf           *ringBuffer
	handlers      map[string]Handler
	connectedOnce bool
}

// NewRealPublisher creates a publisher for the given broker.
// If the broker is not reachable within the connect timeout the publisher
// is still returned; paho keeps retrying in the background.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("no broker configured")
	}

	p := &RealPublisher{
		onChange: opts.OnConnectionChange,
		buf:      newRingBuffer(opts.BufferSize),
		handlers: make(map[string]Handler),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetMaxReconnectInterval(30*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(clientOpts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Printf("mqtt: broker %s not reachable yet, retrying in background", opts.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.connectedOnce
	p.connectedOnce = true
	pending := p.buf.drainAll()
	handlers := make(map[string]Handler, len(p.handlers))
	for topic, h := range p.handlers {
		handlers[topic] = h
	}
	p.mu.Unlock()

	log.Printf("mqtt: connected (reconnect=%v, replaying %d buffered)", reconnect, len(pending))

	for topic, h := range handlers {
		p.subscribe(c, topic, h)
	}

	for _, msg := range pending {
		token := c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
		if token.WaitTimeout(publishTimeout) && token.Error() != nil {
			log.Printf("mqtt: replay to %s failed: %v", msg.topic, token.Error())
		}
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		c.Publish(TopicSystem, 1, false, payload)
	}

	if p.onChange != nil {
		p.onChange(true)
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	log.Printf("mqtt: connection lost: %v", err)
	if p.onChange != nil {
		p.onChange(false)
	}
}

func (p *RealPublisher) subscribe(c paho.Client, topic string, h Handler) {
	token := c.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		h(msg.Payload())
	})
	if !token.WaitTimeout(publishTimeout) {
		log.Printf("mqtt: subscribe %s timed out", topic)
		return
	}
	if err := token.Error(); err != nil {
		log.Printf("mqtt: subscribe %s: %v", topic, err)
	}
}

// Subscribe registers h for topic. Subscriptions survive reconnects.
func (p *RealPublisher) Subscribe(topic string, h Handler) {
	p.mu.Lock()
	p.handlers[topic] = h
	p.mu.Unlock()

	if p.client.IsConnectionOpen() {
		p.subscribe(p.client, topic, h)
	}
}

// IsConnected reports whether the broker connection is currently open.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for replay.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Dropped returns the number of buffered messages lost to overflow.
func (p *RealPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.dropped
}

// publish sends immediately when connected, otherwise buffers for replay.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishState sends a live state update. Dropped while disconnected.
func (p *RealPublisher) PublishState(state logic.State) error {
	if !p.client.IsConnectionOpen() {
		return nil
	}
	payload, err := FormatStatePayload(state)
	if err != nil {
		return fmt.Errorf("format state: %w", err)
	}
	// QoS 0 (at-most-once), not retained; the next tick supersedes it
	p.client.Publish(TopicState, 0, false, payload)
	return nil
}

// Publish sends a shot event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(TopicEvents, 1, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// PublishCommand sends an override command to the paddle controller.
func (p *RealPublisher) PublishCommand(value string) error {
	cmd, err := FormatCommand(value)
	if err != nil {
		return err
	}
	return p.sendCommand(TopicPaddleCmd, cmd)
}

// SetMode switches the paddle controller between AUTO and MANUAL.
func (p *RealPublisher) SetMode(mode string) error {
	m, err := FormatMode(mode)
	if err != nil {
		return err
	}
	return p.sendCommand(TopicPaddleModeSet, m)
}

// sendCommand publishes a controller command. Commands are never buffered.
func (p *RealPublisher) sendCommand(topic, payload string) error {
	if !p.client.IsConnectionOpen() {
		return fmt.Errorf("publish %s: not connected", topic)
	}
	token := p.client.Publish(topic, 1, false, []byte(payload))
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	return token.Error()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
