package mqtt

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/gate-controller/internal/logic"
)

// DefaultClientID is used when the wiring file names none.
const DefaultClientID = "gate-controller"

// BufferSize is how many messages are held while the broker is unreachable.
const BufferSize = 100

const publishTimeout = 5 * time.Second

// RealPublisher publishes to an actual MQTT broker. It never blocks the
// caller on connecting: messages published while disconnected are held in
// a ring buffer and replayed once the connection comes up.
type RealPublisher struct {
	client paho.Client

	mu        sync.Mutex
	buf       *ringBuffer
	connected bool // at least once, so later connects are reconnections
	now       func() time.Time
}

// NewRealPublisher starts connecting to broker in the background and
// returns immediately. A retained SHUTDOWN/MQTT_DISCONNECT will is
// registered so subscribers learn when the controller vanishes.
func NewRealPublisher(broker, clientID string) (*RealPublisher, error) {
	if broker == "" {
		return nil, errors.New("no broker configured")
	}
	if clientID == "" {
		clientID = DefaultClientID
	}

	paho.ERROR = log.New(os.Stderr, "[mqtt error] ", 0)
	paho.CRITICAL = log.New(os.Stderr, "[mqtt crit] ", 0)
	paho.WARN = log.New(os.Stderr, "[mqtt warn] ", 0)

	p := &RealPublisher{
		buf: newRingBuffer(BufferSize),
		now: time.Now,
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: p.now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetKeepAlive(60*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	log.Printf("mqtt: connecting to %s as %s", broker, clientID)
	return p, nil
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends a state transition, QoS 0, not retained.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicEvents, payload: payload})
}

// PublishSystem sends a system lifecycle event, QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// send holds p.mu across the connection check and the hand-off to paho so
// a reconnect cannot replay the buffer in between. A publish refused
// because the link dropped meanwhile is buffered like an offline one.
func (p *RealPublisher) send(msg bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	select {
	case <-token.Done():
		if errors.Is(token.Error(), paho.ErrNotConnected) {
			p.buf.push(msg)
			p.mu.Unlock()
			return nil
		}
	default:
	}
	p.mu.Unlock()

	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		if errors.Is(err, paho.ErrNotConnected) {
			p.mu.Lock()
			p.buf.push(msg)
			p.mu.Unlock()
			return nil
		}
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// handleConnect runs on paho's goroutine after every successful connect.
// It announces a reconnection and replays what was held while offline.
func (p *RealPublisher) handleConnect(c paho.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
		if err == nil {
			c.Publish(TopicSystem, 1, false, payload)
		}
	}
	p.connected = true

	msgs, dropped := p.buf.drain()
	if len(msgs) > 0 || dropped > 0 {
		log.Printf("mqtt: connected, replaying %d messages (%d dropped while offline)", len(msgs), dropped)
	} else {
		log.Printf("mqtt: connected")
	}
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// Close disconnects from the broker, allowing a second for in-flight messages.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
