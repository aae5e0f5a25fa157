package courier

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// EventPublisher mirrors every appended event onto an MQTT broker, so
// external auditors can follow the log in real time without polling
// the HTTP surface. Topics are courier/events/<kind>.
type EventPublisher struct {
	client mqtt.Client
	cancel func()
}

// NewEventPublisher configures (but does not connect) an MQTT client.
func NewEventPublisher(host, user, pass, clientID string) *EventPublisher {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(host)
	opts.SetClientID(clientID)
	opts.SetUsername(user)
	opts.SetPassword(pass)
	opts.OnConnect = func(client mqtt.Client) {
		logrus.Println("Connected to MQTT")
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logrus.Printf("MQTT Connection lost: %v", err)
	}
	return &EventPublisher{client: mqtt.NewClient(opts)}
}

// Run connects and streams the log's future events to the broker until
// Stop is called.
func (p *EventPublisher) Run(log *EventLog) error {
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	events, cancel := log.Subscribe(256)
	p.cancel = cancel

	go func() {
		for e := range events {
			p.publish(e)
		}
	}()
	return nil
}

func (p *EventPublisher) publish(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		logrus.WithError(err).Warn("Failed to marshal event for MQTT")
		return
	}
	topic := "courier/events/" + e.Kind
	if token := p.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		logrus.Debugf("📡 failed to publish event %s: %v", e.ID, token.Error())
	}
}

// Stop unsubscribes from the log and disconnects from the broker.
func (p *EventPublisher) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.client.Disconnect(250)
}
