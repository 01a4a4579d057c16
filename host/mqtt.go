package host

import (
	"encoding/json"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTPublisher relays every Firehose Event to an MQTT broker topic,
// an alternative transport to the websocket firehose for a deployment
// where subscribers are other services rather than a browser.
type MQTTPublisher struct {
	client mqtt.Client
	topic  string
}

// DialMQTT connects to broker and returns a publisher that will
// publish to topic.
func DialMQTT(broker, topic, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &MQTTPublisher{client: client, topic: topic}, nil
}

// Run subscribes to fh and publishes every Event until ch is closed.
func (p *MQTTPublisher) Run(fh *Firehose) {
	ch := fh.Subscribe()
	for event := range ch {
		bs, err := json.Marshal(event)
		if err != nil {
			continue
		}
		token := p.client.Publish(p.topic, 0, false, bs)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Println("host: mqtt publish:", err)
		}
	}
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
