package estimator

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/attitude-estimator/internal/logging"
)

// MQTTPublisher publishes each cycle's AttitudeRaw/AttitudeActual as
// retained MQTT messages, the same pattern the teacher producer uses
// for its pose/IMU topics.
type MQTTPublisher struct {
	Client     mqtt.Client
	RawTopic   string
	ActualTopic string
}

// PublishRaw implements Publisher.
func (p *MQTTPublisher) PublishRaw(r AttitudeRaw) {
	payload, err := json.Marshal(r)
	if err != nil {
		logging.Log.Error().Err(err).Msg("estimator: encode attitude raw")
		return
	}
	if token := p.Client.Publish(p.RawTopic, 0, true, payload); token.Wait() && token.Error() != nil {
		logging.Log.Error().Err(token.Error()).Str("topic", p.RawTopic).Msg("estimator: publish attitude raw")
	}
}

// PublishActual implements Publisher.
func (p *MQTTPublisher) PublishActual(a AttitudeActual) {
	payload, err := json.Marshal(a)
	if err != nil {
		logging.Log.Error().Err(err).Msg("estimator: encode attitude actual")
		return
	}
	if token := p.Client.Publish(p.ActualTopic, 0, true, payload); token.Wait() && token.Error() != nil {
		logging.Log.Error().Err(token.Error()).Str("topic", p.ActualTopic).Msg("estimator: publish attitude actual")
	}
}
