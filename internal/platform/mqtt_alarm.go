package platform

import (
	"encoding/json"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/attitude-estimator/internal/logging"
)

// alarmMessage is the wire shape published for each alarm change.
type alarmMessage struct {
	Name     string        `json:"name"`
	Severity AlarmSeverity `json:"severity"`
}

// MQTTAlarmSink publishes alarm transitions to an MQTT topic, the
// stand-in for the original's in-memory AlarmsSet/AlarmsClear calls.
// It only republishes on a severity change per alarm name, since the
// estimator calls SetAlarm every cycle.
type MQTTAlarmSink struct {
	client mqtt.Client
	topic  string

	mu   sync.Mutex
	last map[string]AlarmSeverity
}

// NewMQTTAlarmSink returns a sink publishing to topic on client.
func NewMQTTAlarmSink(client mqtt.Client, topic string) *MQTTAlarmSink {
	return &MQTTAlarmSink{client: client, topic: topic, last: make(map[string]AlarmSeverity)}
}

// SetAlarm implements AlarmSink.
func (s *MQTTAlarmSink) SetAlarm(name string, severity AlarmSeverity) {
	s.mu.Lock()
	if s.last[name] == severity {
		s.mu.Unlock()
		return
	}
	s.last[name] = severity
	s.mu.Unlock()

	payload, err := json.Marshal(alarmMessage{Name: name, Severity: severity})
	if err != nil {
		logging.Log.Error().Err(err).Msg("platform: encode alarm")
		return
	}
	token := s.client.Publish(s.topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		logging.Log.Error().Err(token.Error()).Str("topic", s.topic).Msg("platform: publish alarm")
	}
}
