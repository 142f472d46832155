// Package settingsbus adapts the MQTT retained-message pattern used
// elsewhere in this repo into the "broadcast object with change
// callback" framework the attitude module expects for its settings
// object (§1, §4.4, §6).
package settingsbus

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/relabs-tech/attitude-estimator/internal/attitude"
	"github.com/relabs-tech/attitude-estimator/internal/logging"
)

// Subscribe registers a handler on topic that decodes each retained
// message as an attitude.Settings snapshot and installs it into store.
// Every Set invokes store's subscribers, mirroring
// AttitudeSettingsConnectCallback being invoked by the original's
// UAVObject broadcast dispatcher on a separate thread from the
// estimator.
func Subscribe(client mqtt.Client, topic string, store *attitude.Store) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s attitude.Settings
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			logging.Log.Error().Err(err).Str("topic", topic).Msg("settingsbus: decode attitude settings")
			return
		}
		store.Set(s)
	})
	token.Wait()
	if token.Error() != nil {
		return errors.Wrap(token.Error(), "settingsbus: subscribe")
	}
	return nil
}

// Publish writes settings to topic as a retained message, the
// mechanism by which an operator console changes gains at runtime.
func Publish(client mqtt.Client, topic string, settings attitude.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "settingsbus: encode attitude settings")
	}
	token := client.Publish(topic, 0, true, payload)
	token.Wait()
	if token.Error() != nil {
		return errors.Wrap(token.Error(), "settingsbus: publish")
	}
	return nil
}
