package flightstatus

import (
	"encoding/json"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/relabs-tech/attitude-estimator/internal/logging"
)

type wireStatus struct {
	Armed string `json:"armed"`
}

// Subscribe tracks the flight-status topic and keeps status updated as
// messages arrive, mirroring the original's FlightStatus UAVObject.
func Subscribe(client mqtt.Client, topic string, status *Status) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var w wireStatus
		if err := json.Unmarshal(msg.Payload(), &w); err != nil {
			logging.Log.Error().Err(err).Str("topic", topic).Msg("flightstatus: decode")
			return
		}
		switch w.Armed {
		case "arming":
			status.Set(ArmedArming)
		case "armed":
			status.Set(ArmedArmed)
		default:
			status.Set(ArmedDisarmed)
		}
	})
	token.Wait()
	if token.Error() != nil {
		return errors.Wrap(token.Error(), "flightstatus: subscribe")
	}
	return nil
}
