package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/attitude-estimator/internal/config"
	"github.com/relabs-tech/attitude-estimator/internal/estimator"
	"github.com/relabs-tech/attitude-estimator/internal/platform"
)

// RunConsole subscribes to the attitude/alarm MQTT topics and prints
// every update to stdout, a bare stand-in for a ground-station display.
func RunConsole() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicAttitudeActual, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var a estimator.AttitudeActual
		if err := json.Unmarshal(msg.Payload(), &a); err != nil {
			log.Printf("attitude payload unmarshal error: %v", err)
			return
		}
		fmt.Printf("ROLL=%7.2f  PITCH=%7.2f  YAW=%7.2f\n", a.Roll, a.Pitch, a.Yaw)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	token = client.Subscribe(cfg.TopicAttitudeAlarm, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var alarm struct {
			Name     string                  `json:"name"`
			Severity platform.AlarmSeverity `json:"severity"`
		}
		if err := json.Unmarshal(msg.Payload(), &alarm); err != nil {
			log.Printf("alarm payload unmarshal error: %v", err)
			return
		}
		fmt.Printf("ALARM %s = %s\n", alarm.Name, alarm.Severity)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	log.Printf("console subscribed to %s and %s", cfg.TopicAttitudeActual, cfg.TopicAttitudeAlarm)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console shutting down")
	client.Disconnect(250)
	return nil
}
