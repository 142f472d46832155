package main

import (
	"log"

	"github.com/relabs-tech/attitude-estimator/internal/app"
	"github.com/relabs-tech/attitude-estimator/internal/config"
)

func main() {
	log.Println("starting inertial-computer GPS producer (NMEA → MQTT)")

	if err := config.InitGlobal("inertial_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunGPSProducer(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
