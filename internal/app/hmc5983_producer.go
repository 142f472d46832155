// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/attitude-estimator/internal/config"
	"github.com/relabs-tech/attitude-estimator/internal/logging"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"periph.io/x/devices/v3/hmc5983"
)

// hmcPayload is the JSON schema we publish.
// mx,my,mz are in µT×10 (int16) to match project conventions.
// norm is optional magnitude in µT.
// time is RFC3339.
type hmcPayload struct {
	Mx   int16   `json:"mx"`
	My   int16   `json:"my"`
	Mz   int16   `json:"mz"`
	Norm float64 `json:"norm"`
	Time string  `json:"time"`
}

func RunHMC5983Producer() {
	// Load config.
	if err := config.InitGlobal("./inertial_config.txt"); err != nil {
		logging.Log.Error().Err(err).Msg("hmc: config init failed")
		return
	}
	cfg := config.Get()

	// Initialize periph host.
	if _, err := host.Init(); err != nil {
		logging.Log.Error().Err(err).Msg("hmc: periph host init failed")
		return
	}

	// Open I2C bus.
	busName := fmt.Sprintf("%d", cfg.HMCI2CBus)
	if busName == "0" || busName == "" {
		busName = "1"
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		logging.Log.Error().Err(err).Str("bus", busName).Msg("hmc: i2c open failed")
		return
	}
	defer bus.Close()

	// Parse HMC options from config file lines (simple helper reads env-like via config file not exposed here).
	addr := cfg.HMCI2CAddr
	if addr == 0 { addr = 0x1E }
	odr := cfg.HMCODRHz
	if odr == 0 { odr = 15 }
	avg := cfg.HMCAvgSamples
	if avg == 0 { avg = 1 }
	gain := cfg.HMCGainCode
	mode := cfg.HMCMode
	if mode == "" { mode = "continuous" }
	// Create device.
	dev, err := hmc5983.New(bus, hmc5983.Opts{Addr: addr, ODRHz: odr, AvgSamples: avg, GainCode: gain, Mode: mode})
	if err != nil {
		logging.Log.Error().Err(err).Msg("hmc: init failed")
		return
	}
	ida, idb, idc, _ := dev.ID()
	logging.Log.Info().Str("id_a", ida).Str("id_b", idb).Str("id_c", idc).
		Str("addr", fmt.Sprintf("0x%X", addr)).Msg("hmc: device identified")

	// MQTT client.
	clientID := cfg.MQTTClientIDHMC
	if clientID == "" {
		clientID = "inertial-hmc-producer"
	}
	opts := mqtt.NewClientOptions().AddBroker(cfg.MQTTBroker).SetClientID(clientID)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		logging.Log.Error().Err(token.Error()).Msg("hmc: mqtt connect error")
		return
	}
	defer client.Disconnect(250)

	topic := cfg.TopicMagHMC
	if topic == "" {
		topic = "inertial/mag/hmc"
	}

	ms := cfg.HMCSampleInterval
	if ms <= 0 { ms = 100 }
	interval := time.Duration(ms) * time.Millisecond
	// Start loop.
	logging.Log.Info().Msg("hmc: producer started")
	for {
		x, y, z, err := dev.Sense()
		if err != nil {
			logging.Log.Error().Err(err).Msg("hmc: read error")
			time.Sleep(interval)
			continue
		}
		// Compute magnitude in µT (float).
		mx := float64(x) / 10.0
		my := float64(y) / 10.0
		mz := float64(z) / 10.0
		norm := (mx*mx + my*my + mz*mz)
		norm = sqrt(norm)
		payload := hmcPayload{Mx: x, My: y, Mz: z, Norm: norm, Time: time.Now().UTC().Format(time.RFC3339)}
		b, _ := json.Marshal(payload)
		t := client.Publish(topic, 0, false, b)
		t.Wait()
		// brief sleep
		time.Sleep(interval)
	}
}

func sqrt(x float64) float64 {
	// Simple Newton method for sqrt to avoid extra deps.
	if x <= 0 {
		return 0
	}
	z := x
	for i := 0; i < 10; i++ {
		z = 0.5 * (z + x/z)
	}
	return z
}
