// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/attitude-estimator/internal/config"
	"github.com/relabs-tech/attitude-estimator/internal/env"
	"github.com/relabs-tech/attitude-estimator/internal/estimator"
	"github.com/relabs-tech/attitude-estimator/internal/gps"
	imu_raw "github.com/relabs-tech/attitude-estimator/internal/imu"
	"github.com/relabs-tech/attitude-estimator/internal/platform"
)

// alarmMessage mirrors platform.MQTTAlarmSink's wire shape for decode
// on the subscriber side.
type alarmMessage struct {
	Name     string                  `json:"name"`
	Severity platform.AlarmSeverity `json:"severity"`
}

func RunWeb() error {
	cfg := config.Get()
	hub := newTelemetryHub()

	var (
		mu            sync.RWMutex
		lastAttitude  estimator.AttitudeActual
		haveAttitude  bool

		lastAttitudeRaw estimator.AttitudeRaw
		haveAttitudeRaw bool

		lastAlarm alarmMessage
		haveAlarm bool

		lastFix gps.Fix
		haveFix bool

		lastIMULeft  imu_raw.IMURaw
		haveIMULeft  bool
		lastIMURight imu_raw.IMURaw
		haveIMURight bool

		lastEnvLeft  env.Sample
		haveEnvLeft  bool
		lastEnvRight env.Sample
		haveEnvRight bool

		lastGPSSatellites struct {
			Satellites []gps.Satellite `json:"satellites"`
			Count      int             `json:"count"`
		}
		haveGPSSatellites bool

		lastGLONASSSatellites struct {
			Satellites []gps.Satellite `json:"satellites"`
			Count      int             `json:"count"`
		}
		haveGLONASSSatellites bool
	)

	// 1) Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to attitude actual (quaternion + Euler angles)
	attitudeToken := client.Subscribe(cfg.TopicAttitudeActual, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var a estimator.AttitudeActual
		if err := json.Unmarshal(msg.Payload(), &a); err != nil {
			log.Printf("web: attitude actual unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastAttitude = a
		haveAttitude = true
		mu.Unlock()
		hub.broadcast(a)
	})
	attitudeToken.Wait()
	if attitudeToken.Error() != nil {
		return attitudeToken.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicAttitudeActual)

	// 3) Subscribe to attitude raw (conditioned gyro/accel + fifo diagnostics)
	attitudeRawToken := client.Subscribe(cfg.TopicAttitudeRaw, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var r estimator.AttitudeRaw
		if err := json.Unmarshal(msg.Payload(), &r); err != nil {
			log.Printf("web: attitude raw unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastAttitudeRaw = r
		haveAttitudeRaw = true
		mu.Unlock()
	})
	attitudeRawToken.Wait()
	if attitudeRawToken.Error() != nil {
		return attitudeRawToken.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicAttitudeRaw)

	// 4) Subscribe to the attitude alarm
	alarmToken := client.Subscribe(cfg.TopicAttitudeAlarm, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var a alarmMessage
		if err := json.Unmarshal(msg.Payload(), &a); err != nil {
			log.Printf("web: attitude alarm unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastAlarm = a
		haveAlarm = true
		mu.Unlock()
	})
	alarmToken.Wait()
	if alarmToken.Error() != nil {
		return alarmToken.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicAttitudeAlarm)

	// 5) Subscribe to GPS
	// 5) Subscribe to GPS
	gpsToken := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("web: gps unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastFix = f
		haveFix = true
		mu.Unlock()
	})
	gpsToken.Wait()
	if gpsToken.Error() != nil {
		return gpsToken.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicGPS)

	// Subscribe to GPS satellites
	gpsSatToken := client.Subscribe(cfg.TopicGPSSatellites, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var satsData struct {
			Satellites []gps.Satellite `json:"satellites"`
			Count      int             `json:"count"`
		}
		if err := json.Unmarshal(msg.Payload(), &satsData); err != nil {
			log.Printf("web: gps satellites unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastGPSSatellites = satsData
		haveGPSSatellites = true
		mu.Unlock()
	})
	gpsSatToken.Wait()
	if gpsSatToken.Error() != nil {
		return gpsSatToken.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicGPSSatellites)

	// Subscribe to GLONASS satellites
	glonassSatToken := client.Subscribe(cfg.TopicGLONASSSatellites, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var satsData struct {
			Satellites []gps.Satellite `json:"satellites"`
			Count      int             `json:"count"`
		}
		if err := json.Unmarshal(msg.Payload(), &satsData); err != nil {
			log.Printf("web: glonass satellites unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastGLONASSSatellites = satsData
		haveGLONASSSatellites = true
		mu.Unlock()
	})
	glonassSatToken.Wait()
	if glonassSatToken.Error() != nil {
		return glonassSatToken.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicGLONASSSatellites)

	// Subscribe to IMU left
	imuLeftToken := client.Subscribe(cfg.TopicIMULeft, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s imu_raw.IMURaw
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: imu left unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastIMULeft = s
		haveIMULeft = true
		mu.Unlock()
	})
	imuLeftToken.Wait()
	if imuLeftToken.Error() != nil {
		return imuLeftToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicIMULeft)

	// Subscribe to IMU right
	imuRightToken := client.Subscribe(cfg.TopicIMURight, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s imu_raw.IMURaw
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: imu right unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastIMURight = s
		haveIMURight = true
		mu.Unlock()
	})
	imuRightToken.Wait()
	if imuRightToken.Error() != nil {
		return imuRightToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicIMURight)

	// Subscribe to BMP left
	envLeftToken := client.Subscribe(cfg.TopicBMPLeft, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s env.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: env left unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastEnvLeft = s
		haveEnvLeft = true
		mu.Unlock()
	})
	envLeftToken.Wait()
	if envLeftToken.Error() != nil {
		return envLeftToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicBMPLeft)

	// 4e) Subscribe to BMP right
	envRightToken := client.Subscribe(cfg.TopicBMPRight, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s env.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: env right unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastEnvRight = s
		haveEnvRight = true
		mu.Unlock()
	})
	envRightToken.Wait()
	if envRightToken.Error() != nil {
		return envRightToken.Error()
	}
	log.Printf("web: subscribed to %s", cfg.TopicBMPRight)

	// 5) JSON API: latest attitude (quaternion + Euler angles)
	http.HandleFunc("/api/attitude", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveAttitude {
			http.Error(w, "no attitude data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastAttitude); err != nil {
			log.Printf("web: attitude JSON encode error: %v", err)
		}
	})

	// 5b) JSON API: latest conditioned gyro/accel + fifo diagnostics
	http.HandleFunc("/api/attitude/raw", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveAttitudeRaw {
			http.Error(w, "no attitude raw data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastAttitudeRaw); err != nil {
			log.Printf("web: attitude raw JSON encode error: %v", err)
		}
	})

	// 5c) JSON API: latest attitude alarm
	http.HandleFunc("/api/attitude/alarm", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveAlarm {
			http.Error(w, "no attitude alarm data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastAlarm); err != nil {
			log.Printf("web: attitude alarm JSON encode error: %v", err)
		}
	})

	// 6) JSON API: latest GPS fix
	http.HandleFunc("/api/gps", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveFix {
			http.Error(w, "no gps data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastFix); err != nil {
			log.Printf("web: gps JSON encode error: %v", err)
		}
	})

	// 6a) JSON API: GPS satellites
	http.HandleFunc("/api/gps/satellites", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveGPSSatellites {
			http.Error(w, "no gps satellites data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastGPSSatellites); err != nil {
			log.Printf("web: gps satellites JSON encode error: %v", err)
		}
	})

	// 6a-2) JSON API: GLONASS satellites
	http.HandleFunc("/api/glonass/satellites", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveGLONASSSatellites {
			http.Error(w, "no glonass satellites data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastGLONASSSatellites); err != nil {
			log.Printf("web: glonass satellites JSON encode error: %v", err)
		}
	})

	// 6b) JSON API: latest IMU left/right

	http.HandleFunc("/api/imu/left", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()
		if !haveIMULeft {
			http.Error(w, "no left imu data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastIMULeft); err != nil {
			log.Printf("web: left imu JSON encode error: %v", err)
		}
	})

	http.HandleFunc("/api/imu/right", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()
		if !haveIMURight {
			http.Error(w, "no right imu data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastIMURight); err != nil {
			log.Printf("web: right imu JSON encode error: %v", err)
		}
	})

	http.HandleFunc("/api/env/left", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()
		if !haveEnvLeft {
			http.Error(w, "no left env data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastEnvLeft); err != nil {
			log.Printf("web: left env JSON encode error: %v", err)
		}
	})

	http.HandleFunc("/api/env/right", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()
		if !haveEnvRight {
			http.Error(w, "no right env data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastEnvRight); err != nil {
			log.Printf("web: right env JSON encode error: %v", err)
		}
	})

	// API endpoint for configuration
	http.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		configData := map[string]interface{}{
			"weather_update_interval_minutes": cfg.WeatherUpdateIntervalMinutes,
		}
		if err := json.NewEncoder(w).Encode(configData); err != nil {
			log.Printf("web: config JSON encode error: %v", err)
		}
	})

	// Live attitude telemetry WebSocket endpoint
	http.HandleFunc("/api/attitude/ws", hub.handle)

	// 7) Static UI from ./web
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
