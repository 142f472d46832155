// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/attitude-estimator/internal/app"
	"github.com/relabs-tech/attitude-estimator/internal/config"
)

func main() {
	log.Println("starting attitude estimator")

	if err := config.InitGlobal("inertial_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunAttitudeEstimator(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
