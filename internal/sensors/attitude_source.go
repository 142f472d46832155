// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"sync"
	"time"

	"github.com/relabs-tech/attitude-estimator/internal/attitude"
)

// fifoCapacity bounds the accelerometer ring buffer. The estimator only
// ever drains up to 32 entries per cycle (§6); a deeper buffer just
// absorbs scheduling jitter between the poller and the estimator task.
const fifoCapacity = 64

// AttitudeSource polls an IMURawReader on its own goroutine and exposes
// the result as the one-slot gyro queue and draining accelerometer FIFO
// the estimator expects (attitude.GyroQueue / attitude.AccelFIFO). The
// MPU9250 driver underneath is register-polled rather than
// interrupt/DMA-driven, so a background goroutine stands in for the
// hardware FIFO and one-slot queue described in §6.
type AttitudeSource struct {
	reader IMURawReader

	gyroMu     sync.Mutex
	gyroSample attitude.GyroSample
	gyroValid  bool

	accelMu  sync.Mutex
	accelBuf [fifoCapacity][3]int16
	head     int
	count    int

	stop chan struct{}
}

// NewAttitudeSource starts polling reader at the given period and
// returns the adapter immediately; Close stops the poller.
func NewAttitudeSource(reader IMURawReader, period time.Duration) *AttitudeSource {
	s := &AttitudeSource{reader: reader, stop: make(chan struct{})}
	go s.pollLoop(period)
	return s
}

func (s *AttitudeSource) pollLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			raw, err := s.reader.ReadRaw()
			if err != nil {
				continue
			}

			s.gyroMu.Lock()
			s.gyroSample = attitude.GyroSample{
				RawX: float64(raw.Gx),
				RawY: float64(raw.Gy),
				RawZ: float64(raw.Gz),
			}
			s.gyroValid = true
			s.gyroMu.Unlock()

			s.accelMu.Lock()
			idx := (s.head + s.count) % fifoCapacity
			if s.count == fifoCapacity {
				// Drop oldest; the estimator didn't keep up.
				s.head = (s.head + 1) % fifoCapacity
			} else {
				s.count++
			}
			s.accelBuf[idx] = [3]int16{raw.Ax, raw.Ay, raw.Az}
			s.accelMu.Unlock()
		}
	}
}

// Close stops the poller goroutine.
func (s *AttitudeSource) Close() {
	close(s.stop)
}

// Receive implements attitude.GyroQueue.
func (s *AttitudeSource) Receive(timeout time.Duration) (attitude.GyroSample, error) {
	deadline := time.Now().Add(timeout)
	for {
		s.gyroMu.Lock()
		if s.gyroValid {
			sample := s.gyroSample
			s.gyroValid = false
			s.gyroMu.Unlock()
			return sample, nil
		}
		s.gyroMu.Unlock()

		if time.Now().After(deadline) {
			return attitude.GyroSample{}, attitude.ErrSensorTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

// FIFOElements implements attitude.AccelFIFO.
func (s *AttitudeSource) FIFOElements() int {
	s.accelMu.Lock()
	defer s.accelMu.Unlock()
	return s.count
}

// Read implements attitude.AccelFIFO.
func (s *AttitudeSource) Read() (x, y, z int16, remaining int, err error) {
	s.accelMu.Lock()
	defer s.accelMu.Unlock()

	if s.count == 0 {
		return 0, 0, 0, 0, attitude.ErrAccelEmpty
	}

	sample := s.accelBuf[s.head]
	s.head = (s.head + 1) % fifoCapacity
	s.count--

	return sample[0], sample[1], sample[2], s.count, nil
}
