// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/attitude_computer/internal/ahrs"
	"github.com/relabs-tech/attitude_computer/internal/config"
	"github.com/relabs-tech/attitude_computer/internal/irq"
	"github.com/relabs-tech/attitude_computer/internal/mpu"
)

// AttitudeMessage is the fused attitude payload published on TOPIC_ATTITUDE.
// Angles are in degrees.
type AttitudeMessage struct {
	TimestampMicros int64      `json:"timestamp_us"`
	Roll            float64    `json:"roll"`
	Pitch           float64    `json:"pitch"`
	Yaw             float64    `json:"yaw"`
	Heading         float64    `json:"heading"`
	Quat            [4]float64 `json:"quat"`
}

// RawMessage is the sensor payload published on TOPIC_RAW.
type RawMessage struct {
	TimestampMicros int64      `json:"timestamp_us"`
	Accel           [3]float64 `json:"accel_ms2"`
	Gyro            [3]float64 `json:"gyro_degs"`
	Mag             [3]float64 `json:"mag_ut"`
}

func attitudeMessage(s *mpu.Sample) AttitudeMessage {
	return AttitudeMessage{
		TimestampMicros: s.TimestampMicros,
		Roll:            s.FusedTaitBryan[ahrs.TBRollY] * 180 / math.Pi,
		Pitch:           s.FusedTaitBryan[ahrs.TBPitchX] * 180 / math.Pi,
		Yaw:             s.FusedTaitBryan[ahrs.TBYawZ] * 180 / math.Pi,
		Heading:         s.CompassHeading * 180 / math.Pi,
		Quat:            s.FusedQuat,
	}
}

// RunAttitudeProducer brings the DMP up and publishes every fused sample to
// MQTT until SIGINT or SIGTERM.
func RunAttitudeProducer() error {
	cfg := config.Get()

	dev, b, err := openDevice(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	edge, err := irq.OpenFallingEdge(cfg.InterruptPin)
	if err != nil {
		return err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// the sampler callback runs on the real-time thread, so publishing is
	// handed off through a channel and dropped rather than blocking
	samples := make(chan *mpu.Sample, 8)
	dev.OnSample(func(s *mpu.Sample) {
		select {
		case samples <- s:
		default:
		}
	})

	if err := dev.InitDMP(edge); err != nil {
		return err
	}
	log.Printf("dmp streaming at %d Hz, publishing to %s", cfg.IMUSampleRate, cfg.TopicAttitude)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range samples {
			payload, err := json.Marshal(attitudeMessage(s))
			if err != nil {
				log.Printf("WARNING: attitude marshal: %v", err)
				continue
			}
			if token := client.Publish(cfg.TopicAttitude, 0, true, payload); token.Wait() && token.Error() != nil {
				log.Printf("WARNING: MQTT publish: %v", token.Error())
				continue
			}

			if cfg.TopicRaw == "" {
				continue
			}
			raw := RawMessage{
				TimestampMicros: s.TimestampMicros,
				Accel:           s.Accel,
				Gyro:            s.Gyro,
				Mag:             s.Mag,
			}
			if payload, err := json.Marshal(raw); err == nil {
				client.Publish(cfg.TopicRaw, 0, true, payload)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down")
	dev.OnSample(nil)
	if err := dev.PowerOff(); err != nil {
		log.Printf("WARNING: power off: %v", err)
	}
	close(samples)
	<-done
	return nil
}
