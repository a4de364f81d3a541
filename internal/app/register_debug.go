// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/attitude_computer/internal/bus"
	"github.com/relabs-tech/attitude_computer/internal/config"
	"github.com/relabs-tech/attitude_computer/internal/mpu"
)

// registerDebugSession serves one websocket client of the register
// inspection tool.
type registerDebugSession struct {
	conn *websocket.Conn
	bus  bus.Bus
}

// registerResponse is the single response envelope for all actions.
type registerResponse struct {
	Type        string            `json:"type"` // "register_data", "register_map", "error"
	Device      string            `json:"device,omitempty"`
	Address     string            `json:"addr,omitempty"`
	Value       string            `json:"value,omitempty"`
	Registers   map[string]string `json:"registers,omitempty"`
	Timestamp   string            `json:"timestamp,omitempty"`
	Message     string            `json:"message,omitempty"`
	RegisterMap []RegisterInfo    `json:"register_map,omitempty"`
}

// RunRegisterDebug opens the I2C bus and serves the register inspection
// websocket plus the static debug page. The sensor is left in whatever state
// it is in; this tool is for looking at a live system.
func RunRegisterDebug() error {
	cfg := config.Get()

	b, err := bus.Open(cfg.I2CBus)
	if err != nil {
		return fmt.Errorf("open i2c bus %q: %w", cfg.I2CBus, err)
	}
	defer b.Close()

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("register_debug: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		s := &registerDebugSession{conn: conn, bus: b}
		if err := s.sendRegisterMap("mpu9250"); err != nil {
			log.Printf("register_debug: sending register map: %v", err)
			return
		}
		s.loop()
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/register_debug.html")
	})

	addr := fmt.Sprintf(":%d", cfg.RegisterDebugPort)
	log.Printf("register debug tool listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}

func (s *registerDebugSession) loop() {
	for {
		var msg map[string]interface{}
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			return
		}

		action, _ := msg["action"].(string)
		switch action {
		case "get_map":
			s.sendRegisterMap(deviceField(msg))
		case "read":
			s.handleRead(msg)
		case "read_all":
			s.handleReadAll(msg)
		case "write":
			s.handleWrite(msg)
		default:
			s.sendError(fmt.Sprintf("unknown action: %q", action))
		}
	}
}

func deviceField(msg map[string]interface{}) string {
	device, _ := msg["device"].(string)
	if device == "" {
		device = "mpu9250"
	}
	return device
}

// deviceAddr maps the device name to its bus address and register map.
func deviceAddr(device string) (uint16, []RegisterInfo, error) {
	switch device {
	case "mpu9250":
		return mpu.DefaultAddr, mpu9250RegisterMap(), nil
	case "ak8963":
		return mpu.MagAddr, ak8963RegisterMap(), nil
	}
	return 0, nil, fmt.Errorf("unknown device %q", device)
}

func (s *registerDebugSession) handleRead(msg map[string]interface{}) {
	device := deviceField(msg)
	addrStr, _ := msg["addr"].(string)
	if addrStr == "" {
		s.sendError("missing addr field")
		return
	}
	busAddr, _, err := deviceAddr(device)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	var reg byte
	if _, err := fmt.Sscanf(addrStr, "0x%X", &reg); err != nil {
		s.sendError(fmt.Sprintf("invalid address format: %q", addrStr))
		return
	}

	s.bus.Claim()
	value, err := s.bus.ReadByte(busAddr, reg)
	s.bus.Release()
	if err != nil {
		s.sendError(fmt.Sprintf("read error: %v", err))
		return
	}

	s.conn.WriteJSON(registerResponse{
		Type:      "register_data",
		Device:    device,
		Address:   addrStr,
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *registerDebugSession) handleReadAll(msg map[string]interface{}) {
	device := deviceField(msg)
	busAddr, regMap, err := deviceAddr(device)
	if err != nil {
		s.sendError(err.Error())
		return
	}

	values := make(map[string]string, len(regMap))
	s.bus.Claim()
	for _, info := range regMap {
		v, err := s.bus.ReadByte(busAddr, info.Address)
		if err != nil {
			s.bus.Release()
			s.sendError(fmt.Sprintf("read error at 0x%02X: %v", info.Address, err))
			return
		}
		values[fmt.Sprintf("0x%02X", info.Address)] = fmt.Sprintf("0x%02X", v)
	}
	s.bus.Release()

	s.conn.WriteJSON(registerResponse{
		Type:      "register_data",
		Device:    device,
		Registers: values,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (s *registerDebugSession) handleWrite(msg map[string]interface{}) {
	device := deviceField(msg)
	addrStr, _ := msg["addr"].(string)
	valueStr, _ := msg["value"].(string)
	if addrStr == "" || valueStr == "" {
		s.sendError("missing addr or value field")
		return
	}
	busAddr, regMap, err := deviceAddr(device)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	var reg, value byte
	if _, err := fmt.Sscanf(addrStr, "0x%X", &reg); err != nil {
		s.sendError(fmt.Sprintf("invalid address format: %q", addrStr))
		return
	}
	if _, err := fmt.Sscanf(valueStr, "0x%X", &value); err != nil {
		s.sendError(fmt.Sprintf("invalid value format: %q", valueStr))
		return
	}
	if !registerWritable(regMap, reg) {
		s.sendError(fmt.Sprintf("register 0x%02X is not writable", reg))
		return
	}

	s.bus.Claim()
	err = s.bus.WriteByte(busAddr, reg, value)
	s.bus.Release()
	if err != nil {
		s.sendError(fmt.Sprintf("write error: %v", err))
		return
	}

	s.conn.WriteJSON(registerResponse{
		Type:      "register_data",
		Device:    device,
		Address:   addrStr,
		Value:     valueStr,
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "write successful",
	})
}

// registerWritable permits writes only to registers the map marks RW.
func registerWritable(regMap []RegisterInfo, reg byte) bool {
	for _, info := range regMap {
		if info.Address == reg {
			return info.Access == "RW"
		}
	}
	return false
}

func (s *registerDebugSession) sendRegisterMap(device string) error {
	_, regMap, err := deviceAddr(device)
	if err != nil {
		s.sendError(err.Error())
		return nil
	}
	for i := range regMap {
		regMap[i].Addr = fmt.Sprintf("0x%02X", regMap[i].Address)
	}
	return s.conn.WriteJSON(registerResponse{
		Type:        "register_map",
		Device:      device,
		RegisterMap: regMap,
	})
}

func (s *registerDebugSession) sendError(message string) {
	s.conn.WriteJSON(registerResponse{Type: "error", Message: message})
}
