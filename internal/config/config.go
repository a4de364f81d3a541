package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string

	// Topics
	TopicAttitude string
	TopicRaw      string

	// IMU Hardware
	I2CBus       string
	InterruptPin string

	// IMU Sensor Ranges
	// Accelerometer full scale in g: 2, 4, 8 or 16
	IMUAccelFSR int
	// Gyroscope full scale in °/s: 250, 500, 1000 or 2000
	IMUGyroFSR int

	// IMU Filtering
	IMUGyroDLPF  int // gyro low pass cutoff in Hz (0 = filter off)
	IMUAccelDLPF int // accel low pass cutoff in Hz (0 = filter off)

	// DMP
	IMUSampleRate   int     // attitude output rate in Hz, must divide 200
	IMUOrientation  string  // mounting: Z_UP, Z_DOWN, X_UP, X_DOWN, Y_UP, Y_DOWN, X_FORWARD, X_BACK
	MagEnabled      bool    // route the AK8963 through the DMP FIFO
	CompassTimeSecs float64 // complementary filter time constant in seconds
	DMPFirmwarePath string

	// Calibration
	CalibrationDir string

	// Sampler
	SamplerPriority int  // SCHED_FIFO priority, 0 = one below maximum
	LogFIFOWarnings bool // log degraded FIFO reads and bus contention

	// Timing
	ConsoleLogInterval int // milliseconds

	// Web Server
	WebServerPort     int
	RegisterDebugPort int
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported (lowercase) so other packages cannot access it directly.
//     This enforces encapsulation and prevents external code from modifying config without proper locking.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access. Write lock (Lock) for initialization,
//     read lock (RLock) for Get() allows multiple concurrent readers without blocking each other.
//
// External code must use InitGlobal() to set and Get() to read, ensuring thread safety.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := defaults()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config preset to the values used when a key is absent.
func defaults() *Config {
	return &Config{
		MQTTClientIDProducer: "attitude-producer",
		MQTTClientIDConsole:  "attitude-console",
		MQTTClientIDWeb:      "attitude-web",
		I2CBus:               "1",
		IMUAccelFSR:          4,
		IMUGyroFSR:           1000,
		IMUGyroDLPF:          92,
		IMUAccelDLPF:         92,
		IMUSampleRate:        100,
		IMUOrientation:       "Z_UP",
		CompassTimeSecs:      5.0,
		CalibrationDir:       "./calibration",
		ConsoleLogInterval:   1000,
		WebServerPort:        8080,
		RegisterDebugPort:    8081,
	}
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_ATTITUDE":
		c.TopicAttitude = value
	case "TOPIC_RAW":
		c.TopicRaw = value

	// IMU Hardware
	case "I2C_BUS":
		c.I2CBus = value
	case "INTERRUPT_PIN":
		c.InterruptPin = value

	// IMU Sensor Ranges
	case "IMU_ACCEL_FSR":
		fsr, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_FSR %q: %w", value, err)
		}
		switch fsr {
		case 2, 4, 8, 16:
			c.IMUAccelFSR = fsr
		default:
			return fmt.Errorf("IMU_ACCEL_FSR must be 2, 4, 8 or 16 (g), got %d", fsr)
		}
	case "IMU_GYRO_FSR":
		fsr, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_FSR %q: %w", value, err)
		}
		switch fsr {
		case 250, 500, 1000, 2000:
			c.IMUGyroFSR = fsr
		default:
			return fmt.Errorf("IMU_GYRO_FSR must be 250, 500, 1000 or 2000 (°/s), got %d", fsr)
		}

	// IMU Filtering
	case "IMU_GYRO_DLPF":
		hz, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_GYRO_DLPF %q: %w", value, err)
		}
		switch hz {
		case 0, 5, 10, 20, 41, 92, 184:
			c.IMUGyroDLPF = hz
		default:
			return fmt.Errorf("IMU_GYRO_DLPF must be 0, 5, 10, 20, 41, 92 or 184 (Hz), got %d", hz)
		}
	case "IMU_ACCEL_DLPF":
		hz, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_DLPF %q: %w", value, err)
		}
		switch hz {
		case 0, 5, 10, 20, 41, 92, 184:
			c.IMUAccelDLPF = hz
		default:
			return fmt.Errorf("IMU_ACCEL_DLPF must be 0, 5, 10, 20, 41, 92 or 184 (Hz), got %d", hz)
		}

	// DMP
	case "IMU_SAMPLE_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_SAMPLE_RATE %q: %w", value, err)
		}
		if rate < 4 || rate > 200 || 200%rate != 0 {
			return fmt.Errorf("IMU_SAMPLE_RATE must be 4-200 Hz and divide 200, got %d", rate)
		}
		c.IMUSampleRate = rate
	case "IMU_ORIENTATION":
		switch value {
		case "Z_UP", "Z_DOWN", "X_UP", "X_DOWN", "Y_UP", "Y_DOWN", "X_FORWARD", "X_BACK":
			c.IMUOrientation = value
		default:
			return fmt.Errorf("unknown IMU_ORIENTATION %q", value)
		}
	case "MAG_ENABLED":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid MAG_ENABLED %q: %w", value, err)
		}
		c.MagEnabled = enabled
	case "COMPASS_TIME_CONSTANT":
		secs, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid COMPASS_TIME_CONSTANT %q: %w", value, err)
		}
		if secs <= 0.1 {
			return fmt.Errorf("COMPASS_TIME_CONSTANT must be greater than 0.1 seconds, got %s", value)
		}
		c.CompassTimeSecs = secs
	case "DMP_FIRMWARE_PATH":
		c.DMPFirmwarePath = value

	// Calibration
	case "CALIBRATION_DIR":
		c.CalibrationDir = value

	// Sampler
	case "SAMPLER_PRIORITY":
		prio, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLER_PRIORITY %q: %w", value, err)
		}
		if prio < 0 || prio > 99 {
			return fmt.Errorf("SAMPLER_PRIORITY must be 0-99, got %d", prio)
		}
		c.SamplerPriority = prio
	case "LOG_FIFO_WARNINGS":
		warn, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid LOG_FIFO_WARNINGS %q: %w", value, err)
		}
		c.LogFIFOWarnings = warn

	// Timing
	case "CONSOLE_LOG_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid CONSOLE_LOG_INTERVAL %q: %w", value, err)
		}
		c.ConsoleLogInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "REGISTER_DEBUG_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid REGISTER_DEBUG_PORT %q: %w", value, err)
		}
		c.RegisterDebugPort = port

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.InterruptPin == "" {
		return fmt.Errorf("INTERRUPT_PIN is required")
	}
	if c.TopicAttitude == "" {
		return fmt.Errorf("TOPIC_ATTITUDE is required")
	}
	if c.ConsoleLogInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must be positive")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// Acquires write lock (configMu.Lock) during initialization to prevent concurrent access.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
// Uses read lock (configMu.RLock) to allow multiple concurrent readers without blocking.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
