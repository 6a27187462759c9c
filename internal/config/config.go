package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const envPrefix = "MESHDB_"

// App contains the full application configuration.
type App struct {
	Name                 string `yaml:"name"`
	DatabasePath         string `yaml:"database_path"`
	OwnerNodeNum         uint32 `yaml:"owner_node_num"`
	MQTTBrokerAddress    string `yaml:"mqtt_broker_address"`
	MQTTPort             int    `yaml:"mqtt_port"`
	MQTTUsername         string `yaml:"mqtt_username"`
	MQTTPassword         string `yaml:"mqtt_password"`
	MQTTTopicPrefix      string `yaml:"mqtt_topic_prefix"`
	MQTTTopicSuffix      string `yaml:"mqtt_topic_suffix"`
	MQTTClientID         string `yaml:"mqtt_client_id"`
	LogLevel             string `yaml:"log_level"`
	LogJSON              bool   `yaml:"log_json"`
	ObservabilityAddress string `yaml:"observability_address"`
	CaptureQueueSize     int    `yaml:"capture_queue_size"`

	// ConfigPath records which file the configuration was loaded from.
	ConfigPath string `yaml:"-"`
}

// New reads the configuration from file (if provided) and environment overrides.
func New(path string) (*App, error) {
	cfg := defaultConfig()

	if err := cfg.applyFile(path); err != nil {
		return nil, err
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *App {
	return &App{
		Name:                 "meshdb",
		DatabasePath:         "",
		OwnerNodeNum:         0,
		MQTTBrokerAddress:    "127.0.0.1",
		MQTTPort:             1883,
		MQTTTopicPrefix:      "msh",
		MQTTTopicSuffix:      "/+/2/json/#",
		LogLevel:             "INFO",
		ObservabilityAddress: ":2112",
		CaptureQueueSize:     512,
	}
}

func (cfg *App) applyFile(path string) error {
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG_FILE")
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ConfigPath = path
	return nil
}

func (cfg *App) applyEnv() error {
	if err := envString("NAME", &cfg.Name); err != nil {
		return err
	}
	if err := envString("DATABASE_PATH", &cfg.DatabasePath); err != nil {
		return err
	}
	if err := envUint32("OWNER_NODE_NUM", &cfg.OwnerNodeNum); err != nil {
		return err
	}
	if err := envString("MQTT_BROKER_ADDRESS", &cfg.MQTTBrokerAddress); err != nil {
		return err
	}
	if err := envInt("MQTT_PORT", &cfg.MQTTPort); err != nil {
		return err
	}
	if err := envString("MQTT_USERNAME", &cfg.MQTTUsername); err != nil {
		return err
	}
	if err := envString("MQTT_PASSWORD", &cfg.MQTTPassword); err != nil {
		return err
	}
	if err := envString("MQTT_TOPIC_PREFIX", &cfg.MQTTTopicPrefix); err != nil {
		return err
	}
	if err := envString("MQTT_TOPIC_SUFFIX", &cfg.MQTTTopicSuffix); err != nil {
		return err
	}
	if err := envString("MQTT_CLIENT_ID", &cfg.MQTTClientID); err != nil {
		return err
	}
	if err := envString("LOG_LEVEL", &cfg.LogLevel); err != nil {
		return err
	}
	if err := envBool("LOG_JSON", &cfg.LogJSON); err != nil {
		return err
	}
	if err := envString("OBSERVABILITY_ADDRESS", &cfg.ObservabilityAddress); err != nil {
		return err
	}
	if err := envInt("CAPTURE_QUEUE_SIZE", &cfg.CaptureQueueSize); err != nil {
		return err
	}
	return nil
}

func envString(key string, dst *string) error {
	if val, ok := os.LookupEnv(envPrefix + key); ok {
		*dst = val
	}
	return nil
}

func envInt(key string, dst *int) error {
	val, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	*dst = parsed
	return nil
}

func envUint32(key string, dst *uint32) error {
	val, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(val), 10, 32)
	if err != nil {
		return fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	*dst = uint32(parsed)
	return nil
}

func envBool(key string, dst *bool) error {
	val, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		return fmt.Errorf("config: %s%s: %w", envPrefix, key, err)
	}
	*dst = parsed
	return nil
}
