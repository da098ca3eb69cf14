package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// MQTTConfig is the broker connection of a service.
type MQTTConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
}

// InfluxConfig is the time-series store used by the persistence service.
type InfluxConfig struct {
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement"`
}

// BreakerConfig tunes a gobreaker circuit breaker.
type BreakerConfig struct {
	Fails      int `yaml:"fails"`
	OpenMs     int `yaml:"open_ms"`
	IntervalMs int `yaml:"interval_ms"`
}

// WeatherConfig enables the OpenWeather forecast source.
type WeatherConfig struct {
	APIKey string  `yaml:"api_key"`
	Lat    float64 `yaml:"lat"`
	Lon    float64 `yaml:"lon"`
}

// ServiceConfig is the configuration shared by the cropsim services.
type ServiceConfig struct {
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Influx InfluxConfig `yaml:"influx"`

	HTTPPort string `yaml:"http_port"`
	GRPCPort string `yaml:"grpc_port"`

	RequestTopic string `yaml:"request_topic"`
	ScenarioDir  string `yaml:"scenario_dir"`
	MaxParallel  int    `yaml:"max_parallel"`
	LogLevel     string `yaml:"log_level"`

	SimulationAddr string        `yaml:"simulation_addr"`
	PersistenceURL string        `yaml:"persistence_url"`
	TimeoutMs      int           `yaml:"timeout_ms"`
	Breaker        BreakerConfig `yaml:"breaker"`

	Weather WeatherConfig `yaml:"weather"`
}

// DefaultServiceConfig returns the settings used inside the compose network.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MQTT: MQTTConfig{Host: "localhost", Port: 1883, User: "guest", Password: "guest"},
		Influx: InfluxConfig{
			URL:         "http://influxdb:8086",
			Org:         "cropsim",
			Bucket:      "simulations",
			Measurement: "daily_record",
		},
		HTTPPort:       "8080",
		GRPCPort:       "50051",
		RequestTopic:   "sim/run/request/#",
		ScenarioDir:    "/app/scenarios",
		MaxParallel:    4,
		LogLevel:       "info",
		SimulationAddr: "simulation:50051",
		PersistenceURL: "http://persistence:8080",
		TimeoutMs:      3000,
		Breaker:        BreakerConfig{Fails: 3, OpenMs: 10000, IntervalMs: 60000},
	}
}

// LoadService reads a YAML service config, then applies environment overrides.
// An empty path or a missing file yields the defaults.
func LoadService(path string) (*ServiceConfig, error) {
	cfg := DefaultServiceConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read service config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse service config: %w", err)
			}
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *ServiceConfig) applyEnvOverrides() {
	c.MQTT.Host = Env("RABBITMQ_HOST", c.MQTT.Host)
	c.MQTT.Port = EnvInt("RABBITMQ_PORT", c.MQTT.Port)
	c.MQTT.User = Env("RABBITMQ_USER", c.MQTT.User)
	c.MQTT.Password = Env("RABBITMQ_PASSWORD", c.MQTT.Password)
	c.MQTT.ClientID = Env("MQTT_CLIENT_ID", c.MQTT.ClientID)

	c.Influx.URL = Env("INFLUX_URL", c.Influx.URL)
	c.Influx.Token = Env("INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = Env("INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = Env("INFLUX_BUCKET", c.Influx.Bucket)
	c.Influx.Measurement = Env("INFLUX_MEASUREMENT", c.Influx.Measurement)

	c.HTTPPort = Env("HTTP_PORT", c.HTTPPort)
	c.GRPCPort = Env("GRPC_PORT", c.GRPCPort)
	c.RequestTopic = Env("REQUEST_SUB_TOPIC", c.RequestTopic)
	c.ScenarioDir = Env("SCENARIO_DIR", c.ScenarioDir)
	c.MaxParallel = EnvInt("MAX_PARALLEL_RUNS", c.MaxParallel)
	c.LogLevel = Env("LOG_LEVEL", c.LogLevel)

	c.SimulationAddr = Env("SIMULATION_GRPC_ADDR", c.SimulationAddr)
	c.PersistenceURL = Env("PERSISTENCE_URL", c.PersistenceURL)
	c.TimeoutMs = EnvInt("TIMEOUT_MS", c.TimeoutMs)
	c.Breaker.Fails = EnvInt("CB_FAILS", c.Breaker.Fails)
	c.Breaker.OpenMs = EnvInt("CB_OPEN_MS", c.Breaker.OpenMs)
	c.Breaker.IntervalMs = EnvInt("CB_INTERVAL_MS", c.Breaker.IntervalMs)

	c.Weather.APIKey = Env("OWM_API_KEY", c.Weather.APIKey)
	c.Weather.Lat = EnvFloat("OWM_LAT", c.Weather.Lat)
	c.Weather.Lon = EnvFloat("OWM_LON", c.Weather.Lon)
}

// Env returns the environment variable key, or def when unset.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvInt is Env for integers; unparsable values fall back to def.
func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// EnvFloat is Env for floats; unparsable values fall back to def.
func EnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Logger returns a JSON logrus logger at the configured level; unknown levels
// fall back to info.
func (c *ServiceConfig) Logger(service string) *logrus.Entry {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l.WithField("service", service)
}
