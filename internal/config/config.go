// YAML config loader with CUE schema and struct validation
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"objectwatch/internal/detect"
	"objectwatch/internal/track"
)

// ErrInvalid wraps every schema or field validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Tracking holds the tracker thresholds.
type Tracking struct {
	MoveThresholdPx float64       `yaml:"move_threshold_px" validate:"gt=0"`
	MatchDistancePx float64       `yaml:"match_distance_px" validate:"gt=0"`
	MissingAfter    time.Duration `yaml:"missing_after" validate:"gt=0"`
	SettlingFrames  int           `yaml:"settling_frames" validate:"gte=0"`
	InitialCapacity int           `yaml:"initial_capacity" validate:"gte=0"`
	Strict          bool          `yaml:"strict"`
}

// Alerts configures the alert sinks.
type Alerts struct {
	Command     []string      `yaml:"command"`
	Bell        bool          `yaml:"bell"`
	MinInterval time.Duration `yaml:"min_interval" validate:"gte=0"`
	QueueSize   int           `yaml:"queue_size" validate:"gt=0"`
}

// Greptime holds GreptimeDB connection details. An empty host disables it.
type Greptime struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port" validate:"omitempty,gt=0,lte=65535"`
	Database    string `yaml:"database" validate:"required_with=Host"`
	StatusTable string `yaml:"status_table" validate:"required_with=Host"`
	AlertTable  string `yaml:"alert_table" validate:"required_with=Host"`
}

// Influx holds InfluxDB v2 connection details. An empty URL disables it.
type Influx struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org" validate:"required_with=URL"`
	Bucket string `yaml:"bucket" validate:"required_with=URL"`
}

// Outputs lists the status publishers beyond stdout.
type Outputs struct {
	StatusFile string   `yaml:"status_file"`
	LogFile    string   `yaml:"log_file"`
	Greptime   Greptime `yaml:"greptime"`
	Influx     Influx   `yaml:"influx"`
}

// Server configures the HTTP dashboard.
type Server struct {
	Addr string `yaml:"addr"`
}

// Store configures the SQLite alert history. An empty path disables it.
type Store struct {
	Path string `yaml:"path"`
}

// Scene configures the synthetic detector.
type Scene struct {
	Scenario string  `yaml:"scenario"`
	Width    float64 `yaml:"width" validate:"gt=0"`
	Height   float64 `yaml:"height" validate:"gt=0"`
	JitterPx float64 `yaml:"jitter_px" validate:"gte=0"`
	Dropout  float64 `yaml:"dropout" validate:"gte=0,lte=1"`
	Seed     int64   `yaml:"seed"`
}

// Config is the root configuration.
type Config struct {
	TargetClass     string        `yaml:"target_class" validate:"required"`
	ConfidenceFloor float64       `yaml:"confidence_floor" validate:"gte=0,lte=1"`
	NMSIoUThreshold float64       `yaml:"nms_iou_threshold" validate:"gte=0,lte=1"`
	Tracking        Tracking      `yaml:"tracking"`
	FrameInterval   time.Duration `yaml:"frame_interval" validate:"gt=0"`
	Alerts          Alerts        `yaml:"alerts"`
	Outputs         Outputs       `yaml:"outputs"`
	Server          Server        `yaml:"server"`
	Store           Store         `yaml:"store"`
	Scene           Scene         `yaml:"scene"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	p := track.DefaultParams()
	return &Config{
		TargetClass:     "bottle",
		ConfidenceFloor: 0.5,
		NMSIoUThreshold: detect.DefaultNMSThreshold,
		Tracking: Tracking{
			MoveThresholdPx: p.MoveThreshold,
			MatchDistancePx: p.MatchDistance,
			MissingAfter:    p.MissingAfter,
			SettlingFrames:  p.SettlingFrames,
		},
		FrameInterval: 33 * time.Millisecond,
		Alerts: Alerts{
			MinInterval: time.Second,
			QueueSize:   16,
		},
		Outputs: Outputs{
			StatusFile: "status.json",
			Greptime: Greptime{
				Port:        4001,
				Database:    "public",
				StatusTable: "object_status",
				AlertTable:  "object_alerts",
			},
		},
		Server: Server{Addr: ":5000"},
		Scene: Scene{
			Scenario: "theft",
			Width:    640,
			Height:   480,
			JitterPx: 3,
			Dropout:  0.02,
			Seed:     1,
		},
	}
}

// Load reads a YAML config, validates it against the CUE schema (the embedded
// one when schemaPath is empty), overlays it on Default, applies environment
// overrides and validates the result.
func Load(configPath, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	return Parse(configPath, data, schemaPath)
}

// Parse is Load for config bytes already in memory.
func Parse(name string, data []byte, schemaPath string) (*Config, error) {
	schema := embeddedSchema
	if schemaPath != "" {
		b, err := os.ReadFile(schemaPath)
		if err != nil {
			return nil, fmt.Errorf("cannot read CUE schema: %w", err)
		}
		schema = b
	}
	if err := ValidateWithCue(name, data, schema); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal YAML config: %w", err)
	}
	ApplyEnv(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides connection settings and the target class from the
// environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		host, port := v, ""
		if i := strings.LastIndex(v, ":"); i > 0 {
			host, port = v[:i], v[i+1:]
		}
		cfg.Outputs.Greptime.Host = host
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Outputs.Greptime.Port = p
		}
	}
	if v := getenv("INFLUXDB_URL"); v != "" {
		cfg.Outputs.Influx.URL = v
	}
	if v := getenv("INFLUXDB_TOKEN"); v != "" {
		cfg.Outputs.Influx.Token = v
	}
	if v := getenv("INFLUXDB_ORG"); v != "" {
		cfg.Outputs.Influx.Org = v
	}
	if v := getenv("INFLUXDB_BUCKET"); v != "" {
		cfg.Outputs.Influx.Bucket = v
	}
	if v := getenv("OBJECTWATCH_TARGET"); v != "" {
		cfg.TargetClass = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. Failures wrap ErrInvalid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Params converts the tracking section for the tracker.
func (c *Config) Params() track.Params {
	return track.Params{
		MoveThreshold:   c.Tracking.MoveThresholdPx,
		MatchDistance:   c.Tracking.MatchDistancePx,
		MissingAfter:    c.Tracking.MissingAfter,
		SettlingFrames:  c.Tracking.SettlingFrames,
		InitialCapacity: c.Tracking.InitialCapacity,
		Strict:          c.Tracking.Strict,
	}
}

// Filter builds the detection filter for the configured class.
func (c *Config) Filter() detect.Filter {
	return detect.Filter{
		TargetClass:   c.TargetClass,
		MinConfidence: c.ConfidenceFloor,
		NMSThreshold:  c.NMSIoUThreshold,
	}
}
