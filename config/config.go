package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Camera source kinds.
const (
	SourceWebcam = "webcam"
	SourceScreen = "screen"
)

// Notifier kinds.
const (
	NotifierLog    = "log"
	NotifierTwilio = "twilio"
	NotifierMQTT   = "mqtt"
)

// Config holds runtime configuration for the distraction monitor and study tools.
// Fields may be loaded from a JSON or YAML file; secrets come from the environment.
type Config struct {
	Debug bool `json:"debug" yaml:"debug"`

	// Camera
	CameraSource string `json:"camera_source" yaml:"camera_source" validate:"oneof=webcam screen"`
	CameraDevice int    `json:"camera_device" yaml:"camera_device" validate:"gte=0"`
	FrameWidth   int    `json:"frame_width" yaml:"frame_width" validate:"gte=0"`
	FrameHeight  int    `json:"frame_height" yaml:"frame_height" validate:"gte=0"`
	TargetFPS    int    `json:"target_fps" yaml:"target_fps" validate:"min=1,max=120"`

	// Detection parameters
	PhoneFrameThreshold  int     `json:"phone_frame_threshold" yaml:"phone_frame_threshold" validate:"min=1"`
	PhoneLabel           string  `json:"phone_label" yaml:"phone_label" validate:"required"`
	EyeARThreshold       float64 `json:"eye_ar_threshold" yaml:"eye_ar_threshold" validate:"gt=0,lt=1"`
	EyeClosedSeconds     float64 `json:"eye_closed_seconds" yaml:"eye_closed_seconds" validate:"gt=0"`
	AlertCooldownSeconds float64 `json:"alert_cooldown_seconds" yaml:"alert_cooldown_seconds" validate:"gte=0"`
	LeftEye              [6]int  `json:"left_eye" yaml:"left_eye"`
	RightEye             [6]int  `json:"right_eye" yaml:"right_eye"`
	Annotate             bool    `json:"annotate" yaml:"annotate"`

	// Inference worker
	WorkerCommand       string   `json:"worker_command" yaml:"worker_command" validate:"required"`
	WorkerArgs          []string `json:"worker_args" yaml:"worker_args"`
	ObjectModel         string   `json:"object_model" yaml:"object_model"`
	DetectorTimeoutMs   int      `json:"detector_timeout_ms" yaml:"detector_timeout_ms" validate:"gte=0"`
	MaxDetectorFailures int      `json:"max_detector_failures" yaml:"max_detector_failures" validate:"gte=0"`

	// Output
	LogDir     string `json:"log_dir" yaml:"log_dir" validate:"required"`
	AccountsDB string `json:"accounts_db" yaml:"accounts_db" validate:"required"`

	// Notifications
	Notifier        string `json:"notifier" yaml:"notifier" validate:"oneof=log twilio mqtt"`
	NotifyTimeoutMs int    `json:"notify_timeout_ms" yaml:"notify_timeout_ms" validate:"gte=0"`
	MQTTBroker      string `json:"mqtt_broker" yaml:"mqtt_broker" validate:"required_if=Notifier mqtt"`
	MQTTTopic       string `json:"mqtt_topic" yaml:"mqtt_topic"`
	MQTTClientID    string `json:"mqtt_client_id" yaml:"mqtt_client_id"`

	// Spoken alerts. An empty VoiceCommand picks the platform speech program.
	VoiceAlerts  bool   `json:"voice_alerts" yaml:"voice_alerts"`
	VoiceCommand string `json:"voice_command" yaml:"voice_command"`

	// Study tools
	GeminiModel string `json:"gemini_model" yaml:"gemini_model"`

	// Prometheus endpoint, empty disables it.
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`

	// Secrets, never persisted.
	TwilioSID    string `json:"-" yaml:"-"`
	TwilioToken  string `json:"-" yaml:"-"`
	TwilioFrom   string `json:"-" yaml:"-"`
	MQTTUsername string `json:"-" yaml:"-"`
	MQTTPassword string `json:"-" yaml:"-"`
	GoogleAPIKey string `json:"-" yaml:"-"`
}

// Face mesh landmark indices for the six eye contour points, ordered p0..p5.
var (
	DefaultLeftEye  = [6]int{33, 160, 158, 133, 153, 144}
	DefaultRightEye = [6]int{362, 385, 387, 263, 373, 380}
)

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:                false,
		CameraSource:         SourceWebcam,
		CameraDevice:         0,
		TargetFPS:            30,
		PhoneFrameThreshold:  5,
		PhoneLabel:           "cell phone",
		EyeARThreshold:       0.25,
		EyeClosedSeconds:     5,
		AlertCooldownSeconds: 5,
		LeftEye:              DefaultLeftEye,
		RightEye:             DefaultRightEye,
		Annotate:             true,
		WorkerCommand:        "python3",
		ObjectModel:          "yolov8n.pt",
		DetectorTimeoutMs:    2000,
		MaxDetectorFailures:  30,
		LogDir:               "logs",
		AccountsDB:           "users.db",
		Notifier:             NotifierLog,
		NotifyTimeoutMs:      10000,
		MQTTTopic:            "studybuddy/alerts",
		MQTTClientID:         "study-buddy",
		VoiceAlerts:          true,
		GeminiModel:          "gemini-1.5-flash",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate clamps/normalizes values to safe ranges and then checks the
// remaining constraints declared in struct tags.
func (c *Config) Validate() error {
	def := DefaultConfig()
	c.CameraSource = strings.ToLower(strings.TrimSpace(c.CameraSource))
	if c.CameraSource == "" {
		c.CameraSource = def.CameraSource
	}
	if c.TargetFPS <= 0 {
		c.TargetFPS = def.TargetFPS
	}
	if c.PhoneFrameThreshold <= 0 {
		c.PhoneFrameThreshold = def.PhoneFrameThreshold
	}
	if strings.TrimSpace(c.PhoneLabel) == "" {
		c.PhoneLabel = def.PhoneLabel
	}
	if c.EyeARThreshold <= 0 || c.EyeARThreshold >= 1 {
		c.EyeARThreshold = def.EyeARThreshold
	}
	if c.EyeClosedSeconds <= 0 {
		c.EyeClosedSeconds = def.EyeClosedSeconds
	}
	if c.AlertCooldownSeconds < 0 {
		c.AlertCooldownSeconds = def.AlertCooldownSeconds
	}
	if c.LeftEye == ([6]int{}) {
		c.LeftEye = DefaultLeftEye
	}
	if c.RightEye == ([6]int{}) {
		c.RightEye = DefaultRightEye
	}
	if c.WorkerCommand == "" {
		c.WorkerCommand = def.WorkerCommand
	}
	if c.DetectorTimeoutMs < 0 {
		c.DetectorTimeoutMs = def.DetectorTimeoutMs
	}
	if c.MaxDetectorFailures < 0 {
		c.MaxDetectorFailures = 0
	}
	if c.LogDir == "" {
		c.LogDir = def.LogDir
	}
	if c.AccountsDB == "" {
		c.AccountsDB = def.AccountsDB
	}
	c.Notifier = strings.ToLower(strings.TrimSpace(c.Notifier))
	if c.Notifier == "" {
		c.Notifier = def.Notifier
	}
	if c.NotifyTimeoutMs <= 0 {
		c.NotifyTimeoutMs = def.NotifyTimeoutMs
	}
	if c.GeminiModel == "" {
		c.GeminiModel = def.GeminiModel
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// FrameInterval is the pacing delay between loop iterations.
func (c *Config) FrameInterval() time.Duration {
	if c.TargetFPS <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.TargetFPS)
}

// EyeClosedDuration converts EyeClosedSeconds into a duration.
func (c *Config) EyeClosedDuration() time.Duration { return seconds(c.EyeClosedSeconds) }

// AlertCooldown converts AlertCooldownSeconds into a duration.
func (c *Config) AlertCooldown() time.Duration { return seconds(c.AlertCooldownSeconds) }

// DetectorTimeout returns the per-call inference deadline, zero meaning none.
func (c *Config) DetectorTimeout() time.Duration {
	return time.Duration(c.DetectorTimeoutMs) * time.Millisecond
}

// NotifyTimeout returns the per-notification deadline.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutMs) * time.Millisecond
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

// Load attempts to read configuration from the given file path. Files ending in
// .yaml or .yml are parsed as YAML, anything else as JSON. If the file does not
// exist it returns DefaultConfig(). On decode error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return DefaultConfig(), fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to the given path, using YAML or JSON by extension.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ApplyEnv loads the given dotenv files (missing files are ignored) and copies
// secrets from the process environment into the config. Existing environment
// variables win over values from the files.
func (c *Config) ApplyEnv(files ...string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return fmt.Errorf("config: load env: %w", err)
		}
	}
	c.TwilioSID = getEnv("TWILIO_SID", c.TwilioSID)
	c.TwilioToken = getEnv("TWILIO_AUTH_TOKEN", c.TwilioToken)
	c.TwilioFrom = getEnv("TWILIO_PHONE", c.TwilioFrom)
	c.MQTTUsername = getEnv("MQTT_USERNAME", c.MQTTUsername)
	c.MQTTPassword = getEnv("MQTT_PASSWORD", c.MQTTPassword)
	c.GoogleAPIKey = getEnv("GOOGLE_API_KEY", c.GoogleAPIKey)
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
