package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Registry   RegistryConfig
	Tracking   TrackingConfig
	Flow       FlowConfig
	Steps      StepsConfig
	Kubernetes KubernetesConfig
	Notify     NotifyConfig
	Database   DatabaseConfig
	Logger     LoggerConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RegistryConfig struct {
	Target     string
	LocalPath  string
	BucketName string
	// UploadDir bounds the model paths the HTTP API accepts.
	UploadDir  string
}

type TrackingConfig struct {
	URI        string
	Timeout    time.Duration
	Experiment string
	ModelName  string
}

type FlowConfig struct {
	Name string
}

type StepsConfig struct {
	Runner  string
	Command string
	Timeout time.Duration
}

type KubernetesConfig struct {
	InCluster      bool
	KubeConfigPath string
	Namespace      string
	Image          string
	PollInterval   time.Duration
}

type NotifyConfig struct {
	Enabled bool
	BaseURL string
	Channel string
	Author  string
	Timeout time.Duration
}

type DatabaseConfig struct {
	Driver       string
	Path         string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User), url.QueryEscape(d.Password), d.Host, d.Port, d.Name, d.SSLMode)
}

type LoggerConfig struct {
	Level  string
	Format string
}

// Step runner kinds
const (
	RunnerExec       = "exec"
	RunnerKubernetes = "kubernetes"
)

// Database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("MODEL_TARGET", "local")
	v.SetDefault("LOCAL_REGISTRY_PATH", "./registry")
	v.SetDefault("BUCKET_NAME", "")
	v.SetDefault("MODEL_UPLOAD_DIR", "./incoming")
	v.SetDefault("TRACKING_URI", "http://localhost:5000")
	v.SetDefault("TRACKING_TIMEOUT", "30s")
	v.SetDefault("EXPERIMENT", "retrain")
	v.SetDefault("MODEL_NAME", "model")
	v.SetDefault("FLOW_NAME", "retrain-flow")
	v.SetDefault("STEP_RUNNER", RunnerExec)
	v.SetDefault("STEP_COMMAND", "python -m interface.main")
	v.SetDefault("STEP_TIMEOUT", "1h")
	v.SetDefault("STEP_IMAGE", "")
	v.SetDefault("STEP_NAMESPACE", "default")
	v.SetDefault("STEP_POLL_INTERVAL", "5s")
	v.SetDefault("KUBERNETES_IN_CLUSTER", false)
	v.SetDefault("KUBECONFIG_PATH", "")
	v.SetDefault("NOTIFY_ENABLED", true)
	v.SetDefault("NOTIFY_BASE_URL", "https://wagon-chat.herokuapp.com")
	v.SetDefault("NOTIFY_CHANNEL", "retrain")
	v.SetDefault("NOTIFY_AUTHOR", "retrain-bot")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")
	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_PATH", "flow_runs.db")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_NAME", "retrain")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")

	// Env
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Registry: RegistryConfig{
			Target:     v.GetString("MODEL_TARGET"),
			LocalPath:  v.GetString("LOCAL_REGISTRY_PATH"),
			BucketName: v.GetString("BUCKET_NAME"),
			UploadDir:  v.GetString("MODEL_UPLOAD_DIR"),
		},
		Tracking: TrackingConfig{
			URI:        v.GetString("TRACKING_URI"),
			Timeout:    duration(v, "TRACKING_TIMEOUT", 30*time.Second),
			Experiment: v.GetString("EXPERIMENT"),
			ModelName:  v.GetString("MODEL_NAME"),
		},
		Flow: FlowConfig{
			Name: v.GetString("FLOW_NAME"),
		},
		Steps: StepsConfig{
			Runner:  v.GetString("STEP_RUNNER"),
			Command: v.GetString("STEP_COMMAND"),
			Timeout: duration(v, "STEP_TIMEOUT", time.Hour),
		},
		Kubernetes: KubernetesConfig{
			InCluster:      v.GetBool("KUBERNETES_IN_CLUSTER"),
			KubeConfigPath: v.GetString("KUBECONFIG_PATH"),
			Namespace:      v.GetString("STEP_NAMESPACE"),
			Image:          v.GetString("STEP_IMAGE"),
			PollInterval:   duration(v, "STEP_POLL_INTERVAL", 5*time.Second),
		},
		Notify: NotifyConfig{
			Enabled: v.GetBool("NOTIFY_ENABLED"),
			BaseURL: v.GetString("NOTIFY_BASE_URL"),
			Channel: v.GetString("NOTIFY_CHANNEL"),
			Author:  v.GetString("NOTIFY_AUTHOR"),
			Timeout: duration(v, "NOTIFY_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver:       v.GetString("DATABASE_DRIVER"),
			Path:         v.GetString("DATABASE_PATH"),
			Host:         v.GetString("DATABASE_HOST"),
			Port:         v.GetInt("DATABASE_PORT"),
			User:         v.GetString("DATABASE_USER"),
			Password:     v.GetString("DATABASE_PASSWORD"),
			Name:         v.GetString("DATABASE_NAME"),
			SSLMode:      v.GetString("DATABASE_SSLMODE"),
			MaxOpenConns: v.GetInt("DATABASE_MAX_OPEN_CONNS"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}
