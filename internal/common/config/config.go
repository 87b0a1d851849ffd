package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ops-tracker/internal/common/db"
	"ops-tracker/internal/common/mq"
	"ops-tracker/internal/domain"
	"ops-tracker/internal/tracker/sla"
)

type Thresholds struct {
	WarningSeconds  int `yaml:"warning_seconds"`
	CriticalSeconds int `yaml:"critical_seconds"`
}

// Tracker holds the per-tenant tunables: SLA thresholds, the action
// processor's retry bound, and the reconciliation poll interval.
type Tracker struct {
	RetryBound          int                   `yaml:"retry_bound"`
	RetryDelayMillis    int                   `yaml:"retry_delay_ms"`
	PollIntervalSeconds int                   `yaml:"poll_interval_seconds"`
	SLA                 map[string]Thresholds `yaml:"sla"`
}

type HTTP struct {
	Port int `yaml:"port"`
}

type App struct {
	Database db.Config `yaml:"database"`
	Rabbit   mq.Config `yaml:"rabbitmq"`
	HTTP     HTTP      `yaml:"http"`
	Tracker  Tracker   `yaml:"tracker"`
}

// Load reads a yaml config file, after letting a .env file (if any)
// seed the environment. Environment variables override file values.
func Load(path string) (App, error) {
	_ = godotenv.Load()

	a := App{
		Database: db.Config{Port: 5432, SSLMode: "disable"},
		Rabbit:   mq.Config{Port: 5672, VHost: "/"},
		HTTP:     HTTP{Port: 3000},
		Tracker: Tracker{
			RetryBound:          3,
			RetryDelayMillis:    25,
			PollIntervalSeconds: 10,
		},
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return App{}, err
	}
	if err := yaml.Unmarshal(b, &a); err != nil {
		return App{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyEnv(&a)

	if a.Database.Host == "" || a.Rabbit.Host == "" {
		return App{}, fmt.Errorf("invalid config: missing database/rabbitmq host")
	}
	if _, err := a.SLAPolicy(); err != nil {
		return App{}, err
	}
	return a, nil
}

// SLAPolicy builds the classifier policy: configured thresholds over
// the defaults, keyed by priority name.
func (a App) SLAPolicy() (sla.Policy, error) {
	policy := sla.DefaultPolicy()
	for name, th := range a.Tracker.SLA {
		p, err := domain.ParsePriority(name)
		if err != nil {
			return nil, fmt.Errorf("sla config: %w", err)
		}
		policy[p] = sla.Thresholds{
			Warning:  time.Duration(th.WarningSeconds) * time.Second,
			Critical: time.Duration(th.CriticalSeconds) * time.Second,
		}
	}
	return policy, nil
}

func (t Tracker) RetryDelay() time.Duration {
	return time.Duration(t.RetryDelayMillis) * time.Millisecond
}

func (t Tracker) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalSeconds) * time.Second
}

func applyEnv(a *App) {
	setStr(&a.Database.Host, "OPS_DB_HOST")
	setInt(&a.Database.Port, "OPS_DB_PORT")
	setStr(&a.Database.User, "OPS_DB_USER")
	setStr(&a.Database.Password, "OPS_DB_PASSWORD")
	setStr(&a.Database.Database, "OPS_DB_NAME")
	setStr(&a.Rabbit.Host, "OPS_MQ_HOST")
	setInt(&a.Rabbit.Port, "OPS_MQ_PORT")
	setStr(&a.Rabbit.User, "OPS_MQ_USER")
	setStr(&a.Rabbit.Password, "OPS_MQ_PASSWORD")
	setInt(&a.HTTP.Port, "OPS_HTTP_PORT")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func FindConfig() (string, error) {
	candidates := []string{"config.yaml", "deploy/config.example.yaml"}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", os.ErrNotExist
}
