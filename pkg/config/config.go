package config

import (
	"fmt"
	"os"
	"sync"

	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

const (
	defaultPageSize    = 1000
	defaultMaxWorkers  = 8
	defaultMaxRetries  = 3
	defaultBaseTimeout = 5
	defaultBackoff     = 5
	defaultMinUtilRate = 10
)

// SchedulePoint is one step of a company's capacity schedule. The assigned
// node count holds from Date until the next later point; a count of 0 marks
// the end of the contract.
type SchedulePoint struct {
	Date            string `json:"date"` // YYYY-MM-DD
	AssignedGPUNode int    `json:"assignedGpuNode"`
}

// Company groups the tracking entities (teams) billed together, plus the
// capacity schedule used as the utilization denominator.
type Company struct {
	Name                  string          `json:"name"`
	Teams                 []string        `json:"teams"`
	Schedule              []SchedulePoint `json:"schedule"`
	IncludeProjectPattern string          `json:"includeProjectPattern"`
	IgnoreProjectPattern  string          `json:"ignoreProjectPattern"`
}

// GPUCountRule overrides how the effective GPU count of a run is derived for
// teams that report device counts per process instead of per job. NodeKeys
// are tried in order against the run config; the first non-zero value wins.
// If GPUsPerNode is 0 and GPUsPerNodeKey is empty, one GPU per node is
// assumed. Teams without a rule use the device count reported by the run.
type GPUCountRule struct {
	Team           string   `json:"team"`
	NodeKeys       []string `json:"nodeKeys"`
	GPUsPerNodeKey string   `json:"gpusPerNodeKey"`
	GPUsPerNode    int      `json:"gpusPerNode"`
}

type Config struct {
	// Port Settings
	ServerAddr string `json:"serverAddr"` // The address the report endpoint binds to.

	// Timezone used for day bucketing, e.g. "Asia/Tokyo".
	Timezone string `json:"timezone"`

	// Run tracking service settings.
	Tracking struct {
		BaseURL  string `json:"baseURL"`
		APIKey   string `json:"apiKey"` // overridden by GPUBOARD_API_KEY when set
		PageSize int    `json:"pageSize"`
	} `json:"tracking"`

	Collector struct {
		MaxWorkers         int `json:"maxWorkers"`
		MaxRetries         int `json:"maxRetries"`
		BaseTimeoutSeconds int `json:"baseTimeoutSeconds"`
		BackoffSeconds     int `json:"backoffSeconds"`
	} `json:"collector"`

	// Artifact store for the persisted history, report and blacklist blobs.
	Artifact struct {
		Backend       string `json:"backend"` // "fs" or "postgres"
		Dir           string `json:"dir"`     // root for the fs backend
		HistoryName   string `json:"historyName"`
		ReportName    string `json:"reportName"`
		BlacklistName string `json:"blacklistName"`
	} `json:"artifact"`

	Postgres struct {
		Host     string `json:"host"`
		Port     string `json:"port"`
		DBName   string `json:"dbname"`
		User     string `json:"user"`
		Password string `json:"password"`
		SSLMode  string `json:"sslmode"`
		TimeZone string `json:"TimeZone"`
	} `json:"postgres"`

	SMTP struct {
		Host     string `json:"host"`
		Port     int    `json:"port"`
		User     string `json:"user"`
		Password string `json:"password"`
		Notify   string `json:"notify"` // receiver of alert mails
	} `json:"smtp"`

	Alert struct {
		Enable             bool    `json:"enable"`
		MinUtilizationRate float64 `json:"minUtilizationRate"`
	} `json:"alert"`

	// Cron spec for daemon mode, e.g. "0 1 * * *".
	CronSpec string `json:"cronSpec"`

	// Runs tagged with any of these (case-insensitive) are excluded.
	IgnoreTags []string `json:"ignoreTags"`

	Companies []Company `json:"companies"`

	GPUCountRules []GPUCountRule `json:"gpuCountRules"`
}

var (
	once   sync.Once
	config *Config
)

func GetConfig() *Config {
	once.Do(func() {
		config = initConfig()
	})
	return config
}

// ResetForTest drops the cached config so the next GetConfig call reloads it
// from GPUBOARD_CONFIG_PATH. Tests only.
func ResetForTest() {
	once = sync.Once{}
	config = nil
}

func initConfig() *Config {
	configPath := os.Getenv("GPUBOARD_CONFIG_PATH")
	if configPath == "" {
		configPath = "./etc/config.yaml"
	}
	klog.Info("config path: ", configPath)

	config := &Config{}
	if err := readConfig(configPath, config); err != nil {
		klog.Error("init config: ", err)
		panic(err)
	}
	if key := os.Getenv("GPUBOARD_API_KEY"); key != "" {
		config.Tracking.APIKey = key
	}
	applyDefaults(config)
	if err := validate(config); err != nil {
		klog.Error("init config: ", err)
		panic(err)
	}
	return config
}

func readConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

func applyDefaults(c *Config) {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8088"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Tokyo"
	}
	if c.Tracking.PageSize == 0 {
		c.Tracking.PageSize = defaultPageSize
	}
	if c.Collector.MaxWorkers == 0 {
		c.Collector.MaxWorkers = defaultMaxWorkers
	}
	if c.Collector.MaxRetries == 0 {
		c.Collector.MaxRetries = defaultMaxRetries
	}
	if c.Collector.BaseTimeoutSeconds == 0 {
		c.Collector.BaseTimeoutSeconds = defaultBaseTimeout
	}
	if c.Collector.BackoffSeconds == 0 {
		c.Collector.BackoffSeconds = defaultBackoff
	}
	if c.Artifact.Backend == "" {
		c.Artifact.Backend = "fs"
	}
	if c.Artifact.Dir == "" {
		c.Artifact.Dir = "./artifacts"
	}
	if c.Artifact.HistoryName == "" {
		c.Artifact.HistoryName = "gpu-usage-history"
	}
	if c.Artifact.ReportName == "" {
		c.Artifact.ReportName = "gpu-usage-report"
	}
	if c.Artifact.BlacklistName == "" {
		c.Artifact.BlacklistName = "gpu-usage-blacklist"
	}
	if c.Alert.MinUtilizationRate == 0 {
		c.Alert.MinUtilizationRate = defaultMinUtilRate
	}
}

func validate(c *Config) error {
	if len(c.Companies) == 0 {
		return fmt.Errorf("no companies configured")
	}
	for i := range c.Companies {
		comp := &c.Companies[i]
		if comp.Name == "" {
			return fmt.Errorf("company %d: name is required", i)
		}
		if len(comp.Teams) == 0 {
			return fmt.Errorf("company %s: at least one team is required", comp.Name)
		}
	}
	return nil
}
