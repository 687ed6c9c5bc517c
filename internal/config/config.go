package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | mongo
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		URI      string `yaml:"uri"` // mongo connection string
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	AI struct {
		APIKey  string `yaml:"apiKey"`
		BaseURL string `yaml:"baseURL"`
		Model   string `yaml:"model"`
	} `yaml:"ai"`

	Sandbox struct {
		Image     string `yaml:"image"`
		BaseDir   string `yaml:"baseDir"`
		Memory    string `yaml:"memory"`
		CPUs      string `yaml:"cpus"`
		PidsLimit int    `yaml:"pidsLimit"`
	} `yaml:"sandbox"`

	Analysis struct {
		OverallDeadlineSeconds   int `yaml:"overallDeadlineSeconds"`
		GenerationTimeoutSeconds int `yaml:"generationTimeoutSeconds"`
		ExecutionTimeoutSeconds  int `yaml:"executionTimeoutSeconds"`
		SlackSeconds             int `yaml:"slackSeconds"`
		MaxGenerationRetries     int `yaml:"maxGenerationRetries"`
		MaxCycles                int `yaml:"maxCycles"`
	} `yaml:"analysis"`

	Auth struct {
		APIKeys []string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity        int `yaml:"capacity"`
		RefillPerSecond int `yaml:"refillPerSecond"`
	} `yaml:"rateLimit"`
}

// Load baca file config.yaml; secrets boleh dioverride lewat env
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Sandbox.Image == "" {
		c.Sandbox.Image = "python:3.12-slim"
	}
	if c.Sandbox.BaseDir == "" {
		c.Sandbox.BaseDir = os.TempDir()
	}
	if c.Sandbox.Memory == "" {
		c.Sandbox.Memory = "512m"
	}
	if c.Sandbox.CPUs == "" {
		c.Sandbox.CPUs = "1.0"
	}
	if c.Sandbox.PidsLimit == 0 {
		c.Sandbox.PidsLimit = 128
	}
	if c.Analysis.OverallDeadlineSeconds == 0 {
		c.Analysis.OverallDeadlineSeconds = 180
	}
	if c.Analysis.GenerationTimeoutSeconds == 0 {
		c.Analysis.GenerationTimeoutSeconds = 60
	}
	if c.Analysis.ExecutionTimeoutSeconds == 0 {
		c.Analysis.ExecutionTimeoutSeconds = 90
	}
	if c.Analysis.SlackSeconds == 0 {
		c.Analysis.SlackSeconds = 10
	}
	if c.Analysis.MaxGenerationRetries == 0 {
		c.Analysis.MaxGenerationRetries = 2
	}
	if c.Analysis.MaxCycles == 0 {
		c.Analysis.MaxCycles = 1
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 10
	}
	if c.RateLimit.RefillPerSecond == 0 {
		c.RateLimit.RefillPerSecond = 1
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("MONGO_URL"); v != "" {
		c.Database.URI = v
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}

func (c *Config) OverallDeadline() time.Duration {
	return time.Duration(c.Analysis.OverallDeadlineSeconds) * time.Second
}

func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Analysis.GenerationTimeoutSeconds) * time.Second
}

func (c *Config) ExecutionTimeout() time.Duration {
	return time.Duration(c.Analysis.ExecutionTimeoutSeconds) * time.Second
}

func (c *Config) Slack() time.Duration {
	return time.Duration(c.Analysis.SlackSeconds) * time.Second
}
