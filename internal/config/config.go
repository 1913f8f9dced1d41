package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         int      `yaml:"port"`
		CORSOrigins  []string `yaml:"corsOrigins"`
		ReadTimeout  int      `yaml:"readTimeoutSeconds"`
		WriteTimeout int      `yaml:"writeTimeoutSeconds"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql or postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Detection struct {
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"apiKey"`
	} `yaml:"detection"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`

	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`
}

// Load reads config.yaml and applies environment overrides on top. A
// .env file next to the binary is picked up when present; secrets
// (database password, object-store keys, API keys, JWT secret) are
// expected from the environment in production.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Database.Driver != "mysql" && cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("config: unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("config: auth.jwtSecret (or JWT_SECRET) is required")
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Database.Driver, "DB_DRIVER")
	overrideString(&c.Database.Host, "DB_HOST")
	overrideInt(&c.Database.Port, "DB_PORT")
	overrideString(&c.Database.User, "DB_USER")
	overrideString(&c.Database.Password, "DB_PASSWORD")
	overrideString(&c.Database.Name, "DB_NAME")

	overrideString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	overrideString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	overrideString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	overrideString(&c.Minio.BucketName, "MINIO_BUCKET")

	overrideString(&c.Detection.Endpoint, "DETECTION_ENDPOINT")
	overrideString(&c.Detection.APIKey, "DETECTION_API_KEY")

	overrideString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideString(&c.OpenAI.Model, "OPENAI_MODEL")

	overrideString(&c.Auth.JWTSecret, "JWT_SECRET")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RateLimit.Capacity == 0 {
		c.RateLimit.Capacity = 100
	}
	if c.RateLimit.RefillRate == 0 {
		c.RateLimit.RefillRate = 10
	}
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// MySQLDSN builds the go-sql-driver connection string.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
