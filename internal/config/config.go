package config

import (
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port" default:"8080"`
		Host         string        `yaml:"host" default:"0.0.0.0"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
		IdleTimeout  time.Duration `yaml:"idle_timeout" default:"60s"`
	} `yaml:"server"`

	Dedup struct {
		// Pairs scoring below StorageThreshold are discarded.
		StorageThreshold float64       `yaml:"storage_threshold" default:"50"`
		TitleWeight      float64       `yaml:"title_weight" default:"0.35"`
		CompanyWeight    float64       `yaml:"company_weight" default:"0.25"`
		LocationWeight   float64       `yaml:"location_weight" default:"0.20"`
		DescWeight       float64       `yaml:"description_weight" default:"0.20"`
		FreshnessHorizon time.Duration `yaml:"freshness_horizon" default:"2160h"` // 90 days
		LockTTL          time.Duration `yaml:"lock_ttl" default:"5m"`
	} `yaml:"dedup"`

	Cache struct {
		FastTTL   time.Duration `yaml:"fast_ttl" default:"168h"` // 7 days
		KeyPrefix string        `yaml:"key_prefix" default:"classification"`
	} `yaml:"cache"`

	Scorer struct {
		Provider     string        `yaml:"provider" default:"claude"`
		APIKey       string        `yaml:"api_key"`
		Model        string        `yaml:"model" default:"claude-3-haiku-20240307"`
		MaxTokens    int           `yaml:"max_tokens" default:"2048"`
		Temperature  float32       `yaml:"temperature" default:"0.1"`
		Timeout      time.Duration `yaml:"timeout" default:"30s"`
		BatchWorkers int           `yaml:"batch_workers" default:"4"`
		BatchLimit   int           `yaml:"batch_limit" default:"50"`
		RatePerMin   int           `yaml:"rate_per_minute" default:"60"`
	} `yaml:"scorer"`

	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`

	Redis struct {
		URL      string        `yaml:"url" default:"redis://localhost:6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db" default:"0"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
	} `yaml:"redis"`

	Scheduler struct {
		Enabled bool   `yaml:"enabled" default:"false"`
		Spec    string `yaml:"spec" default:"@every 6h"`
	} `yaml:"scheduler"`

	Logging struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`

		Adapters []struct {
			Name    string                 `yaml:"name"`
			Type    string                 `yaml:"type"`
			Enabled bool                   `yaml:"enabled"`
			Options map[string]interface{} `yaml:"options"`
		} `yaml:"adapters"`
	} `yaml:"logging"`
}

// expandEnvVars expands environment variables in a string using ${VAR} or $VAR syntax
func expandEnvVars(s string) string {
	// Expand ${VAR} syntax
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	// Expand $VAR syntax
	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[1:]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return s
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := &Config{}

	// Set defaults
	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 30 * time.Second
	config.Server.IdleTimeout = 60 * time.Second

	config.Dedup.StorageThreshold = 50
	config.Dedup.TitleWeight = 0.35
	config.Dedup.CompanyWeight = 0.25
	config.Dedup.LocationWeight = 0.20
	config.Dedup.DescWeight = 0.20
	config.Dedup.FreshnessHorizon = 90 * 24 * time.Hour
	config.Dedup.LockTTL = 5 * time.Minute

	config.Cache.FastTTL = 7 * 24 * time.Hour
	config.Cache.KeyPrefix = "classification"

	config.Scorer.Provider = "claude"
	config.Scorer.Model = "claude-3-haiku-20240307"
	config.Scorer.MaxTokens = 2048
	config.Scorer.Temperature = 0.1
	config.Scorer.Timeout = 30 * time.Second
	config.Scorer.BatchWorkers = 4
	config.Scorer.BatchLimit = 50
	config.Scorer.RatePerMin = 60

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.DB = 0
	config.Redis.Timeout = 5 * time.Second

	config.Scheduler.Spec = "@every 6h"

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Output = "stdout"

	// Load from YAML file if it exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			// Expand environment variables in the YAML content
			yamlContent := expandEnvVars(string(data))

			if err := yaml.Unmarshal([]byte(yamlContent), config); err != nil {
				return nil, err
			}
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	return config, nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if apiKey := os.Getenv("SCORER_API_KEY"); apiKey != "" {
		c.Scorer.APIKey = apiKey
	}

	// Also support LLM_API_KEY for compatibility
	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" && c.Scorer.APIKey == "" {
		c.Scorer.APIKey = apiKey
	}

	if provider := os.Getenv("SCORER_PROVIDER"); provider != "" {
		c.Scorer.Provider = provider
	}

	if model := os.Getenv("SCORER_MODEL"); model != "" {
		c.Scorer.Model = model
	}

	if timeout := os.Getenv("SCORER_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.Scorer.Timeout = d
		}
	}

	if workers := os.Getenv("SCORER_BATCH_WORKERS"); workers != "" {
		if n, err := strconv.Atoi(workers); err == nil && n > 0 {
			c.Scorer.BatchWorkers = n
		}
	}

	if pgURL := os.Getenv("DATABASE_URL"); pgURL != "" {
		c.Postgres.URL = pgURL
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			c.Redis.DB = db
		}
	}

	if redisTimeout := os.Getenv("REDIS_TIMEOUT"); redisTimeout != "" {
		if timeout, err := time.ParseDuration(redisTimeout); err == nil {
			c.Redis.Timeout = timeout
		}
	}

	if fastTTL := os.Getenv("CACHE_FAST_TTL"); fastTTL != "" {
		if d, err := time.ParseDuration(fastTTL); err == nil {
			c.Cache.FastTTL = d
		}
	}

	if spec := os.Getenv("SCHEDULER_SPEC"); spec != "" {
		c.Scheduler.Spec = spec
	}

	if enabled := os.Getenv("SCHEDULER_ENABLED"); enabled != "" {
		c.Scheduler.Enabled = enabled == "true" || enabled == "1"
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}
}
