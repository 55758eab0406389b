package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// 环境变量前缀，嵌套字段用双下划线分隔，如 MOVIEMATIC_DB__DSN
const envPrefix = "MOVIEMATIC_"

// 应用配置
type config struct {
	Port     int    `koanf:"port"`
	Env      string `koanf:"env"`
	LogLevel string `koanf:"log_level"`
	DB       struct {
		DSN          string        `koanf:"dsn"`
		MaxOpenConns int           `koanf:"max_open_conns"`
		MaxIdleConns int           `koanf:"max_idle_conns"`
		MaxIdleTime  time.Duration `koanf:"max_idle_time"`
	} `koanf:"db"`
	Limiter struct {
		RPS     float64 `koanf:"rps"`
		Burst   int     `koanf:"burst"`
		Enabled bool    `koanf:"enabled"`
	} `koanf:"limiter"`
	SMTP struct {
		Host     string `koanf:"host"`
		Port     int    `koanf:"port"`
		Username string `koanf:"username"`
		Password string `koanf:"password"`
		Sender   string `koanf:"sender"`
	} `koanf:"smtp"`
	CORS struct {
		TrustedOrigins []string `koanf:"trusted_origins"`
	} `koanf:"cors"`
	JWT struct {
		Secret string `koanf:"secret"`
	} `koanf:"jwt"`
	Storage struct {
		Backend   string `koanf:"backend"`
		Dir       string `koanf:"dir"`
		URLPrefix string `koanf:"url_prefix"`
		S3        struct {
			Endpoint        string `koanf:"endpoint"`
			Region          string `koanf:"region"`
			Bucket          string `koanf:"bucket"`
			Prefix          string `koanf:"prefix"`
			AccessKeyID     string `koanf:"access_key_id"`
			SecretAccessKey string `koanf:"secret_access_key"`
			PublicURL       string `koanf:"public_url"`
		} `koanf:"s3"`
	} `koanf:"storage"`
}

func defaultConfig() config {
	var cfg config
	cfg.Port = 4000
	cfg.Env = "development"
	cfg.LogLevel = "info"
	cfg.DB.MaxOpenConns = 25
	cfg.DB.MaxIdleConns = 25
	cfg.DB.MaxIdleTime = 15 * time.Minute
	cfg.Limiter.RPS = 2
	cfg.Limiter.Burst = 4
	cfg.Limiter.Enabled = true
	cfg.SMTP.Host = "localhost"
	cfg.SMTP.Port = 25
	cfg.SMTP.Sender = "Moviematic <no-reply@moviematic.local>"
	cfg.Storage.Backend = "disk"
	cfg.Storage.Dir = "./uploads"
	cfg.Storage.URLPrefix = "/uploads"
	cfg.Storage.S3.Region = "us-east-1"
	return cfg
}

// loadConfig 依次叠加：默认值 < CONFIG_PATH 指定的 YAML < MOVIEMATIC_* 环境变量 < 命令行参数
func loadConfig(args []string, getenv func(string) string) (config, bool, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return config{}, false, fmt.Errorf("load defaults: %w", err)
	}

	if path := getenv("CONFIG_PATH"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return config{}, false, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return config{}, false, fmt.Errorf("load environment: %w", err)
	}

	// 环境变量里的列表用空格或逗号分隔
	if raw, ok := k.Get("cors.trusted_origins").(string); ok {
		if err := k.Set("cors.trusted_origins", splitList(raw)); err != nil {
			return config{}, false, err
		}
	}

	var cfg config
	if err := k.Unmarshal("", &cfg); err != nil {
		return config{}, false, fmt.Errorf("unmarshal config: %w", err)
	}

	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "API server port")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "Environment (development|staging|production)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Minimum log level (info|error|fatal|off)")
	fs.StringVar(&cfg.DB.DSN, "db-dsn", cfg.DB.DSN, "PostgreSQL DSN")
	fs.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", cfg.DB.MaxOpenConns, "PostgreSQL max open connections")
	fs.IntVar(&cfg.DB.MaxIdleConns, "db-max-idle-conns", cfg.DB.MaxIdleConns, "PostgreSQL max idle connections")
	fs.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", cfg.DB.MaxIdleTime, "PostgreSQL max connection idle time")
	fs.Float64Var(&cfg.Limiter.RPS, "limiter-rps", cfg.Limiter.RPS, "Rate limiter maximum requests per second")
	fs.IntVar(&cfg.Limiter.Burst, "limiter-burst", cfg.Limiter.Burst, "Rate limiter maximum burst")
	fs.BoolVar(&cfg.Limiter.Enabled, "limiter-enabled", cfg.Limiter.Enabled, "Enable rate limiter")
	fs.StringVar(&cfg.SMTP.Host, "smtp-host", cfg.SMTP.Host, "SMTP host")
	fs.IntVar(&cfg.SMTP.Port, "smtp-port", cfg.SMTP.Port, "SMTP port")
	fs.StringVar(&cfg.SMTP.Username, "smtp-username", cfg.SMTP.Username, "SMTP username")
	fs.StringVar(&cfg.SMTP.Password, "smtp-password", cfg.SMTP.Password, "SMTP password")
	fs.StringVar(&cfg.SMTP.Sender, "smtp-sender", cfg.SMTP.Sender, "SMTP sender")
	fs.Func("cors-trusted-origins", "Trusted CORS origins (space separated)", func(val string) error {
		cfg.CORS.TrustedOrigins = strings.Fields(val)
		return nil
	})
	fs.StringVar(&cfg.JWT.Secret, "jwt-secret", cfg.JWT.Secret, "Secret used to sign authentication tokens")
	fs.StringVar(&cfg.Storage.Backend, "storage-backend", cfg.Storage.Backend, "Upload storage backend (disk|s3)")
	fs.StringVar(&cfg.Storage.Dir, "storage-dir", cfg.Storage.Dir, "Upload directory for the disk backend")
	fs.StringVar(&cfg.Storage.S3.Bucket, "s3-bucket", cfg.Storage.S3.Bucket, "S3 bucket for the s3 backend")
	fs.StringVar(&cfg.Storage.S3.Endpoint, "s3-endpoint", cfg.Storage.S3.Endpoint, "Custom S3 endpoint")

	displayVersion := fs.Bool("version", false, "Display version and exit")

	if err := fs.Parse(args); err != nil {
		return config{}, false, err
	}

	return cfg, *displayVersion, nil
}

func splitList(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
}

// validate 启动前检查必需的配置
func (cfg config) validate() error {
	switch {
	case cfg.DB.DSN == "":
		return fmt.Errorf("db dsn must be provided")
	case cfg.JWT.Secret == "":
		return fmt.Errorf("jwt secret must be provided")
	case cfg.Storage.Backend != "disk" && cfg.Storage.Backend != "s3":
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	case cfg.Storage.Backend == "s3" && cfg.Storage.S3.Bucket == "":
		return fmt.Errorf("s3 bucket must be provided")
	}
	return nil
}
