package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/liliang-cn/moviematic/internal/auth"
	"github.com/liliang-cn/moviematic/internal/data"
	"github.com/liliang-cn/moviematic/internal/jsonlog"
	"github.com/liliang-cn/moviematic/internal/mailer"
	"github.com/liliang-cn/moviematic/internal/storage"
)

var (
	buildTime string
	version   string
)

// mailSender 发送模板邮件
type mailSender interface {
	Send(recipient, templateFile string, data any) error
}

// 应用定义
type application struct {
	config  config
	logger  *jsonlog.Logger
	models  data.Models
	mailer  mailSender
	tokens  *auth.Manager
	storage storage.Store
	wg      sync.WaitGroup
}

func main() {
	cfg, displayVersion, err := loadConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// 显示版本
	if displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		fmt.Printf("Build time:\t%s\n", buildTime)
		os.Exit(0)
	}

	logger := jsonlog.New(os.Stdout, jsonlog.ParseLevel(cfg.LogLevel))

	if err := cfg.validate(); err != nil {
		logger.PrintFatal(err, nil)
	}

	tokens, err := auth.NewManager(cfg.JWT.Secret)
	if err != nil {
		logger.PrintFatal(err, nil)
	}

	store, err := openStorage(cfg)
	if err != nil {
		logger.PrintFatal(err, nil)
	}

	// 连接数据库
	db, err := openDB(cfg)
	if err != nil {
		logger.PrintFatal(err, nil)
	}

	// 退出前关闭数据库连接
	defer db.Close()

	logger.PrintInfo("database connection pool established", nil)

	expvar.NewString("version").Set(version)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	expvar.Publish("database", expvar.Func(func() any {
		return db.Stats()
	}))

	expvar.Publish("timestamp", expvar.Func(func() any {
		return time.Now().Unix()
	}))

	app := &application{
		config:  cfg,
		logger:  logger,
		models:  data.NewModels(db),
		mailer:  mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender),
		tokens:  tokens,
		storage: store,
	}

	err = app.serve()
	if err != nil {
		logger.PrintFatal(err, nil)
	}
}

// 连接数据库
func openDB(cfg config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.DB.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// openStorage 按配置选择上传文件的存储后端
func openStorage(cfg config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "s3":
		s3 := cfg.Storage.S3
		return storage.NewS3(storage.S3Config{
			Endpoint:        s3.Endpoint,
			Region:          s3.Region,
			Bucket:          s3.Bucket,
			Prefix:          s3.Prefix,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			PublicURL:       s3.PublicURL,
		})
	default:
		return storage.NewDisk(cfg.Storage.Dir, cfg.Storage.URLPrefix)
	}
}
