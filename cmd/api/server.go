package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func (app *application) serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.Port),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     log.New(app.logger, "", 0),
	}

	shutdownError := make(chan error)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go app.awaitShutdown(srv, quit, 20*time.Second, shutdownError)

	app.logger.PrintInfo("starting server", map[string]string{
		"addr": srv.Addr,
		"env":  app.config.Env,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.PrintInfo("stopped server", map[string]string{
		"addr": srv.Addr,
	})

	return nil
}

// awaitShutdown 收到信号后关闭服务器，并通过 shutdownError 只回传一次结果
func (app *application) awaitShutdown(srv *http.Server, quit <-chan os.Signal, timeout time.Duration, shutdownError chan<- error) {
	s := <-quit

	app.logger.PrintInfo("shutting down server", map[string]string{
		"signal": s.String(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if err != nil {
		shutdownError <- err
		return
	}

	// 等待后台任务（如欢迎邮件）完成
	app.logger.PrintInfo("completing background tasks", map[string]string{
		"addr": srv.Addr,
	})

	app.wg.Wait()
	shutdownError <- nil
}
