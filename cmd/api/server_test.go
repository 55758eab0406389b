package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwaitShutdownReturnsAfterFailedShutdown(t *testing.T) {
	app, _ := newTestApplication(t)

	entered := make(chan struct{})
	release := make(chan struct{})

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)

	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			resp.Body.Close()
		}
	}()
	<-entered

	// 仍有后台任务未完成
	app.wg.Add(1)
	defer app.wg.Done()

	quit := make(chan os.Signal, 1)
	shutdownError := make(chan error)
	done := make(chan struct{})

	go func() {
		app.awaitShutdown(srv, quit, 10*time.Millisecond, shutdownError)
		close(done)
	}()

	quit <- syscall.SIGTERM

	select {
	case err := <-shutdownError:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("no shutdown result")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("awaitShutdown still running after a failed shutdown")
	}
}

func TestAwaitShutdownWaitsForBackgroundTasks(t *testing.T) {
	app, _ := newTestApplication(t)

	srv := &http.Server{Handler: http.NotFoundHandler()}

	finished := make(chan struct{})
	app.background(func() {
		time.Sleep(50 * time.Millisecond)
		close(finished)
	})

	quit := make(chan os.Signal, 1)
	shutdownError := make(chan error)
	go app.awaitShutdown(srv, quit, time.Second, shutdownError)

	quit <- syscall.SIGINT

	select {
	case err := <-shutdownError:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("no shutdown result")
	}

	select {
	case <-finished:
	default:
		t.Fatal("shutdown completed before the background task")
	}
}
