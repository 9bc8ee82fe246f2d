package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the operational endpoint on addr until ctx is cancelled, then
// shuts it down gracefully.
func Serve(ctx context.Context, addr string, deps *RouterDeps) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return serve(ctx, ln, deps)
}

func serve(ctx context.Context, ln net.Listener, deps *RouterDeps) error {
	srv := &http.Server{
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		deps.Log.WithField("addr", ln.Addr().String()).Info("operational endpoint listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		deps.Log.WithError(err).Warn("operational endpoint shutdown")
		return err
	}
	deps.Log.WithFields(logrus.Fields{"addr": ln.Addr().String()}).Info("operational endpoint stopped")
	return nil
}
