package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ewczhang/poisoncake/internal/cache"
	"github.com/ewczhang/poisoncake/internal/handlers"
)

// statusInterval is how often the online-count status line is logged.
const statusInterval = 10 * time.Second

func serve(ctx context.Context, cfg *Config) error {
	logger := logrus.New()
	if cfg.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	var feed *cache.Publisher
	if cfg.redisAddr != "" {
		var err error
		feed, err = cache.NewPublisher(cfg.redisAddr, cfg.redisQueue, logger)
		if err != nil {
			return err
		}
		defer feed.Close()
		logger.Infof("room-event feed enabled at %s", cfg.redisAddr)
	}

	gs := handlers.NewGameServer(logger, feed)

	server := &http.Server{
		Handler:      handlers.Routes(logger, gs, cfg.externalURL, releaseVersion),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	l, err := net.Listen("tcp", net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)))
	if err != nil {
		return err
	}
	logger.Infof("poisoncake v%s listening on %s", releaseVersion, l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	// Periodic status line, matching the lobby screen's expectations of a
	// long-running party server: who is on, how many rooms are live.
	statusCtx, stopStatus := context.WithCancel(ctx)
	defer stopStatus()
	go func() {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-statusCtx.Done():
				return
			case <-ticker.C:
				logger.WithFields(logrus.Fields{
					"connections": gs.ConnCount(),
					"rooms":       gs.Store.RoomCount(),
				}).Info("server status")
			}
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
		return err
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	case <-ctx.Done():
		logger.Info("terminating: context cancelled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
