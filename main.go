package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kidandcat/tracker/internal/api"
	"github.com/kidandcat/tracker/internal/auth"
	"github.com/kidandcat/tracker/internal/config"
	"github.com/kidandcat/tracker/internal/db"
	"github.com/kidandcat/tracker/internal/files"
	"github.com/kidandcat/tracker/internal/mail"
	"github.com/kidandcat/tracker/internal/service"
	"github.com/kidandcat/tracker/internal/ws"
)

func main() {
	var flags config.Flags
	flag.StringVar(&flags.ConfigPath, "config", "", "path to a YAML config file")
	flag.StringVar(&flags.Addr, "addr", "", "listen address")
	flag.StringVar(&flags.BaseURL, "base-url", "", "public URL used in invitation links")
	flag.StringVar(&flags.DataDir, "data-dir", "", "directory for the SQLite database and uploads")
	flag.Parse()

	cfg, err := config.Load(flags)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("tracker stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	gdb, err := db.Open(cfg.Database, cfg.DataDir, log)
	if err != nil {
		return err
	}
	store := db.New(gdb)
	defer store.Close()

	blobs, err := files.NewDisk(cfg.UploadDir())
	if err != nil {
		return err
	}

	hub := ws.NewHub(log)
	defer hub.Close()

	svc := service.New(service.Deps{
		Store:     store,
		Blobs:     blobs,
		Hub:       hub,
		Mailer:    mail.New(cfg.Email, log),
		Tokens:    auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.TTL),
		InviteURL: cfg.AcceptInvitationURL(),
		Log:       log,
	})

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.New(api.Options{
			Services:    svc,
			Room:        hub,
			Health:      store,
			Log:         log,
			CORSOrigins: cfg.CORSOrigins,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("tracker listening", "addr", cfg.Addr, "db", cfg.Database.Driver)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	// Websocket connections are hijacked and not tracked by Shutdown.
	hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
