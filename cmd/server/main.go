package main

import (
    "context"
    "errors"
    "flag"
    "fmt"
    "log/slog"
    "net"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/jaminalder/cube-tic-tac-toe/internal/app"
    "github.com/jaminalder/cube-tic-tac-toe/internal/config"
    "github.com/jaminalder/cube-tic-tac-toe/internal/web"
)

func main() {
    defer func() {
        if err := recover(); err != nil {
            fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
            os.Exit(1)
        }
    }()

    path := flag.String("config", "config.yml", "path to the yaml config file")
    flag.Parse()

    conf := config.MustLoad(*path)
    logger := initLogger(conf)

    if err := run(logger, conf); err != nil {
        panic(fmt.Errorf("app run failed: %w", err))
    }
}

func initLogger(conf *config.Config) *slog.Logger {
    var level slog.Level

    switch conf.LogLevel {
    case "debug":
        level = slog.LevelDebug
    case "warn":
        level = slog.LevelWarn
    case "error":
        level = slog.LevelError
    default:
        level = slog.LevelInfo
    }

    return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func run(logger *slog.Logger, conf *config.Config) error {
    log := logger.With("component", "main")

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    svc := app.NewService(app.WithLogger(logger))
    go svc.RunReaper(ctx, conf.Sessions.ReapInterval, conf.Sessions.TTL)

    handler := web.NewServer(svc,
        web.WithLogger(logger),
        web.WithHeartbeat(conf.HTTP.HeartbeatInterval),
        web.WithDefaultLanguage(conf.Language),
        web.WithAllowedOrigins(conf.HTTP.AllowedOrigins),
    )

    // no write timeout: SSE and WebSocket responses are long lived and end
    // through the base context on shutdown
    srv := &http.Server{
        Addr:              conf.HTTP.Addr(),
        Handler:           handler,
        ReadHeaderTimeout: conf.HTTP.ReadHeaderTimeout,
        IdleTimeout:       conf.HTTP.IdleTimeout,
        BaseContext:       func(net.Listener) context.Context { return ctx },
    }

    errCh := make(chan error, 1)
    go func() {
        log.Info("starting HTTP server", "addr", srv.Addr)
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            errCh <- err
        }
        close(errCh)
    }()

    select {
    case err := <-errCh:
        if err != nil {
            return fmt.Errorf("HTTP server error: %w", err)
        }
        return nil
    case <-ctx.Done():
        log.Info("received signal, shutting down")
    }

    shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.HTTP.ShutdownTimeout)
    defer cancel()
    if err := srv.Shutdown(shutdownCtx); err != nil {
        return fmt.Errorf("shutdown: %w", err)
    }
    return nil
}
