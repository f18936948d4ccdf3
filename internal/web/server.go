package web

import (
    "io"
    "log/slog"
    "net/http"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/gorilla/websocket"
    "github.com/jaminalder/cube-tic-tac-toe/internal/app"
    "github.com/jaminalder/cube-tic-tac-toe/internal/i18n"
)

// Option configures the HTTP server.
type Option func(*handlers)

// WithLogger sets the logger used for access logs and handler errors.
func WithLogger(l *slog.Logger) Option {
    return func(h *handlers) {
        if l != nil {
            h.log = l
        }
    }
}

// WithHeartbeat sets the SSE and WebSocket keep-alive interval.
func WithHeartbeat(d time.Duration) Option {
    return func(h *handlers) {
        if d > 0 {
            h.heartbeat = d
        }
    }
}

// WithDefaultLanguage sets the fallback UI language.
func WithDefaultLanguage(lang string) Option {
    return func(h *handlers) { h.lang = i18n.NewResolver(lang) }
}

// WithAllowedOrigins lists cross-origin pages allowed to open the WebSocket.
func WithAllowedOrigins(origins []string) Option {
    return func(h *handlers) { h.upgrader.CheckOrigin = originChecker(origins) }
}

// NewServer wires routes and returns an http.Handler.
func NewServer(s *app.Service, opts ...Option) http.Handler {
    h := &handlers{
        svc:       s,
        tpl:       loadTemplates(),
        log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
        heartbeat: 15 * time.Second,
        lang:      i18n.NewResolver("en"),
        upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
    }
    for _, o := range opts {
        o(h)
    }
    h.log = h.log.With("component", "web")

    r := chi.NewRouter()
    r.Use(middleware.RequestID)
    r.Use(middleware.RealIP)
    r.Use(requestLogger(h.log))
    r.Use(middleware.Recoverer)

    r.Get("/", h.index)
    r.Get("/healthz", h.healthz)
    r.Post("/game", h.create)
    r.Route("/game/{id}", func(r chi.Router) {
        r.Get("/", h.view)
        r.Get("/state", h.state)
        r.Post("/play", h.play)
        r.Post("/jump", h.jump)
        r.Get("/events", h.events)
        r.Get("/ws", h.ws)
    })
    return r
}

// requestLogger writes one access log line per request.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
            start := time.Now()
            defer func() {
                log.Info("http request",
                    "method", r.Method,
                    "path", r.URL.Path,
                    "status", ww.Status(),
                    "bytes", ww.BytesWritten(),
                    "duration", time.Since(start),
                    "request_id", middleware.GetReqID(r.Context()),
                )
            }()
            next.ServeHTTP(ww, r)
        })
    }
}
