package web

import (
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "log/slog"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/gorilla/websocket"
    "github.com/jaminalder/cube-tic-tac-toe/internal/app"
    "github.com/jaminalder/cube-tic-tac-toe/internal/domain"
    "github.com/jaminalder/cube-tic-tac-toe/internal/i18n"
    "golang.org/x/text/language"
    "golang.org/x/text/message"
)

type handlers struct {
    svc       *app.Service
    tpl       *templates
    log       *slog.Logger
    heartbeat time.Duration
    lang      i18n.Resolver
    upgrader  websocket.Upgrader
}

// locale resolves the request language, persisting an explicit ?lang choice.
func (h *handlers) locale(w http.ResponseWriter, r *http.Request) (language.Tag, *message.Printer) {
    tag, persist := h.lang.Resolve(r)
    if persist {
        i18n.SetCookie(w, tag)
    }
    return tag, i18n.Printer(tag)
}

func (h *handlers) renderBoard(gs app.GameState, p *message.Printer) ([]byte, error) {
    return renderTemplate(h.tpl.board, newBoardView(gs.ID, gs.History, p))
}

func (h *handlers) writeHTML(w http.ResponseWriter, status int, body []byte, err error) {
    if err != nil {
        h.log.Error("render failed", "error", err)
        http.Error(w, "render failed", http.StatusInternalServerError)
        return
    }
    w.Header().Set("Content-Type", "text/html; charset=utf-8")
    w.WriteHeader(status)
    _, _ = w.Write(body)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
    w.Header().Set("Content-Type", "text/plain; charset=utf-8")
    _, _ = io.WriteString(w, "ok")
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
    tag, p := h.locale(w, r)
    body, err := renderTemplate(h.tpl.index, pageData{
        Lang:      tag.String(),
        Title:     p.Sprintf(i18n.KeyTitle),
        NewGame:   p.Sprintf(i18n.KeyNewGame),
        Languages: languageOptions(tag),
    })
    h.writeHTML(w, http.StatusOK, body, err)
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
    gs, err := h.svc.CreateGame()
    if err != nil {
        http.Error(w, "failed to create", http.StatusInternalServerError)
        return
    }
    http.Redirect(w, r, "/game/"+gs.ID, http.StatusSeeOther)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
    gs, ok := h.svc.Get(chi.URLParam(r, "id"))
    if !ok {
        http.NotFound(w, r)
        return
    }
    tag, p := h.locale(w, r)
    body, err := renderTemplate(h.tpl.game, pageData{
        Lang:      tag.String(),
        Title:     p.Sprintf(i18n.KeyTitle),
        Languages: languageOptions(tag),
        Board:     newBoardView(gs.ID, gs.History, p),
    })
    h.writeHTML(w, http.StatusOK, body, err)
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
    gs, ok := h.svc.Get(chi.URLParam(r, "id"))
    if !ok {
        http.NotFound(w, r)
        return
    }
    w.Header().Set("Content-Type", "application/json")
    if err := json.NewEncoder(w).Encode(newSnapshot(*gs, "")); err != nil {
        h.log.Error("encode state", "error", err)
    }
}

func (h *handlers) play(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")
    m, err := parseMove(r)
    if err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest)
        return
    }
    gs, err := h.svc.Play(id, m)
    if !h.checkTransition(w, r, id, err) {
        return
    }
    _, p := h.locale(w, r)
    body, err := h.renderBoard(*gs, p)
    h.writeHTML(w, http.StatusOK, body, err)
}

func (h *handlers) jump(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")
    ply, err := formInt(r, "ply")
    if err != nil {
        http.Error(w, err.Error(), http.StatusBadRequest)
        return
    }
    gs, err := h.svc.JumpTo(id, ply)
    if !h.checkTransition(w, r, id, err) {
        return
    }
    _, p := h.locale(w, r)
    body, err := h.renderBoard(*gs, p)
    h.writeHTML(w, http.StatusOK, body, err)
}

// checkTransition maps a service error to a response. Rejected moves are
// routine and still render the unchanged board.
func (h *handlers) checkTransition(w http.ResponseWriter, r *http.Request, id string, err error) bool {
    switch {
    case err == nil:
        return true
    case errors.Is(err, app.ErrNotFound):
        http.NotFound(w, r)
    case domain.IsRejected(err):
        h.log.Debug("move rejected", "game", id, "reason", err)
        return true
    case errors.Is(err, domain.ErrPlyOutOfRange):
        http.Error(w, "ply out of range", http.StatusBadRequest)
    default:
        h.log.Error("transition failed", "game", id, "error", err)
        http.Error(w, "internal error", http.StatusInternalServerError)
    }
    return false
}

func parseMove(r *http.Request) (domain.Move, error) {
    var m domain.Move
    var err error
    if m.Plane, err = formInt(r, "plane"); err != nil {
        return m, err
    }
    if m.Row, err = formInt(r, "row"); err != nil {
        return m, err
    }
    if m.Col, err = formInt(r, "col"); err != nil {
        return m, err
    }
    return m, nil
}

func formInt(r *http.Request, name string) (int, error) {
    v, err := strconv.Atoi(strings.TrimSpace(r.FormValue(name)))
    if err != nil {
        return 0, fmt.Errorf("invalid %s", name)
    }
    return v, nil
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")
    if _, ok := h.svc.Get(id); !ok {
        http.NotFound(w, r)
        return
    }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("X-Accel-Buffering", "no")
    // Only EventSource clients get a stream
    if r.Header.Get("Accept") != "text/event-stream" {
        w.WriteHeader(http.StatusOK)
        return
    }
    flusher, ok := w.(http.Flusher)
    if !ok {
        w.WriteHeader(http.StatusOK)
        return
    }
    ctx := r.Context()
    ch, unsub, err := h.svc.Subscribe(ctx, id)
    if err != nil {
        http.NotFound(w, r)
        return
    }
    defer unsub()
    _, p := h.locale(w, r)

    ticker := time.NewTicker(h.heartbeat)
    defer ticker.Stop()
    w.WriteHeader(http.StatusOK)

    // a (re)connecting client starts from the current board
    gs, ok := h.svc.Get(id)
    if !ok {
        return
    }
    if !h.sendBoard(w, *gs, p) {
        return
    }
    flusher.Flush()
    seen := gs.Version
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            _, _ = io.WriteString(w, ": ping\n\n")
            flusher.Flush()
        case st, ok := <-ch:
            if !ok {
                return
            }
            if st.Version <= seen {
                continue
            }
            if !h.sendBoard(w, st, p) {
                return
            }
            seen = st.Version
            flusher.Flush()
        }
    }
}

func (h *handlers) sendBoard(w io.Writer, gs app.GameState, p *message.Printer) bool {
    b, err := h.renderBoard(gs, p)
    if err != nil {
        h.log.Error("render failed", "game", gs.ID, "error", err)
        return false
    }
    writeEvent(w, "board", b)
    return true
}

// writeEvent emits one SSE event; every payload line needs its own data field.
func writeEvent(w io.Writer, name string, payload []byte) {
    _, _ = fmt.Fprintf(w, "event: %s\n", name)
    for _, line := range strings.Split(strings.TrimRight(string(payload), "\n"), "\n") {
        _, _ = fmt.Fprintf(w, "data: %s\n", line)
    }
    _, _ = io.WriteString(w, "\n")
}
