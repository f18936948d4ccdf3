package web

import (
    "context"
    "errors"
    "net/http"
    "net/url"
    "strings"
    "sync"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/gorilla/websocket"
    "github.com/jaminalder/cube-tic-tac-toe/internal/app"
    "github.com/jaminalder/cube-tic-tac-toe/internal/domain"
)

const writeWait = 10 * time.Second

// wsRequest is a client event on the WebSocket channel.
type wsRequest struct {
    Type  string `json:"type"`
    Plane int    `json:"plane"`
    Row   int    `json:"row"`
    Col   int    `json:"col"`
    Ply   int    `json:"ply"`
}

// snapshot is the JSON view of a game, shared by /state and the WebSocket.
type snapshot struct {
    ID      string               `json:"id"`
    Version uint64               `json:"version"`
    Ply     int                  `json:"ply"`
    Plies   int                  `json:"plies"`
    Board   [domain.Cells]string `json:"board"`
    Next    string               `json:"next"`
    Winner  string               `json:"winner"`
    Line    []int                `json:"line"`
    Error   string               `json:"error,omitempty"`
}

func newSnapshot(gs app.GameState, errMsg string) snapshot {
    st := gs.History.Status()
    s := snapshot{
        ID:      gs.ID,
        Version: gs.Version,
        Ply:     gs.History.Ply(),
        Plies:   gs.History.Len(),
        Next:    st.Next.String(),
        Winner:  st.Winner.String(),
        Error:   errMsg,
    }
    for i, c := range gs.History.Current() {
        s.Board[i] = c.String()
    }
    if st.Over {
        s.Line = st.Line[:]
    }
    return s
}

// originChecker accepts same-host origins plus the configured list.
// With no list the upgrader's default same-origin check applies.
func originChecker(allowed []string) func(*http.Request) bool {
    if len(allowed) == 0 {
        return nil
    }
    set := make(map[string]struct{}, len(allowed))
    for _, o := range allowed {
        set[strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")] = struct{}{}
    }
    return func(r *http.Request) bool {
        origin := r.Header.Get("Origin")
        if origin == "" {
            return true
        }
        if _, ok := set[strings.ToLower(origin)]; ok {
            return true
        }
        u, err := url.Parse(origin)
        return err == nil && strings.EqualFold(u.Host, r.Host)
    }
}

// wsConn serializes writes to one WebSocket and keeps what the client saw
// last, so snapshots never go backwards in version.
type wsConn struct {
    mu   sync.Mutex
    conn *websocket.Conn
    last snapshot
    sent bool
}

// deliver writes s unless the client already holds that state or a newer one.
// A rejection older than the last write is reported against the last state.
func (c *wsConn) deliver(s snapshot) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.sent {
        switch {
        case s.Version < c.last.Version && s.Error == "":
            return nil
        case s.Version < c.last.Version:
            reason := s.Error
            s = c.last
            s.Error = reason
        case s.Version == c.last.Version && s.Error == "":
            return nil
        }
    }
    _ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
    if err := c.conn.WriteJSON(s); err != nil {
        return err
    }
    s.Error = ""
    c.last, c.sent = s, true
    return nil
}

func (c *wsConn) control(messageType int, data []byte) error {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.conn.WriteControl(messageType, data, time.Now().Add(writeWait))
}

func (h *handlers) ws(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")
    if _, ok := h.svc.Get(id); !ok {
        http.NotFound(w, r)
        return
    }
    conn, err := h.upgrader.Upgrade(w, r, nil)
    if err != nil {
        // Upgrade has already replied with an error status
        h.log.Debug("websocket upgrade failed", "game", id, "error", err)
        return
    }
    defer conn.Close()
    c := &wsConn{conn: conn}

    ctx, cancel := context.WithCancel(r.Context())
    defer cancel()
    updates, unsub, err := h.svc.Subscribe(ctx, id)
    if err != nil {
        return
    }
    defer unsub()

    // subscribed first, so no change between this read and the loop is missed
    gs, ok := h.svc.Get(id)
    if !ok {
        return
    }
    if err := c.deliver(newSnapshot(*gs, "")); err != nil {
        h.log.Debug("websocket write failed", "game", id, "error", err)
        return
    }
    go h.wsRead(ctx, cancel, c, id)

    ticker := time.NewTicker(h.heartbeat)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            if err := c.control(websocket.PingMessage, nil); err != nil {
                return
            }
        case st, ok := <-updates:
            if !ok {
                _ = c.control(websocket.CloseMessage,
                    websocket.FormatCloseMessage(websocket.CloseGoingAway, "game closed"))
                return
            }
            if err := c.deliver(newSnapshot(st, "")); err != nil {
                h.log.Debug("websocket write failed", "game", id, "error", err)
                return
            }
        }
    }
}

// wsRead applies client events in order and answers each one before reading
// the next, so results reach the client in the order requests were sent.
// Changes made by other clients arrive through the game subscription.
func (h *handlers) wsRead(ctx context.Context, cancel context.CancelFunc, c *wsConn, id string) {
    defer cancel()
    for {
        var req wsRequest
        if err := c.conn.ReadJSON(&req); err != nil {
            if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
                h.log.Debug("websocket read failed", "game", id, "error", err)
            }
            return
        }

        var gs *app.GameState
        var err error
        switch req.Type {
        case "play":
            gs, err = h.svc.Play(id, domain.Move{Plane: req.Plane, Row: req.Row, Col: req.Col})
        case "jump":
            gs, err = h.svc.JumpTo(id, req.Ply)
        default:
            var ok bool
            if gs, ok = h.svc.Get(id); !ok {
                return
            }
            err = errUnknownMessage
        }
        if errors.Is(err, app.ErrNotFound) || gs == nil {
            return
        }
        msg := ""
        if err != nil {
            msg = rejection(err)
        }
        if err := c.deliver(newSnapshot(*gs, msg)); err != nil {
            h.log.Debug("websocket write failed", "game", id, "error", err)
            return
        }
        if ctx.Err() != nil {
            return
        }
    }
}

var errUnknownMessage = errors.New("unknown message type")

func rejection(err error) string {
    switch {
    case errors.Is(err, domain.ErrOccupied):
        return "cell occupied"
    case errors.Is(err, domain.ErrGameOver):
        return "game over"
    case errors.Is(err, domain.ErrOutOfBounds):
        return "out of bounds"
    case errors.Is(err, domain.ErrPlyOutOfRange):
        return "ply out of range"
    case errors.Is(err, errUnknownMessage):
        return errUnknownMessage.Error()
    default:
        return "invalid request"
    }
}
