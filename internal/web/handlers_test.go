package web

import (
    "bufio"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "net/url"
    "strings"
    "testing"
    "time"

    "github.com/jaminalder/cube-tic-tac-toe/internal/app"
    "github.com/jaminalder/cube-tic-tac-toe/internal/domain"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...Option) (*app.Service, http.Handler) {
    t.Helper()
    s := app.NewService()
    h := NewServer(s, opts...)
    return s, h
}

func postForm(h http.Handler, path string, form url.Values, header http.Header) *httptest.ResponseRecorder {
    req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
    req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
    for k, v := range header {
        req.Header[k] = v
    }
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    return rr
}

func moveForm(plane, row, col string) url.Values {
    return url.Values{"plane": {plane}, "row": {row}, "col": {col}}
}

func TestIndexPage(t *testing.T) {
    _, h := newTestServer(t)
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    rr := httptest.NewRecorder()

    h.ServeHTTP(rr, req)

    require.Equal(t, http.StatusOK, rr.Code)
    body := rr.Body.String()
    assert.Contains(t, body, "<form")
    assert.Contains(t, body, `action="/game"`)
    assert.Contains(t, body, "htmx.org")
}

func TestHealthz(t *testing.T) {
    _, h := newTestServer(t)
    rr := httptest.NewRecorder()

    h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

    assert.Equal(t, http.StatusOK, rr.Code)
    assert.Equal(t, "ok", rr.Body.String())
}

func TestCreateRedirectsToGame(t *testing.T) {
    svc, h := newTestServer(t)

    rr := postForm(h, "/game", nil, nil)

    require.Equal(t, http.StatusSeeOther, rr.Code)
    loc := rr.Result().Header.Get("Location")
    require.True(t, strings.HasPrefix(loc, "/game/"), "location %q", loc)
    _, ok := svc.Get(strings.TrimPrefix(loc, "/game/"))
    assert.True(t, ok)
}

func TestGamePageRendersBoard(t *testing.T) {
    svc, h := newTestServer(t)
    gs, _ := svc.CreateGame()

    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/game/"+gs.ID, nil))

    require.Equal(t, http.StatusOK, rr.Code)
    body := rr.Body.String()
    assert.Equal(t, 27, strings.Count(body, "data-cell="))
    assert.Contains(t, body, ">Top<")
    assert.Contains(t, body, ">Middle<")
    assert.Contains(t, body, ">Bottom<")
    assert.Contains(t, body, "next to play: X")
    assert.Contains(t, body, "restart")
    assert.Contains(t, body, `hx-ext="sse"`)
    assert.Contains(t, body, "/game/"+gs.ID+"/events")
}

func TestGamePageUnknownID(t *testing.T) {
    _, h := newTestServer(t)
    rr := httptest.NewRecorder()

    h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/game/missing", nil))

    assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlayEndpointUpdatesStateAndReturnsFragment(t *testing.T) {
    svc, h := newTestServer(t)
    gs, _ := svc.CreateGame()

    rr := postForm(h, "/game/"+gs.ID+"/play", moveForm("1", "1", "1"), nil)

    require.Equal(t, http.StatusOK, rr.Code)
    body := rr.Body.String()
    assert.Contains(t, body, `id="board"`)
    assert.Contains(t, body, "next to play: O")
    assert.Contains(t, body, "go to move #1")
    latest, _ := svc.Get(gs.ID)
    assert.Equal(t, 1, latest.History.Ply())
    assert.Equal(t, domain.X, latest.History.Current()[13])
}

func TestPlayOccupiedIsSilentNoop(t *testing.T) {
    svc, h := newTestServer(t)
    gs, _ := svc.CreateGame()
    _, err := svc.Play(gs.ID, domain.Move{})
    require.NoError(t, err)

    rr := postForm(h, "/game/"+gs.ID+"/play", moveForm("0", "0", "0"), nil)

    require.Equal(t, http.StatusOK, rr.Code)
    assert.Contains(t, rr.Body.String(), "next to play: O")
    latest, _ := svc.Get(gs.ID)
    assert.Equal(t, 1, latest.History.Ply())
}

func TestPlayMalformedInput(t *testing.T) {
    svc, h := newTestServer(t)
    gs, _ := svc.CreateGame()

    rr := postForm(h, "/game/"+gs.ID+"/play", moveForm("0", "x", "0"), nil)

    assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPlayUnknownGame(t *testing.T) {
    _, h := newTestServer(t)

    rr := postForm(h, "/game/missing/play", moveForm("0", "0", "0"), nil)

    assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWinnerIsShownAndHighlighted(t *testing.T) {
    svc, h := newTestServer(t)
    gs, _ := svc.CreateGame()
    // X takes the space diagonal 0, 13, 26
    for _, m := range []domain.Move{{Plane: 0, Row: 0, Col: 0}, {Plane: 0, Row: 0, Col: 1}, {Plane: 1, Row: 1, Col: 1}, {Plane: 0, Row: 0, Col: 2}} {
        _, err := svc.Play(gs.ID, m)
        require.NoError(t, err)
    }

    rr := postForm(h, "/game/"+gs.ID+"/play", moveForm("2", "2", "2"), nil)

    require.Equal(t, http.StatusOK, rr.Code)
    body := rr.Body.String()
    assert.Contains(t, body, "winner: X")
    assert.Equal(t, 3, strings.Count(body, `class="win"`))
}

func TestJumpThenPlayTruncates(t *testing.T) {
    svc, h := newTestServer(t)
    gs, _ := svc.CreateGame()
    for _, m := range []domain.Move{{Plane: 0, Row: 0, Col: 0}, {Plane: 0, Row: 0, Col: 1}, {Plane: 0, Row: 0, Col: 2}} {
        _, err := svc.Play(gs.ID, m)
        require.NoError(t, err)
    }

    rr := postForm(h, "/game/"+gs.ID+"/jump", url.Values{"ply": {"1"}}, nil)
    require.Equal(t, http.StatusOK, rr.Code)
    assert.Contains(t, rr.Body.String(), "next to play: O")
    assert.Contains(t, rr.Body.String(), "go to move #3")

    rr = postForm(h, "/game/"+gs.ID+"/play", moveForm("2", "2", "2"), nil)
    require.Equal(t, http.StatusOK, rr.Code)
    assert.NotContains(t, rr.Body.String(), "go to move #3")

    latest, _ := svc.Get(gs.ID)
    assert.Equal(t, 3, latest.History.Len())
    assert.Equal(t, 2, latest.History.Ply())
}

func TestJumpOutOfRange(t *testing.T) {
    svc, h := newTestServer(t)
    gs, _ := svc.CreateGame()

    rr := postForm(h, "/game/"+gs.ID+"/jump", url.Values{"ply": {"4"}}, nil)

    assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLocalizedBoard(t *testing.T) {
    svc, h := newTestServer(t)
    gs, _ := svc.CreateGame()
    _, _ = svc.Play(gs.ID, domain.Move{})

    header := http.Header{"Accept-Language": {"pt-BR,pt;q=0.9"}}
    rr := postForm(h, "/game/"+gs.ID+"/jump", url.Values{"ply": {"1"}}, header)

    require.Equal(t, http.StatusOK, rr.Code)
    body := rr.Body.String()
    assert.Contains(t, body, "Próximo a jogar: O")
    assert.Contains(t, body, "Plano Superior")
    assert.Contains(t, body, "Voltar ao início do jogo")
    assert.Contains(t, body, "Ir para movimento #1")
}

func TestLangQueryPersistsCookie(t *testing.T) {
    _, h := newTestServer(t, WithDefaultLanguage("en"))
    rr := httptest.NewRecorder()

    h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/?lang=pt-BR", nil))

    require.Equal(t, http.StatusOK, rr.Code)
    assert.Contains(t, rr.Body.String(), `lang="pt-BR"`)
    var found bool
    for _, c := range rr.Result().Cookies() {
        if c.Name == "lang" && c.Value == "pt-BR" {
            found = true
        }
    }
    assert.True(t, found, "expected lang cookie")
}

func TestStateEndpoint(t *testing.T) {
    svc, h := newTestServer(t)
    gs, _ := svc.CreateGame()
    _, _ = svc.Play(gs.ID, domain.Move{Plane: 2, Row: 0, Col: 1})

    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/game/"+gs.ID+"/state", nil))

    require.Equal(t, http.StatusOK, rr.Code)
    var snap snapshot
    require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
    assert.Equal(t, gs.ID, snap.ID)
    assert.Equal(t, 1, snap.Ply)
    assert.Equal(t, 2, snap.Plies)
    assert.Equal(t, "X", snap.Board[19])
    assert.Equal(t, "O", snap.Next)
    assert.Empty(t, snap.Winner)
    assert.Nil(t, snap.Line)
}

func TestEventsEndpointSSEHeaders(t *testing.T) {
    _, h := newTestServer(t)
    rrCreate := postForm(h, "/game", nil, nil)
    loc := rrCreate.Result().Header.Get("Location")
    require.NotEmpty(t, loc)

    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, loc+"/events", nil))

    require.Equal(t, http.StatusOK, rr.Code)
    assert.True(t, strings.HasPrefix(rr.Result().Header.Get("Content-Type"), "text/event-stream"))
}

func TestEventsStreamBoardUpdates(t *testing.T) {
    svc, h := newTestServer(t)
    srv := httptest.NewServer(h)
    defer srv.Close()
    gs, _ := svc.CreateGame()

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/game/"+gs.ID+"/events", nil)
    require.NoError(t, err)
    req.Header.Set("Accept", "text/event-stream")
    resp, err := srv.Client().Do(req)
    require.NoError(t, err)
    defer resp.Body.Close()
    require.Equal(t, http.StatusOK, resp.StatusCode)

    // headers are flushed after the subscription is registered
    _, err = svc.Play(gs.ID, domain.Move{Plane: 0, Row: 2, Col: 2})
    require.NoError(t, err)

    sc := bufio.NewScanner(resp.Body)
    var sawEvent, sawStatus bool
    for sc.Scan() {
        line := sc.Text()
        if line == "event: board" {
            sawEvent = true
        }
        if sawEvent && strings.HasPrefix(line, "data: ") && strings.Contains(line, "next to play: O") {
            sawStatus = true
            break
        }
    }
    assert.True(t, sawEvent, "expected board event")
    assert.True(t, sawStatus, "expected rendered status in event data")
}

func openEvents(t *testing.T, srv *httptest.Server, id string) *bufio.Scanner {
    t.Helper()
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    t.Cleanup(cancel)
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/game/"+id+"/events", nil)
    require.NoError(t, err)
    req.Header.Set("Accept", "text/event-stream")
    resp, err := srv.Client().Do(req)
    require.NoError(t, err)
    t.Cleanup(func() { resp.Body.Close() })
    require.Equal(t, http.StatusOK, resp.StatusCode)
    return bufio.NewScanner(resp.Body)
}

// nextBoardEvent returns the data lines of the next board event.
func nextBoardEvent(t *testing.T, sc *bufio.Scanner) string {
    t.Helper()
    var data strings.Builder
    inEvent := false
    for sc.Scan() {
        line := sc.Text()
        switch {
        case line == "event: board":
            inEvent = true
        case inEvent && strings.HasPrefix(line, "data: "):
            data.WriteString(strings.TrimPrefix(line, "data: "))
            data.WriteByte('\n')
        case inEvent && line == "":
            return data.String()
        }
    }
    require.NoError(t, sc.Err())
    t.Fatal("event stream ended before a board event")
    return ""
}

func TestEventsSendsCurrentBoardOnConnect(t *testing.T) {
    svc, h := newTestServer(t)
    srv := httptest.NewServer(h)
    defer srv.Close()

    fresh, _ := svc.CreateGame()
    ev := nextBoardEvent(t, openEvents(t, srv, fresh.ID))
    assert.Contains(t, ev, "next to play: X")

    played, _ := svc.CreateGame()
    _, err := svc.Play(played.ID, domain.Move{Plane: 1, Row: 1, Col: 1})
    require.NoError(t, err)
    ev = nextBoardEvent(t, openEvents(t, srv, played.ID))
    assert.Contains(t, ev, "next to play: O")
}

func TestEventsBurstEndsOnLatestBoard(t *testing.T) {
    svc, h := newTestServer(t)
    srv := httptest.NewServer(h)
    defer srv.Close()
    gs, _ := svc.CreateGame()

    sc := openEvents(t, srv, gs.ID)
    assert.Contains(t, nextBoardEvent(t, sc), "next to play: X")

    // X 0, O 9, X 1, O 10, X 2 wins the top row
    for _, i := range []int{0, 9, 1, 10, 2} {
        _, err := svc.Play(gs.ID, domain.MoveAt(i))
        require.NoError(t, err)
    }
    // intermediate boards may be skipped, the last one may not
    for !strings.Contains(nextBoardEvent(t, sc), "winner: X") {
    }
}

func TestPagesOfferLanguageSwitch(t *testing.T) {
    svc, h := newTestServer(t)
    gs, _ := svc.CreateGame()

    for _, path := range []string{"/", "/game/" + gs.ID} {
        rr := httptest.NewRecorder()
        h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

        require.Equal(t, http.StatusOK, rr.Code, path)
        body := rr.Body.String()
        assert.Contains(t, body, `href="?lang=en"`, path)
        assert.Contains(t, body, `href="?lang=pt-BR"`, path)
        assert.Contains(t, body, "English", path)
        assert.Contains(t, body, "português", path)
    }
}
