package web

import (
    "bytes"
    "html/template"

    "github.com/jaminalder/cube-tic-tac-toe/internal/domain"
    "github.com/jaminalder/cube-tic-tac-toe/internal/i18n"
    "golang.org/x/text/language"
    "golang.org/x/text/language/display"
    "golang.org/x/text/message"
)

type templates struct {
    game  *template.Template
    board *template.Template
    index *template.Template
}

func loadTemplates() *templates {
    base := template.Must(template.New("base").Parse(`<!doctype html><html lang="{{.Lang}}"><head>
<meta charset="utf-8"/>
<title>{{.Title}}</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
<style>
.levels{display:flex;gap:2em}.row{display:flex}.row form{margin:0}
.row button{width:3em;height:3em;font-size:1.2em}.row button.win{background:#ffd54f}
</style>
</head><body>
<nav class="lang">{{range .Languages}}<a href="?lang={{.Tag}}"{{if .Active}} aria-current="true"{{end}}>{{.Label}}</a> {{end}}</nav>
{{template "content" .}}</body></html>`))
    template.Must(base.New("board").Parse(boardTemplate))
    index := template.Must(base.Clone())
    template.Must(index.New("content").Parse(`<h1>{{.Title}}</h1>
<form action="/game" method="post"><button>{{.NewGame}}</button></form>`))
    game := template.Must(base.Clone())
    template.Must(game.New("content").Parse(`<h1>{{.Title}}</h1>
<div hx-ext="sse" hx-sse="connect:/game/{{.Board.ID}}/events">
  <div hx-sse="swap:board">{{template "board" .Board}}</div>
</div>`))
    // Standalone board template used for fragment rendering
    board := template.Must(template.New("board_only").Parse(boardTemplate))
    return &templates{game: game, board: board, index: index}
}

func renderTemplate(t *template.Template, data any) ([]byte, error) {
    var buf bytes.Buffer
    if err := t.Execute(&buf, data); err != nil {
        return nil, err
    }
    return buf.Bytes(), nil
}

const boardTemplate = `<div id="board">
  <h2 class="status">{{.Status}}</h2>
  <div class="levels">
  {{range .Planes}}
    <div class="plane">
      <h3>{{.Label}}</h3>
      {{range .Rows}}
      <div class="row">
        {{range .}}
        <form hx-post="/game/{{$.ID}}/play" hx-target="#board" hx-swap="outerHTML" method="post" action="/game/{{$.ID}}/play">
          <input type="hidden" name="plane" value="{{.Plane}}">
          <input type="hidden" name="row" value="{{.Row}}">
          <input type="hidden" name="col" value="{{.Col}}">
          <button type="submit" data-cell="{{.Index}}"{{if .Win}} class="win"{{end}}>{{.Mark}}</button>
        </form>
        {{end}}
      </div>
      {{end}}
    </div>
  {{end}}
  </div>
  <div class="history">
    <h3>{{.HistoryTitle}}</h3>
    <ol start="0">
    {{range .History}}
      <li><form hx-post="/game/{{$.ID}}/jump" hx-target="#board" hx-swap="outerHTML" method="post" action="/game/{{$.ID}}/jump">
        <input type="hidden" name="ply" value="{{.Ply}}">
        <button type="submit"{{if .Current}} aria-current="step"{{end}}>{{.Label}}</button>
      </form></li>
    {{end}}
    </ol>
  </div>
</div>
`

type cellView struct {
    Index int
    Plane int
    Row   int
    Col   int
    Mark  string
    Win   bool
}

type planeView struct {
    Label string
    Rows  [domain.Size][domain.Size]cellView
}

type historyEntry struct {
    Ply     int
    Label   string
    Current bool
}

type boardView struct {
    ID           string
    Status       string
    Planes       [domain.Size]planeView
    HistoryTitle string
    History      []historyEntry
}

type langOption struct {
    Tag    string
    Label  string
    Active bool
}

type pageData struct {
    Lang      string
    Title     string
    NewGame   string
    Languages []langOption
    Board     boardView
}

// languageOptions lists every supported language, each named in itself.
func languageOptions(active language.Tag) []langOption {
    tags := i18n.Supported()
    out := make([]langOption, 0, len(tags))
    for _, tag := range tags {
        out = append(out, langOption{Tag: tag.String(), Label: display.Self.Name(tag), Active: tag == active})
    }
    return out
}

var planeKeys = [domain.Size]string{i18n.KeyPlaneTop, i18n.KeyPlaneMiddle, i18n.KeyPlaneBottom}

// statusText renders the status line for the position at the history pointer.
func statusText(p *message.Printer, st domain.Status) string {
    if st.Over {
        return p.Sprintf(i18n.KeyStatusWin, st.Winner.String())
    }
    return p.Sprintf(i18n.KeyStatusNext, st.Next.String())
}

// historyLabel renders the label of one jump-to entry.
func historyLabel(p *message.Printer, ply int) string {
    if ply == 0 {
        return p.Sprintf(i18n.KeyRestart)
    }
    return p.Sprintf(i18n.KeyGoToMove, ply)
}

func newBoardView(id string, h domain.History, p *message.Printer) boardView {
    st := h.Status()
    b := h.Current()
    win := make(map[int]bool, 3)
    if st.Over {
        for _, i := range st.Line {
            win[i] = true
        }
    }

    v := boardView{
        ID:           id,
        Status:       statusText(p, st),
        HistoryTitle: p.Sprintf(i18n.KeyHistory),
        History:      make([]historyEntry, h.Len()),
    }
    for pl := range v.Planes {
        v.Planes[pl].Label = p.Sprintf(planeKeys[pl])
        for local, c := range b.Plane(pl) {
            m := domain.MoveAt(pl*domain.PlaneCells + local)
            v.Planes[pl].Rows[m.Row][m.Col] = cellView{
                Index: m.Index(), Plane: pl, Row: m.Row, Col: m.Col,
                Mark: c.String(), Win: win[m.Index()],
            }
        }
    }
    for ply := range v.History {
        v.History[ply] = historyEntry{Ply: ply, Label: historyLabel(p, ply), Current: ply == h.Ply()}
    }
    return v
}
