// Package i18n holds the translated strings shown by the game UI and resolves
// the language of a request.
package i18n

import (
    "net/http"
    "strings"
    "time"

    "golang.org/x/text/language"
    "golang.org/x/text/message"
)

const (
    // LangParam is the query parameter used to select a language.
    LangParam = "lang"
    // LangCookieName stores the player's language preference.
    LangCookieName = "lang"
)

// Message keys.
const (
    KeyTitle       = "page.title"
    KeyNewGame     = "page.new_game"
    KeyHistory     = "page.history"
    KeyStatusWin   = "status.winner"
    KeyStatusNext  = "status.next"
    KeyPlaneTop    = "plane.top"
    KeyPlaneMiddle = "plane.middle"
    KeyPlaneBottom = "plane.bottom"
    KeyRestart     = "history.restart"
    KeyGoToMove    = "history.go_to_move"
)

var catalogs = map[language.Tag]map[string]string{
    language.English: {
        KeyTitle:       "3D Tic-Tac-Toe",
        KeyNewGame:     "New game",
        KeyHistory:     "Move history",
        KeyStatusWin:   "winner: %s",
        KeyStatusNext:  "next to play: %s",
        KeyPlaneTop:    "Top",
        KeyPlaneMiddle: "Middle",
        KeyPlaneBottom: "Bottom",
        KeyRestart:     "restart",
        KeyGoToMove:    "go to move #%d",
    },
    language.BrazilianPortuguese: {
        KeyTitle:       "Jogo da Velha 3D",
        KeyNewGame:     "Novo jogo",
        KeyHistory:     "Histórico de Jogadas",
        KeyStatusWin:   "🏆 Vencedor: %s",
        KeyStatusNext:  "Próximo a jogar: %s",
        KeyPlaneTop:    "Plano Superior",
        KeyPlaneMiddle: "Plano Médio",
        KeyPlaneBottom: "Plano Inferior",
        KeyRestart:     "Voltar ao início do jogo",
        KeyGoToMove:    "Ir para movimento #%d",
    },
}

var supported = []language.Tag{language.English, language.BrazilianPortuguese}

var matcher = language.NewMatcher(supported)

func init() {
    for tag, msgs := range catalogs {
        for key, value := range msgs {
            if err := message.SetString(tag, key, value); err != nil {
                panic(err)
            }
        }
    }
}

// Supported returns the supported language tags, default first.
func Supported() []language.Tag {
    out := make([]language.Tag, len(supported))
    copy(out, supported)
    return out
}

// Match maps any tags to the closest supported tag.
func Match(tags ...language.Tag) language.Tag {
    _, idx, conf := matcher.Match(tags...)
    if conf == language.No {
        return supported[0]
    }
    return supported[idx]
}

// Parse maps a raw language value to a supported tag.
func Parse(value string) (language.Tag, bool) {
    tag, err := language.Parse(strings.TrimSpace(value))
    if err != nil {
        return language.Und, false
    }
    _, idx, conf := matcher.Match(tag)
    if conf == language.No {
        return language.Und, false
    }
    return supported[idx], true
}

// Printer returns a message printer for tag.
func Printer(tag language.Tag) *message.Printer {
    return message.NewPrinter(tag)
}

// Resolver picks the language of a request.
type Resolver struct {
    Default language.Tag
}

// NewResolver builds a resolver falling back to def, or English when def is not supported.
func NewResolver(def string) Resolver {
    tag, ok := Parse(def)
    if !ok {
        tag = supported[0]
    }
    return Resolver{Default: tag}
}

// Resolve determines the best language tag for the request.
// The bool indicates whether the lang query param should be persisted as a cookie.
func (rs Resolver) Resolve(r *http.Request) (language.Tag, bool) {
    if v := r.URL.Query().Get(LangParam); v != "" {
        if tag, ok := Parse(v); ok {
            return tag, true
        }
    }
    if c, err := r.Cookie(LangCookieName); err == nil {
        if tag, ok := Parse(c.Value); ok {
            return tag, false
        }
    }
    if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
        if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
            if _, _, conf := matcher.Match(tags...); conf != language.No {
                return Match(tags...), false
            }
        }
    }
    return rs.Default, false
}

// SetCookie persists the selected language on the response.
func SetCookie(w http.ResponseWriter, tag language.Tag) {
    http.SetCookie(w, &http.Cookie{
        Name:     LangCookieName,
        Value:    tag.String(),
        Path:     "/",
        MaxAge:   int((365 * 24 * time.Hour).Seconds()),
        SameSite: http.SameSiteLaxMode,
    })
}
