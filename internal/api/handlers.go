package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/acollard/roomgate/internal/server"
	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"
)

func (a *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Printf("json encode: %v", err)
	}
}

func (a *App) render(w http.ResponseWriter, name string) {
	if err := a.templates.ExecuteTemplate(w, name, nil); err != nil {
		a.log.Printf("render %q: %v", name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	a.ensureSession(w, r)
	a.render(w, "index.html")
}

func (a *App) serveWs(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		errResp := NewBadRequestError()
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(a.allowedOrigins, origin)
		},
	}

	// each connection gets its own session id, even when one browser
	// opens several tabs
	sessionId, err := shortid.Generate()
	if err != nil {
		a.log.Println("generate session id:", err)
		errResp := NewInternalServerError(err)
		a.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(sessionId, conn, a.cs, a.log, a.stats)

	a.cs.RegisterClient(client)
	go client.Write()
	go client.Read()

	a.log.Printf("websocket session %s established", client.SessionId())
}
