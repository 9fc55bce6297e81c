package api

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/acollard/roomgate/internal/config"
	"github.com/acollard/roomgate/internal/server"
	"github.com/acollard/roomgate/internal/stats"
	"github.com/gorilla/handlers"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// App is the HTTP surface: landing and room pages, static assets, the
// websocket endpoint and the guest-session cookie flow.
type App struct {
	log            *log.Logger
	cs             *server.ChatServer
	stats          stats.StatsProvider
	srv            *http.Server
	signingKey     []byte
	allowedOrigins []string
	portRetries    int
	templates      *template.Template
}

func NewApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, st stats.StatsProvider, cfg *config.Config) (*App, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	a := &App{
		log:            logger,
		cs:             cs,
		stats:          st,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		portRetries:    cfg.PortRetries,
		templates:      tmpl,
	}

	mux.HandleFunc("GET /{$}", a.index)
	mux.Handle("GET /static/", http.FileServerFS(staticFS))
	mux.Handle("GET /ws", a.sessionMiddleware(a.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = a.errorHandler(h)

	a.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return a, nil
}

// Start listens on the configured address, falling back to the next
// port when the requested one is occupied, then serves until Shutdown.
func (a *App) Start() error {
	host, portStr, err := net.SplitHostPort(a.srv.Addr)
	if err != nil {
		return fmt.Errorf("parse address %q: %w", a.srv.Addr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("parse port %q: %w", portStr, err)
	}

	var ln net.Listener
	for attempt := 0; ; attempt++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port+attempt))
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			a.srv.Addr = addr
			break
		}

		if attempt >= a.portRetries {
			return fmt.Errorf("listen: %w", err)
		}
		a.log.Printf("port %d unavailable, trying %d", port+attempt, port+attempt+1)
	}

	a.log.Printf("starting server on %s", a.srv.Addr)
	if err := a.srv.Serve(ln); err != http.ErrServerClosed {
		return err
	}

	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Println("shutting down HTTP server...")
	if err := a.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (a *App) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				a.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				a.writeJson(w, errResp.StatusCode, errResp)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
