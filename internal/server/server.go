// Package server exposes the selection cache over HTTP for the chart page.
package server

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/aonuma/popscope/internal/utils"
	"github.com/aonuma/popscope/pkg/selection"
)

//go:embed web
var webFS embed.FS

type Server struct {
	Cache    *selection.Cache
	Username string
	Password string
}

func New(cache *selection.Cache, user, pass string) *Server {
	return &Server{
		Cache:    cache,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	// API Group
	mux.HandleFunc("GET /api/regions", s.basicAuth(s.handleRegions))
	mux.HandleFunc("POST /api/toggle", s.basicAuth(s.handleToggle))
	mux.HandleFunc("GET /api/chart", s.basicAuth(s.handleChart))

	// Static Files
	webRoot, err := fs.Sub(webFS, "web")
	if err != nil {
		return err
	}
	mux.Handle("/", s.basicAuthHandler(http.FileServer(http.FS(webRoot))))

	utils.Log.Infof("Starting server on %s", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) basicAuthHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.Username == "" && s.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	return ok && user == s.Username && pass == s.Password
}
