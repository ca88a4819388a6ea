/*
Local showterm compatible server.
Accepts uploads from the client, hands back a link, and lets the owner of
the secret delete it again. Sessions live in a bolt db.
*/
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type Server struct {
	addr      string
	publicURL string
	db        *DB
	server    *http.Server

	// bcrypt cost for stored secrets
	cost int
}

// New opens the db at dbPath. Links handed back to clients start with
// publicURL, which defaults to http://<addr>.
func New(addr, dbPath, publicURL string) (*Server, error) {
	db, err := SetupDB(dbPath)
	if err != nil {
		return nil, err
	}
	if publicURL == "" {
		publicURL = "http://" + addr
	}
	return &Server{
		addr:      addr,
		publicURL: strings.TrimRight(publicURL, "/"),
		db:        db,
		cost:      bcrypt.DefaultCost,
	}, nil
}

func (s *Server) DB() *DB {
	return s.db
}

func (s *Server) SessionURL(id string) string {
	return fmt.Sprintf("%s/s/%s", s.publicURL, id)
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", handleHealth).Methods("GET")
	router.HandleFunc("/scripts", s.handleUpload).Methods("POST")
	router.HandleFunc("/s/{id}", s.handleGetSession).Methods("GET")
	router.HandleFunc("/s/{id}", s.handleDeleteSession).Methods("DELETE")
	router.HandleFunc("/s/{id}/script", s.handleGetScript).Methods("GET")
	router.HandleFunc("/s/{id}/timing", s.handleGetTiming).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
	})
	return c.Handler(router)
}

// Start blocks until the server is stopped.
func (s *Server) Start() error {
	s.server = &http.Server{Addr: s.addr, Handler: s.Handler()}
	log.Printf("Serving at: %s, links at: %s", s.addr, s.publicURL)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	log.Printf("Server stopped")
	return err
}
