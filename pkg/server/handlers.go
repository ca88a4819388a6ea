package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/qnkhuat/termshow/internal/cfg"
	"github.com/qnkhuat/termshow/pkg/message"
)

var decoder = schema.NewDecoder()

func init() {
	decoder.IgnoreUnknownKeys(true)
}

// bcrypt refuses anything longer
const MAX_SECRET_LENGTH = 72

/*** Health check API ***/
func handleHealth(w http.ResponseWriter, r *http.Request) {
	log.Printf("health check")
	fmt.Fprintf(w, "I'm fine: %s\n", time.Now().String())
}

/*** Upload API ***/
// Form fields:
// - scriptfile - string : raw script bytes, header line included
// - timingfile - string : timing list
// - cols, lines - uint  : geometry, 80x25 when missing
// - secret - string     : needed later to delete the session
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, cfg.SERVER_MAX_UPLOAD_SIZE)
	if err := r.ParseForm(); err != nil {
		log.Printf("Failed to parse form: %s", err)
		http.Error(w, "Could not read upload", 400)
		return
	}

	var req message.UploadRequest
	if err := decoder.Decode(&req, r.PostForm); err != nil {
		log.Printf("Failed to decode form: %s", err)
		http.Error(w, err.Error(), 400)
		return
	}

	switch {
	case req.ScriptFile == "":
		http.Error(w, "scriptfile must be non-empty", 400)
		return
	case req.TimingFile == "":
		http.Error(w, "timingfile must be non-empty", 400)
		return
	case req.Secret == "":
		http.Error(w, "secret must be non-empty", 400)
		return
	case len(req.Secret) > MAX_SECRET_LENGTH:
		http.Error(w, "secret is too long", 400)
		return
	}

	if _, err := message.ParseTiming(req.TimingFile); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	if req.Cols == 0 {
		req.Cols = cfg.RECORDER_DEFAULT_COLS
	}
	if req.Lines == 0 {
		req.Lines = cfg.RECORDER_DEFAULT_ROWS
	}

	script, err := compress([]byte(req.ScriptFile))
	if err != nil {
		log.Printf("Failed to compress script: %s", err)
		http.Error(w, "Failed to store session", 500)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Secret), s.cost)
	if err != nil {
		log.Printf("Failed to hash secret: %s", err)
		http.Error(w, "Failed to store session", 500)
		return
	}

	rec := Record{
		ID:         uuid.New().String(),
		Script:     script,
		Timing:     req.TimingFile,
		Cols:       req.Cols,
		Lines:      req.Lines,
		SecretHash: hash,
		CreatedAt:  time.Now(),
	}
	if err := s.db.AddSession(rec); err != nil {
		log.Printf("Failed to add session: %s", err)
		http.Error(w, "Failed to store session", 500)
		return
	}

	log.Printf("Added session %s, %dx%d, %d bytes", rec.ID, rec.Cols, rec.Lines, len(req.ScriptFile))
	fmt.Fprint(w, s.SessionURL(rec.ID))
}

/*** Delete API ***/
// Body is a url encoded form with a single secret field. ParseForm ignores
// bodies on DELETE, so it is read by hand.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, "Could not read body", 400)
		return
	}
	form, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "Could not parse body", 400)
		return
	}
	var req message.DeleteRequest
	if err := decoder.Decode(&req, form); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}

	rec, ok, err := s.db.GetSession(id)
	if err != nil {
		log.Printf("Failed to get session %s: %s", id, err)
		http.Error(w, "Failed to read session", 500)
		return
	}
	if !ok {
		http.Error(w, "Session not existed", 404)
		return
	}

	if bcrypt.CompareHashAndPassword(rec.SecretHash, []byte(req.Secret)) != nil {
		log.Printf("Unauthorized delete of %s", id)
		http.Error(w, "That secret does not own this session", 401)
		return
	}

	if err := s.db.DeleteSession(id); err != nil {
		log.Printf("Failed to delete session %s: %s", id, err)
		http.Error(w, "Failed to delete session", 500)
		return
	}
	log.Printf("Deleted session %s", id)
	fmt.Fprintf(w, "Deleted %s", s.SessionURL(id))
}

/*** Read APIs ***/
type SessionInfo struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Cols      uint      `json:"cols"`
	Lines     uint      `json:"lines"`
	Timing    string    `json:"timing"`
	Script    []byte    `json:"script"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (Record, []byte, bool) {
	id := mux.Vars(r)["id"]
	rec, ok, err := s.db.GetSession(id)
	if err != nil {
		log.Printf("Failed to get session %s: %s", id, err)
		http.Error(w, "Failed to read session", 500)
		return rec, nil, false
	}
	if !ok {
		http.Error(w, "Session not existed", 404)
		return rec, nil, false
	}
	script, err := decompress(rec.Script)
	if err != nil {
		log.Printf("Failed to decompress session %s: %s", id, err)
		http.Error(w, "Failed to read session", 500)
		return rec, nil, false
	}
	return rec, script, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	rec, script, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SessionInfo{
		ID:        rec.ID,
		URL:       s.SessionURL(rec.ID),
		Cols:      rec.Cols,
		Lines:     rec.Lines,
		Timing:    rec.Timing,
		Script:    script,
		CreatedAt: rec.CreatedAt,
	})
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	_, script, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(script)
}

func (s *Server) handleGetTiming(w http.ResponseWriter, r *http.Request) {
	rec, _, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, rec.Timing)
}
