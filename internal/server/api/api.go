package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dev.c0redev.fshare/internal/server/auth"
	"dev.c0redev.fshare/internal/server/session"
	"dev.c0redev.fshare/internal/store"
)

// Server holds API deps. DB is optional; without it user and transfer
// endpoints answer 503.
type Server struct {
	DB         *store.DB
	Stats      *session.Stats
	AdminToken string
}

// New returns API server.
func New(db *store.DB, stats *session.Stats, adminToken string) *Server {
	return &Server{DB: db, Stats: stats, AdminToken: adminToken}
}

// UserRequest body for POST /api/users.
type UserRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// UserDTO for GET /api/users (no hash).
type UserDTO struct {
	Login     string `json:"login"`
	CreatedAt string `json:"created_at"`
}

// TransferDTO for GET /api/transfers.
type TransferDTO struct {
	SessionID  string `json:"session_id"`
	Login      string `json:"login"`
	Direction  string `json:"direction"`
	Name       string `json:"name"`
	TotalSize  uint64 `json:"total_size"`
	BytesMoved uint64 `json:"bytes_moved"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// HandleHealth GET /health (lb/k8s).
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{Status: "ok"})
}

// HandleReady GET /ready; 200 if DB ok (or none configured) else 503.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB != nil {
		if err := s.DB.Ping(); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// HandleStats GET /api/stats -> session counters.
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var snap session.Snapshot
	if s.Stats != nil {
		snap = s.Stats.Snapshot()
	}
	writeJSON(w, http.StatusOK, snap)
}

// RequireAdmin true if Bearer matches AdminToken; empty AdminToken denies all.
func (s *Server) RequireAdmin(r *http.Request) bool {
	h := r.Header.Get("Authorization")
	if s.AdminToken == "" || !strings.HasPrefix(h, "Bearer ") {
		return false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return auth.ConstantTimeEqual(tok, s.AdminToken)
}

// HandleUsers GET list, POST create, PUT set password, DELETE ?login= (admin).
func (s *Server) HandleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.RequireAdmin(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.DB == nil {
		http.Error(w, "no database configured", http.StatusServiceUnavailable)
		return
	}
	switch r.Method {
	case http.MethodGet:
		users, err := s.DB.ListUsers()
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		out := make([]UserDTO, 0, len(users))
		for _, u := range users {
			out = append(out, UserDTO{Login: u.Login, CreatedAt: u.CreatedAt.Format(time.RFC3339)})
		}
		writeJSON(w, http.StatusOK, out)
		return
	case http.MethodDelete:
		login := strings.TrimSpace(r.URL.Query().Get("login"))
		if login == "" {
			http.Error(w, "login required", http.StatusBadRequest)
			return
		}
		if err := s.DB.DeleteUser(login); err != nil {
			writeStoreErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		http.Error(w, "login and password required", http.StatusBadRequest)
		return
	}
	// AUTH lines are whitespace-split; such credentials could never log in
	if strings.ContainsAny(req.Login, " \t\r\n:") || strings.ContainsAny(req.Password, " \t\r\n") {
		http.Error(w, "login and password must not contain whitespace (login also not ':')", http.StatusBadRequest)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if r.Method == http.MethodPut {
		if err := s.DB.UpdateUserPassword(req.Login, hash); err != nil {
			writeStoreErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if u, err := s.DB.UserByLogin(req.Login); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	} else if u != nil {
		http.Error(w, "login taken", http.StatusConflict)
		return
	}
	if _, err := s.DB.CreateUser(req.Login, hash); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func writeStoreErr(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrUserNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// HandleTransfers GET /api/transfers?login=&limit= (admin).
func (s *Server) HandleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.RequireAdmin(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.DB == nil {
		http.Error(w, "no database configured", http.StatusServiceUnavailable)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.DB.ListTransfers(strings.TrimSpace(r.URL.Query().Get("login")), limit)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]TransferDTO, 0, len(list))
	for _, t := range list {
		out = append(out, TransferDTO{
			SessionID: t.SessionID, Login: t.Login, Direction: t.Direction, Name: t.Name,
			TotalSize: t.TotalSize, BytesMoved: t.BytesMoved, OK: t.OK, Error: t.Error,
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// CORS adds Access-Control-Allow-Origin for browser.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Mount registers routes on mux.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/ready", s.HandleReady)
	mux.HandleFunc("/api/stats", s.HandleStats)
	mux.HandleFunc("/api/users", s.HandleUsers)
	mux.HandleFunc("/api/transfers", s.HandleTransfers)
}
