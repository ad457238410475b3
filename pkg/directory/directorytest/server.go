// Package directorytest provides an in-memory membership API served over
// httptest, for exercising the directory client and full runs in tests.
package directorytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// User is the stored shape of a directory user, as the API returns it.
type User struct {
	ID           string        `json:"id"`
	FirstName    string        `json:"firstname"`
	LastName     string        `json:"lastname"`
	Mail         string        `json:"mail"`
	Pin          string        `json:"pin,omitempty"`
	Password     string        `json:"password,omitempty"`
	IsRemoved    bool          `json:"isRemoved"`
	Wallets      []Wallet      `json:"wallets"`
	Memberships  []Membership  `json:"memberships"`
	MeansOfLogin []MeanOfLogin `json:"meansOfLogin"`
}

// Wallet is the stored shape of a wallet.
type Wallet struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	LogicalID *string   `json:"logical_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership is the stored shape of a membership row.
type Membership struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	GroupID  string `json:"group_id"`
	PeriodID string `json:"period_id"`
}

// MeanOfLogin is the stored shape of a credential record.
type MeanOfLogin struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Type   string `json:"type"`
	Data   string `json:"data"`
}

// Call records one request the server handled.
type Call struct {
	Method string
	Path   string
}

// Server is a fake membership API.
type Server struct {
	*httptest.Server

	Login    string
	Password string
	Token    string

	mu       sync.Mutex
	users    []*User
	nextID   int
	calls    []Call
	failures map[string]int
	clock    time.Time
}

// NewServer starts a fake API accepting login/password.
func NewServer(login, password string) *Server {
	s := &Server{
		Login:    login,
		Password: password,
		Token:    "test-token",
		failures: make(map[string]int),
		clock:    time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /crud/users", s.authed(s.handleListUsers))
	mux.HandleFunc("POST /crud/users", s.authed(s.handleCreateUser))
	mux.HandleFunc("PUT /crud/users/{id}", s.authed(s.handleUpdateUser))
	mux.HandleFunc("POST /crud/wallets", s.authed(s.handleCreateWallet))
	mux.HandleFunc("PUT /crud/wallets/{id}", s.authed(s.handleUpdateWallet))
	mux.HandleFunc("POST /crud/meansoflogin", s.authed(s.handleCreateMOL))
	mux.HandleFunc("PUT /crud/meansoflogin/{id}", s.authed(s.handleUpdateMOL))
	mux.HandleFunc("POST /crud/memberships", s.authed(s.handleCreateMembership))
	mux.HandleFunc("DELETE /crud/memberships/{id}", s.authed(s.handleDeleteMembership))

	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// AddUser seeds a user and returns its id.
func (s *Server) AddUser(u User) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = s.newID("u")
	}
	for i := range u.Wallets {
		u.Wallets[i].UserID = u.ID
		if u.Wallets[i].ID == "" {
			u.Wallets[i].ID = s.newID("w")
		}
	}
	for i := range u.Memberships {
		u.Memberships[i].UserID = u.ID
		if u.Memberships[i].ID == "" {
			u.Memberships[i].ID = s.newID("m")
		}
	}
	for i := range u.MeansOfLogin {
		u.MeansOfLogin[i].UserID = u.ID
		if u.MeansOfLogin[i].ID == "" {
			u.MeansOfLogin[i].ID = s.newID("c")
		}
	}
	s.users = append(s.users, &u)
	return u.ID
}

// Users returns a snapshot of the stored users.
func (s *Server) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out
}

// UserByMail returns the stored user with mail, if any.
func (s *Server) UserByMail(mail string) (User, bool) {
	for _, u := range s.Users() {
		if u.Mail == mail {
			return u, true
		}
	}
	return User{}, false
}

// Writes returns the mutating calls handled so far.
func (s *Server) Writes() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Method != http.MethodGet && c.Path != "/auth/login" {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// FailWith makes requests whose "METHOD /path" starts with prefix answer
// with status.
func (s *Server) FailWith(prefix string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[prefix] = status
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s%d", prefix, s.nextID)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
		key := r.Method + " " + r.URL.Path
		status := 0
		for prefix, code := range s.failures {
			if strings.HasPrefix(key, prefix) {
				status = code
			}
		}
		s.mu.Unlock()

		if status != 0 {
			writeJSON(w, status, map[string]string{"error": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.Token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing token"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data        string `json:"data"`
		Password    string `json:"password"`
		MeanOfLogin string `json:"meanOfLogin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Data != s.Login || req.Password != s.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": s.Token})
}

func (s *Server) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Users())
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var u User
	if !decode(w, r, &u) {
		return
	}
	u.ID = ""
	u.Wallets, u.Memberships, u.MeansOfLogin = nil, nil, nil
	id := s.AddUser(u)
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mail string `json:"mail"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.findUser(r.PathValue("id"))
	if u == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such user"})
		return
	}
	u.Mail = body.Mail
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var wallet Wallet
	if !decode(w, r, &wallet) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.findUser(wallet.UserID)
	if u == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such user"})
		return
	}
	s.clock = s.clock.Add(time.Minute)
	wallet.ID = s.newID("w")
	wallet.CreatedAt = s.clock
	u.Wallets = append(u.Wallets, wallet)
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleUpdateWallet(w http.ResponseWriter, r *http.Request) {
	var body Wallet
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		for i := range u.Wallets {
			if u.Wallets[i].ID == r.PathValue("id") {
				u.Wallets[i].LogicalID = body.LogicalID
				writeJSON(w, http.StatusOK, u.Wallets[i])
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such wallet"})
}

func (s *Server) handleCreateMOL(w http.ResponseWriter, r *http.Request) {
	var mol MeanOfLogin
	if !decode(w, r, &mol) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.findUser(mol.UserID)
	if u == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such user"})
		return
	}
	mol.ID = s.newID("c")
	u.MeansOfLogin = append(u.MeansOfLogin, mol)
	writeJSON(w, http.StatusOK, mol)
}

func (s *Server) handleUpdateMOL(w http.ResponseWriter, r *http.Request) {
	var body MeanOfLogin
	if !decode(w, r, &body) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		for i := range u.MeansOfLogin {
			if u.MeansOfLogin[i].ID == r.PathValue("id") {
				u.MeansOfLogin[i].Type = body.Type
				u.MeansOfLogin[i].Data = body.Data
				writeJSON(w, http.StatusOK, u.MeansOfLogin[i])
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such mean of login"})
}

func (s *Server) handleCreateMembership(w http.ResponseWriter, r *http.Request) {
	var m Membership
	if !decode(w, r, &m) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.findUser(m.UserID)
	if u == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such user"})
		return
	}
	m.ID = s.newID("m")
	u.Memberships = append(u.Memberships, m)
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMembership(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		for i := range u.Memberships {
			if u.Memberships[i].ID == r.PathValue("id") {
				u.Memberships = append(u.Memberships[:i], u.Memberships[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such membership"})
}

// findUser must be called with s.mu held.
func (s *Server) findUser(id string) *User {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// StringPtr returns a pointer to s, for seeding wallet logical ids.
func StringPtr(s string) *string {
	return &s
}
