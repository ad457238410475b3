// Package enrollmenttest serves a fixed ERP member list over httptest,
// paginated the way the ERP members endpoint paginates.
package enrollmenttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// BasePath is where the fake mounts the ERP REST API.
const BasePath = "/api/index.php/"

// Member is one ERP member as the members endpoint returns it.
type Member struct {
	ID               string       `json:"id"`
	FirstName        string       `json:"firstname"`
	LastName         string       `json:"lastname"`
	Login            string       `json:"login"`
	Email            string       `json:"email"`
	DateEnd          any          `json:"datefin"`
	NeedSubscription any          `json:"need_subscription"`
	ArrayOptions     ArrayOptions `json:"array_options"`
}

// ArrayOptions holds the ERP's extra fields.
type ArrayOptions struct {
	Student any `json:"options_student"`
}

// Server is a fake ERP.
type Server struct {
	*httptest.Server

	KeyParam string
	Key      string

	// EmptyPageAtEnd makes pages past the end return [] instead of 404.
	EmptyPageAtEnd bool

	mu       sync.Mutex
	members  []Member
	failures map[int]int
	pages    []int
}

// NewServer starts a fake ERP requiring key in the keyParam query parameter.
func NewServer(keyParam, key string, members ...Member) *Server {
	s := &Server{KeyParam: keyParam, Key: key, members: members, failures: map[int]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+BasePath+"members", s.handleMembers)
	s.Server = httptest.NewServer(mux)
	return s
}

// URL returns the base URL a client should be configured with.
func (s *Server) URL() string {
	return s.Server.URL + BasePath
}

// SetMembers replaces the member list.
func (s *Server) SetMembers(members ...Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = members
}

// FailPage makes requests for page answer with status.
func (s *Server) FailPage(page, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[page] = status
}

// RequestedPages lists the page numbers requested so far, in order.
func (s *Server) RequestedPages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pages...)
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get(s.KeyParam) != s.Key {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 0 {
		writeError(w, http.StatusBadRequest, "Bad page")
		return
	}

	s.mu.Lock()
	s.pages = append(s.pages, page)
	status, failing := s.failures[page]
	members := s.members
	empty := s.EmptyPageAtEnd
	s.mu.Unlock()

	if failing {
		writeError(w, status, http.StatusText(status))
		return
	}

	start := page * limit
	if start >= len(members) {
		if empty {
			writeJSON(w, http.StatusOK, []Member{})
			return
		}
		writeError(w, http.StatusNotFound, "No member found")
		return
	}
	end := min(start+limit, len(members))
	writeJSON(w, http.StatusOK, members[start:end])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}
