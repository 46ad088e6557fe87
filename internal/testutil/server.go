// Package testutil provides a scripted fake of the Umbrella token and
// reporting endpoints for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	ClientID     = "test-key"
	ClientSecret = "test-secret"
	AccessToken  = "test-access-token"
)

// Request is a recorded report request.
type Request struct {
	Path   string
	Query  map[string]string
	Bearer string
}

// Response is a scripted reply; a zero Status means 200.
type Response struct {
	Status     int
	Body       any
	RetryAfter string
}

// Server fakes the token endpoint at /token and report endpoints below
// /reports. Scripted responses for an endpoint are replayed in order; once
// they run out the endpoint serves its paged items, or repeats the last
// scripted response when it has none.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	tokenCalls  int
	tokenStatus int
	tokenBody   any
	scripts     map[string][]Response
	last        map[string]Response
	items       map[string][]any
	requests    []Request
}

// NewServer starts a fake API and registers its shutdown with t.Cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		scripts: map[string][]Response{},
		last:    map[string]Response{},
		items:   map[string][]any{},
		tokenBody: map[string]any{
			"access_token": AccessToken,
			"token_type":   "bearer",
			"expires_in":   3600,
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", s.handleToken)
	mux.HandleFunc("/reports/", s.handleReport)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// TokenURL is the fake token endpoint.
func (s *Server) TokenURL() string { return s.URL + "/token" }

// ReportURL is the fake reporting API root.
func (s *Server) ReportURL() string { return s.URL + "/reports" }

// SetTokenResponse overrides the token endpoint reply.
func (s *Server) SetTokenResponse(status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenStatus = status
	s.tokenBody = body
}

// Script queues responses for an endpoint, e.g. "deployment-status".
func (s *Server) Script(endpoint string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[endpoint] = append(s.scripts[endpoint], responses...)
}

// SetItems serves items as a limit/offset paged collection wrapped in the
// {"data": [...]} envelope.
func (s *Server) SetItems(endpoint string, items []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[endpoint] = items
}

// TokenCalls counts token endpoint hits.
func (s *Server) TokenCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCalls
}

// Requests returns the recorded report requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestsFor returns the recorded requests for one endpoint.
func (s *Server) RequestsFor(endpoint string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == endpoint {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.tokenCalls++
	status, body := s.tokenStatus, s.tokenBody
	s.mu.Unlock()

	id, secret, ok := r.BasicAuth()
	if r.Method != http.MethodPost || !ok || id != ClientID || secret != ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, body)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.TrimPrefix(r.URL.Path, "/reports/")
	q := map[string]string{}
	for k := range r.URL.Query() {
		q[k] = r.URL.Query().Get(k)
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Path:   endpoint,
		Query:  q,
		Bearer: strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
	})
	items, paged := s.items[endpoint]
	var resp *Response
	if queue := s.scripts[endpoint]; len(queue) > 0 {
		next := queue[0]
		s.scripts[endpoint] = queue[1:]
		s.last[endpoint] = next
		resp = &next
	} else if last, ok := s.last[endpoint]; ok && !paged {
		resp = &last
	}
	s.mu.Unlock()

	switch {
	case resp != nil:
		if resp.RetryAfter != "" {
			w.Header().Set("Retry-After", resp.RetryAfter)
		}
		status := resp.Status
		if status == 0 {
			status = http.StatusOK
		}
		writeJSON(w, status, resp.Body)
	case paged:
		limit, _ := strconv.Atoi(q["limit"])
		offset, _ := strconv.Atoi(q["offset"])
		if limit <= 0 {
			limit = len(items)
		}
		start := min(offset, len(items))
		end := min(start+limit, len(items))
		writeJSON(w, http.StatusOK, map[string]any{"data": items[start:end]})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("no such endpoint %q", endpoint)})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Page returns n deployment-shaped items, handy for pagination tests.
func Page(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{
			"type":        map[string]any{"label": fmt.Sprintf("type-%d", i)},
			"activecount": i,
			"count":       i + 1,
		}
	}
	return out
}
