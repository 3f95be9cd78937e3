// Package platformtest runs a fake Slack Web API for tests.
package platformtest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

// Call is one request the fake received.
type Call struct {
	Method string
	Form   url.Values
}

// Server answers Slack API methods with canned JSON bodies. Methods without
// a registered body answer {"ok":false,"error":"unknown_method"}.
type Server struct {
	srv *httptest.Server

	mu        sync.Mutex
	responses map[string]string
	calls     []Call
}

// NewServer starts a fake that is closed when t finishes.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{responses: map[string]string{}}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

// Handle sets the JSON body returned for a Slack method such as
// "conversations.history".
func (s *Server) Handle(method, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method] = body
}

// APIURL is the base URL to hand to slack.OptionAPIURL.
func (s *Server) APIURL() string {
	return s.srv.URL + "/"
}

// Calls returns the requests received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the requests received for one method.
func (s *Server) CallsTo(method string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	method := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: method, Form: r.Form})
	body, ok := s.responses[method]
	s.mu.Unlock()

	if !ok {
		body = `{"ok":false,"error":"unknown_method"}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}
