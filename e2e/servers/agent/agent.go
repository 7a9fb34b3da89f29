package agent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// ToolCall is one scripted tool invocation the fake agent performs before it
// answers. Each one produces a functionCall event followed by a
// functionResponse event.
type ToolCall struct {
	Name     string
	Args     map[string]any
	Response map[string]any
}

// Behavior describes how the fake agent reacts to a user message. The first
// behavior whose PromptContains matches (case-insensitive substring) wins; an
// empty PromptContains matches everything and works as a catch-all.
type Behavior struct {
	PromptContains string
	ToolCalls      []ToolCall
	Respond        string
}

// Server is a scripted stand-in for an agent server. It speaks the same two
// endpoints the evaluator drives: session creation under
// /apps/{app}/users/{user}/sessions/{id}, and /run for turns.
type Server struct {
	mu        sync.Mutex
	behaviors []Behavior
	sessions  map[string]struct{}
	runCount  int

	srv *httptest.Server
}

// NewServer starts the fake agent with the given behaviors. Callers must
// Close it.
func NewServer(behaviors ...Behavior) *Server {
	s := &Server{
		behaviors: behaviors,
		sessions:  make(map[string]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/run", s.handleRun)
	mux.HandleFunc("/apps/", s.handleCreateSession)
	s.srv = httptest.NewServer(mux)

	return s
}

// URL returns the base URL to use as the evaluator's apiBase.
func (s *Server) URL() string {
	return s.srv.URL
}

func (s *Server) Close() {
	s.srv.Close()
}

// SessionCount reports how many sessions were created, one per scenario.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunCount reports how many turns were executed across all sessions.
func (s *Server) RunCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCount
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// /apps/{app}/users/{user}/sessions/{id}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 6 || parts[0] != "apps" || parts[2] != "users" || parts[4] != "sessions" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	sessionID := parts[5]

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[sessionID]; exists {
		http.Error(w, "session already exists", http.StatusConflict)
		return
	}
	s.sessions[sessionID] = struct{}{}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"id": %q}`, sessionID)
}

type runRequest struct {
	AppName    string `json:"appName"`
	UserID     string `json:"userId"`
	SessionID  string `json:"sessionId"`
	NewMessage struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"newMessage"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	_, known := s.sessions[req.SessionID]
	if known {
		s.runCount++
	}
	s.mu.Unlock()

	if !known {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var userText string
	if len(req.NewMessage.Parts) > 0 {
		userText = req.NewMessage.Parts[0].Text
	}

	behavior := s.match(userText)
	if behavior == nil {
		http.Error(w, fmt.Sprintf("no behavior matches prompt %q", userText), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(eventsFor(behavior))
}

func (s *Server) match(userText string) *Behavior {
	lower := strings.ToLower(userText)
	for i := range s.behaviors {
		if strings.Contains(lower, strings.ToLower(s.behaviors[i].PromptContains)) {
			return &s.behaviors[i]
		}
	}
	return nil
}

// eventsFor renders a behavior as the event list an agent server would
// stream: a functionCall/functionResponse pair per tool, then the text reply.
func eventsFor(b *Behavior) []map[string]any {
	events := make([]map[string]any, 0, 2*len(b.ToolCalls)+1)

	for _, tc := range b.ToolCalls {
		events = append(events, map[string]any{
			"author": "model",
			"content": map[string]any{
				"role": "model",
				"parts": []map[string]any{
					{"functionCall": map[string]any{"name": tc.Name, "args": tc.Args}},
				},
			},
		})
		events = append(events, map[string]any{
			"author": "model",
			"content": map[string]any{
				"role": "model",
				"parts": []map[string]any{
					{"functionResponse": map[string]any{"name": tc.Name, "response": tc.Response}},
				},
			},
		})
	}

	events = append(events, map[string]any{
		"author": "model",
		"content": map[string]any{
			"role":  "model",
			"parts": []map[string]any{{"text": b.Respond}},
		},
	})

	return events
}
