// Package webdrivertest provides an in-process fake Appium/WebDriver server
// for tests. Elements are registered per locator with their state, and every
// request is recorded for assertions.
package webdrivertest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/uiprobe/pkg/core"
)

const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// Screenshot and Source are what the fake returns for captures.
var (
	Screenshot = []byte("\x89PNG\r\n\x1a\nfake")
	Source     = `<hierarchy rotation="0"><android.widget.FrameLayout/></hierarchy>`
)

// ElementState describes a fake element.
type ElementState struct {
	Text       string
	Displayed  bool
	Enabled    bool
	Rect       core.Bounds
	Attributes map[string]string
}

// Visible is a displayed and enabled element with the given text.
func Visible(text string) ElementState {
	return ElementState{Text: text, Displayed: true, Enabled: true}
}

// Request is one recorded HTTP call.
type Request struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

type element struct {
	id    string
	state ElementState
	typed strings.Builder
}

// Server is a fake WebDriver endpoint.
type Server struct {
	*httptest.Server

	SessionID string

	mu          sync.Mutex
	byLocator   map[core.By]*element
	byID        map[string]*element
	nextID      int
	window      core.Size
	delays      map[string]time.Duration
	requests    []Request
	finds       []core.By
	clicked     []string
	keycodes    []int
	actions     []interface{}
	quits       int
	caps        map[string]interface{}
	sessionFail string
}

// NewServer starts a fake server with a 1080x2400 portrait window.
func NewServer() *Server {
	s := &Server{
		SessionID: "fake-session",
		byLocator: make(map[core.By]*element),
		byID:      make(map[string]*element),
		window:    core.Size{Width: 1080, Height: 2400},
		delays:    make(map[string]time.Duration),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", s.handleNewSession)
	mux.HandleFunc("DELETE /session/{sid}", s.handleQuit)
	mux.HandleFunc("POST /session/{sid}/element", s.handleFind)
	mux.HandleFunc("GET /session/{sid}/window/rect", s.handleWindowRect)
	mux.HandleFunc("POST /session/{sid}/actions", s.handleActions)
	mux.HandleFunc("POST /session/{sid}/timeouts", s.handleOK)
	mux.HandleFunc("POST /session/{sid}/appium/device/press_keycode", s.handleKeyCode)
	mux.HandleFunc("GET /session/{sid}/screenshot", s.handleScreenshot)
	mux.HandleFunc("GET /session/{sid}/source", s.handleSource)
	mux.HandleFunc("POST /session/{sid}/element/{eid}/click", s.handleClick)
	mux.HandleFunc("POST /session/{sid}/element/{eid}/clear", s.handleClear)
	mux.HandleFunc("POST /session/{sid}/element/{eid}/value", s.handleValue)
	mux.HandleFunc("GET /session/{sid}/element/{eid}/text", s.handleText)
	mux.HandleFunc("GET /session/{sid}/element/{eid}/displayed", s.handleDisplayed)
	mux.HandleFunc("GET /session/{sid}/element/{eid}/enabled", s.handleEnabled)
	mux.HandleFunc("GET /session/{sid}/element/{eid}/rect", s.handleRect)
	mux.HandleFunc("GET /session/{sid}/element/{eid}/attribute/{name}", s.handleAttribute)

	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// AddElement registers an element reachable through by and returns its ID.
func (s *Server) AddElement(by core.By, state ElementState) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e := &element{id: fmt.Sprintf("elem-%d", s.nextID), state: state}
	s.byLocator[by] = e
	s.byID[e.id] = e
	return e.id
}

// SetWindow changes the reported viewport size.
func (s *Server) SetWindow(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = core.Size{Width: width, Height: height}
}

// SetDelay holds every request whose path ends in suffix for d, or until the
// client gives up on it.
func (s *Server) SetDelay(suffix string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays[suffix] = d
}

// FailSessionCreate makes POST /session answer with "session not created".
func (s *Server) FailSessionCreate(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionFail = message
}

// Requests returns every recorded request in order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Finds returns the locators of every find request in order.
func (s *Server) Finds() []core.By {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.By(nil), s.finds...)
}

// Clicked returns the IDs of clicked elements in order.
func (s *Server) Clicked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicked...)
}

// Typed returns the text currently typed into an element.
func (s *Server) Typed(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		return e.typed.String()
	}
	return ""
}

// KeyCodes returns pressed Android keycodes in order.
func (s *Server) KeyCodes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.keycodes...)
}

// Actions returns the "actions" payload of every W3C actions request.
func (s *Server) Actions() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]interface{}(nil), s.actions...)
}

// Quits returns how many times the session was deleted.
func (s *Server) Quits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quits
}

// Capabilities returns the alwaysMatch capabilities of the last session request.
func (s *Server) Capabilities() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{Method: r.Method, Path: r.URL.Path}
		if r.Body != nil {
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				req.Body = body
			}
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		delay := s.delayFor(r.URL.Path)
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(withBody(r.Context(), req.Body)))
	})
}

func (s *Server) delayFor(path string) time.Duration {
	for suffix, d := range s.delays {
		if strings.HasSuffix(path, suffix) {
			return d
		}
	}
	return 0
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r.Context())
	s.mu.Lock()
	defer s.mu.Unlock()

	if caps, ok := body["capabilities"].(map[string]interface{}); ok {
		s.caps, _ = caps["alwaysMatch"].(map[string]interface{})
	}
	if s.sessionFail != "" {
		writeError(w, http.StatusInternalServerError, "session not created", s.sessionFail)
		return
	}

	platform, _ := s.caps["platformName"].(string)
	writeValue(w, map[string]interface{}{
		"sessionId":    s.SessionID,
		"capabilities": map[string]interface{}{"platformName": platform},
	})
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	if !s.checkSession(w, r) {
		return
	}
	s.mu.Lock()
	s.quits++
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	if !s.checkSession(w, r) {
		return
	}
	by := locatorFrom(bodyFrom(r.Context()))

	s.mu.Lock()
	s.finds = append(s.finds, by)
	e, ok := s.byLocator[by]
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "no such element", "An element could not be located on the page using the given search parameters.")
		return
	}
	writeValue(w, map[string]interface{}{w3cElementKey: e.id})
}

func (s *Server) handleWindowRect(w http.ResponseWriter, r *http.Request) {
	if !s.checkSession(w, r) {
		return
	}
	s.mu.Lock()
	size := s.window
	s.mu.Unlock()
	writeValue(w, map[string]interface{}{"x": 0, "y": 0, "width": size.Width, "height": size.Height})
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if !s.checkSession(w, r) {
		return
	}
	s.mu.Lock()
	s.actions = append(s.actions, bodyFrom(r.Context())["actions"])
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) handleKeyCode(w http.ResponseWriter, r *http.Request) {
	if !s.checkSession(w, r) {
		return
	}
	code, _ := bodyFrom(r.Context())["keycode"].(float64)
	s.mu.Lock()
	s.keycodes = append(s.keycodes, int(code))
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) handleOK(w http.ResponseWriter, r *http.Request) {
	if !s.checkSession(w, r) {
		return
	}
	writeValue(w, nil)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	e, ok := s.element(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	s.clicked = append(s.clicked, e.id)
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	e, ok := s.element(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	e.typed.Reset()
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	e, ok := s.element(w, r)
	if !ok {
		return
	}
	text, _ := bodyFrom(r.Context())["text"].(string)
	s.mu.Lock()
	e.typed.WriteString(text)
	s.mu.Unlock()
	writeValue(w, nil)
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	if s.checkSession(w, r) {
		writeValue(w, base64.StdEncoding.EncodeToString(Screenshot))
	}
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	if s.checkSession(w, r) {
		writeValue(w, Source)
	}
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	if e, ok := s.element(w, r); ok {
		writeValue(w, e.state.Text)
	}
}

func (s *Server) handleDisplayed(w http.ResponseWriter, r *http.Request) {
	if e, ok := s.element(w, r); ok {
		writeValue(w, e.state.Displayed)
	}
}

func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request) {
	if e, ok := s.element(w, r); ok {
		writeValue(w, e.state.Enabled)
	}
}

func (s *Server) handleRect(w http.ResponseWriter, r *http.Request) {
	if e, ok := s.element(w, r); ok {
		b := e.state.Rect
		writeValue(w, map[string]interface{}{"x": b.X, "y": b.Y, "width": b.Width, "height": b.Height})
	}
}

func (s *Server) handleAttribute(w http.ResponseWriter, r *http.Request) {
	if e, ok := s.element(w, r); ok {
		value, found := e.state.Attributes[r.PathValue("name")]
		if !found {
			writeValue(w, nil)
			return
		}
		writeValue(w, value)
	}
}

func (s *Server) checkSession(w http.ResponseWriter, r *http.Request) bool {
	if r.PathValue("sid") != s.SessionID {
		writeError(w, http.StatusNotFound, "invalid session id", "A session is either terminated or not started")
		return false
	}
	return true
}

func (s *Server) element(w http.ResponseWriter, r *http.Request) (*element, bool) {
	if !s.checkSession(w, r) {
		return nil, false
	}
	s.mu.Lock()
	e, ok := s.byID[r.PathValue("eid")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "stale element reference", "The element reference is stale")
		return nil, false
	}
	return e, true
}

func locatorFrom(body map[string]interface{}) core.By {
	using, _ := body["using"].(string)
	value, _ := body["value"].(string)
	return core.By{Using: using, Value: value}
}

func writeValue(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"value": value}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"value": map[string]interface{}{"error": code, "message": message},
	})
}
