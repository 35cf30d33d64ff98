package mock

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

// Response is a canned API response.
type Response struct {
	Status int `json:"status"`
	Body   any `json:"body,omitempty"`
}

// Request is one entry of the API request log.
type Request struct {
	Method string    `json:"method"`
	Path   string    `json:"path"`
	Status int       `json:"status"`
	At     time.Time `json:"at"`
}

// API answers requests from a table of canned responses. Unknown routes get
// a 404.
type API struct {
	*Base

	mu        sync.Mutex
	responses map[string]Response
	requests  []Request
}

var _ Service = (*API)(nil)

// NewAPI returns an API with no routes.
func NewAPI(name string) *API {
	return &API{
		Base:      NewBase(name),
		responses: make(map[string]Response),
	}
}

func routeKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}

// Reset drops routes and the request log and restores the toggles.
func (a *API) Reset() {
	a.Base.Reset()
	a.mu.Lock()
	a.responses = make(map[string]Response)
	a.requests = nil
	a.mu.Unlock()
}

// SetResponse registers the response for method and path.
func (a *API) SetResponse(method, path string, status int, body any) {
	a.mu.Lock()
	a.responses[routeKey(method, path)] = Response{Status: status, Body: body}
	a.mu.Unlock()
}

// Do serves one request.
func (a *API) Do(ctx context.Context, method, path string) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if err := a.Guard("request"); err != nil {
		return Response{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	resp, ok := a.responses[routeKey(method, path)]
	if !ok {
		resp = Response{Status: http.StatusNotFound}
	}
	a.requests = append(a.requests, Request{
		Method: strings.ToUpper(method),
		Path:   path,
		Status: resp.Status,
		At:     time.Now(),
	})
	return resp, nil
}

// Requests returns the request log, oldest first.
func (a *API) Requests() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.requests)
}
