package testkit

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Call is one outbound request seen by a MockTransport.
type Call struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// Step answers requests whose method and URL prefix match.
type Step struct {
	Method string // empty matches any
	Prefix string
	Status int
	Body   string
	Err    error

	hits int
}

// MockTransport is an http.RoundTripper that replays scripted steps instead
// of reaching the network. Unmatched requests fail.
//
//	mt := testkit.NewMockTransport(&testkit.Step{Method: "POST", Prefix: "https://api.stripe.com/v1/payment_intents", Body: `{...}`})
//	client := mt.Client()
type MockTransport struct {
	mu    sync.Mutex
	steps []*Step
	calls []Call
}

func NewMockTransport(steps ...*Step) *MockTransport {
	return &MockTransport{steps: steps}
}

func (mt *MockTransport) Client() *http.Client { return &http.Client{Transport: mt} }

func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.calls = append(mt.calls, Call{Method: req.Method, URL: req.URL.String(), Header: req.Header.Clone(), Body: body})

	for _, s := range mt.steps {
		if s.Method != "" && !strings.EqualFold(s.Method, req.Method) {
			continue
		}
		if !strings.HasPrefix(req.URL.String(), s.Prefix) {
			continue
		}
		s.hits++
		if s.Err != nil {
			return nil, s.Err
		}
		status := s.Status
		if status == 0 {
			status = http.StatusOK
		}
		return &http.Response{
			StatusCode: status,
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(s.Body)),
			Request:    req,
		}, nil
	}
	return nil, fmt.Errorf("testkit: no mock step for %s %s", req.Method, req.URL)
}

// Calls returns every request seen so far.
func (mt *MockTransport) Calls() []Call {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return append([]Call(nil), mt.calls...)
}

// AssertAllCalled fails t for every step that never matched.
func (mt *MockTransport) AssertAllCalled(t testing.TB) {
	t.Helper()
	mt.mu.Lock()
	defer mt.mu.Unlock()
	for _, s := range mt.steps {
		assert.NotZero(t, s.hits, "testkit: step %s %s was never called", s.Method, s.Prefix)
	}
}
