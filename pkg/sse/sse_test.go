package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerStreamsMatchingEvents(t *testing.T) {
	b := NewBroker()
	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?shopId=s1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return b.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	b.Publish(Message{Event: "new_order", Data: []byte(`{"shopId":"s2"}`), ShopID: "s2"})
	b.Publish(Message{Event: "new_order", Data: []byte(`{"shopId":"s1"}`), ShopID: "s1"})

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" && len(lines) > 0 {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	assert.Equal(t, []string{"event: new_order", `data: {"shopId":"s1"}`}, lines)

	cancel()
	assert.Eventually(t, func() bool { return b.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewRejectsNonFlusher(t *testing.T) {
	w := struct{ http.ResponseWriter }{httptest.NewRecorder()}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, New(w, r))
	assert.True(t, strings.Contains(w.ResponseWriter.(*httptest.ResponseRecorder).Body.String(), "SSE not supported"))
}
