package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/laiskytech/converse-gateway/internal/authguard"
	"github.com/laiskytech/converse-gateway/internal/billing"
	"github.com/laiskytech/converse-gateway/internal/config"
	"github.com/laiskytech/converse-gateway/internal/converse"
	"github.com/laiskytech/converse-gateway/internal/model"
	"github.com/laiskytech/converse-gateway/internal/modelresolver"
	"github.com/laiskytech/converse-gateway/internal/ptc"
	"github.com/laiskytech/converse-gateway/internal/ratelimit"
	"github.com/laiskytech/converse-gateway/internal/store/memtest"
	"github.com/laiskytech/converse-gateway/internal/toolname"
)

// fakeConverser stands in for converse.Client in every test below, so the
// router can be exercised without a real Bedrock endpoint.
type fakeConverser struct {
	resp      *model.Response
	invokeErr error
	streamErr error
	events    []model.StreamEvent
	// blockAfterEvents, when set, makes OpenStream's goroutine wait on
	// ctx.Done() after delivering events instead of closing the channel
	// immediately, mimicking converse.Client.OpenStream's own ctx-aware
	// pump — needed so a test can cancel the client mid-stream and
	// observe the handler's post-loop ctx.Err() check.
	blockAfterEvents bool
}

func (f *fakeConverser) Invoke(ctx context.Context, req *model.Request, upstreamModelID string, names *toolname.Map) (*model.Response, error) {
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return f.resp, nil
}

func (f *fakeConverser) OpenStream(ctx context.Context, req *model.Request, upstreamModelID string, names *toolname.Map) (*converse.StreamHandle, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan model.StreamEvent)
	go func() {
		defer close(ch)
		for _, ev := range f.events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
		if f.blockAfterEvents {
			<-ctx.Done()
		}
	}()
	return converse.NewHandle(ch), nil
}

func testResponse() *model.Response {
	return &model.Response{
		ID:         "msg_1",
		Model:      "anthropic.claude-3-5-sonnet-20241022-v2:0",
		StopReason: model.StopEndTurn,
		Content: []model.ContentBlock{
			{Type: model.ContentText, Text: "hello"},
		},
		Usage: model.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

// newTestRouter builds a router wired to an in-memory store and a given
// fakeConverser, with a known master key so tests don't need to provision
// keys in the store.
func newTestRouter(t *testing.T, fc *fakeConverser) (*httptest.Server, func()) {
	t.Helper()

	prevMaster := config.MasterAPIKey
	prevRateLimit := config.RateLimitEnabled
	config.MasterAPIKey = "sk-test-master"
	config.RateLimitEnabled = false

	s := memtest.New()
	deps := Deps{
		Guard:    authguard.New(s),
		Limiter:  ratelimit.New(100, 0),
		Resolver: modelresolver.New(s),
		Converse: fc,
		Billing:  billing.New(s),
		PTC:      ptc.DisabledDispatcher{},
	}

	r := New(deps)
	srv := httptest.NewServer(r)

	cleanup := func() {
		srv.Close()
		config.MasterAPIKey = prevMaster
		config.RateLimitEnabled = prevRateLimit
	}
	return srv, cleanup
}

// newTestRouterWithStore is newTestRouter plus direct access to the backing
// memtest.Store, for tests that need to inspect persisted state (e.g. the
// client-disconnect property, which asserts no UsageRecord survives).
func newTestRouterWithStore(t *testing.T, fc *fakeConverser) (*httptest.Server, *memtest.Store, func()) {
	t.Helper()

	prevMaster := config.MasterAPIKey
	prevRateLimit := config.RateLimitEnabled
	config.MasterAPIKey = "sk-test-master"
	config.RateLimitEnabled = false

	s := memtest.New()
	deps := Deps{
		Guard:    authguard.New(s),
		Limiter:  ratelimit.New(100, 0),
		Resolver: modelresolver.New(s),
		Converse: fc,
		Billing:  billing.New(s),
		PTC:      ptc.DisabledDispatcher{},
	}

	r := New(deps)
	srv := httptest.NewServer(r)

	cleanup := func() {
		srv.Close()
		config.MasterAPIKey = prevMaster
		config.RateLimitEnabled = prevRateLimit
	}
	return srv, s, cleanup
}

func doJSON(t *testing.T, method, url, apiKey string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	srv, cleanup := newTestRouter(t, &fakeConverser{resp: testResponse()})
	defer cleanup()

	for _, path := range []string{"/health", "/liveness", "/ready", "/health/ptc"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestAuthMiddlewareRejectsMissingKey(t *testing.T) {
	srv, cleanup := newTestRouter(t, &fakeConverser{resp: testResponse()})
	defer cleanup()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/messages", "", map[string]any{
		"model":      "claude-3-5-sonnet-20241022",
		"max_tokens": 100,
		"messages":   []map[string]any{{"role": "user", "content": "hi"}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestMessagesUnarySuccess(t *testing.T) {
	srv, cleanup := newTestRouter(t, &fakeConverser{resp: testResponse()})
	defer cleanup()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/messages", "sk-test-master", map[string]any{
		"model":      "claude-3-5-sonnet-20241022",
		"max_tokens": 100,
		"messages":   []map[string]any{{"role": "user", "content": "hi"}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["id"] != "msg_1" {
		t.Fatalf("unexpected response body: %+v", out)
	}
}

func TestMessagesUpstreamError(t *testing.T) {
	srv, cleanup := newTestRouter(t, &fakeConverser{invokeErr: context.DeadlineExceeded})
	defer cleanup()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/messages", "sk-test-master", map[string]any{
		"model":      "claude-3-5-sonnet-20241022",
		"max_tokens": 100,
		"messages":   []map[string]any{{"role": "user", "content": "hi"}},
	})
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected a non-200 status for an upstream error")
	}
}

func TestMessagesStreamSuccess(t *testing.T) {
	usage := model.Usage{InputTokens: 3, OutputTokens: 7}
	events := []model.StreamEvent{
		{Type: model.EventMessageStart, Message: &model.Response{ID: "msg_2", Model: "m"}},
		{Type: model.EventContentBlockStart, Index: 0, BlockType: model.ContentText},
		{Type: model.EventContentBlockDelta, Index: 0, TextDelta: "hi"},
		{Type: model.EventContentBlockStop, Index: 0},
		{Type: model.EventMessageStop, Usage: &usage},
	}
	srv, cleanup := newTestRouter(t, &fakeConverser{events: events})
	defer cleanup()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/messages", "sk-test-master", map[string]any{
		"model":      "claude-3-5-sonnet-20241022",
		"max_tokens": 100,
		"stream":     true,
		"messages":   []map[string]any{{"role": "user", "content": "hi"}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", ct)
	}
}

func TestCountTokens(t *testing.T) {
	srv, cleanup := newTestRouter(t, &fakeConverser{resp: testResponse()})
	defer cleanup()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/messages/count_tokens", "sk-test-master", map[string]any{
		"model":    "claude-3-5-sonnet-20241022",
		"messages": []map[string]any{{"role": "user", "content": "hello there"}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := out["input_tokens"]; !ok {
		t.Fatalf("expected input_tokens field, got %+v", out)
	}
}

func TestChatCompletionsUnarySuccess(t *testing.T) {
	srv, cleanup := newTestRouter(t, &fakeConverser{resp: testResponse()})
	defer cleanup()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/chat/completions", "sk-test-master", map[string]any{
		"model":    "claude-3-5-sonnet-20241022",
		"messages": []map[string]any{{"role": "user", "content": "hi"}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["object"] != "chat.completion" {
		t.Fatalf("unexpected response body: %+v", out)
	}
}

func TestChatCompletionsStreamSuccess(t *testing.T) {
	usage := model.Usage{InputTokens: 3, OutputTokens: 7}
	events := []model.StreamEvent{
		{Type: model.EventMessageStart, Message: &model.Response{ID: "msg_3", Model: "m"}},
		{Type: model.EventContentBlockStart, Index: 0, BlockType: model.ContentText},
		{Type: model.EventContentBlockDelta, Index: 0, TextDelta: "hi"},
		{Type: model.EventContentBlockStop, Index: 0},
		{Type: model.EventMessageStop, Usage: &usage},
	}
	srv, cleanup := newTestRouter(t, &fakeConverser{events: events})
	defer cleanup()

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/chat/completions", "sk-test-master", map[string]any{
		"model":    "claude-3-5-sonnet-20241022",
		"stream":   true,
		"messages": []map[string]any{{"role": "user", "content": "hi"}},
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", ct)
	}
}

func TestListAndGetModel(t *testing.T) {
	srv, cleanup := newTestRouter(t, &fakeConverser{resp: testResponse()})
	defer cleanup()

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/models", "sk-test-master", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var list map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	data, ok := list["data"].([]any)
	if !ok || len(data) == 0 {
		t.Fatalf("expected non-empty model list, got %+v", list)
	}

	okResp := doJSON(t, http.MethodGet, srv.URL+"/v1/models/claude-3-5-sonnet-20241022", "sk-test-master", nil)
	defer okResp.Body.Close()
	if okResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for known model, got %d", okResp.StatusCode)
	}

	missingResp := doJSON(t, http.MethodGet, srv.URL+"/v1/models/no-such-model", "sk-test-master", nil)
	defer missingResp.Body.Close()
	if missingResp.StatusCode == http.StatusOK {
		t.Fatalf("expected non-200 for unknown model")
	}
}

func TestMetricsRequiresAdminCredential(t *testing.T) {
	srv, cleanup := newTestRouter(t, &fakeConverser{resp: testResponse()})
	defer cleanup()

	resp := doJSON(t, http.MethodGet, srv.URL+"/metrics", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without admin credential, got %d", resp.StatusCode)
	}

	okResp := doJSON(t, http.MethodGet, srv.URL+"/metrics", "sk-test-master", nil)
	defer okResp.Body.Close()
	if okResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with admin credential, got %d", okResp.StatusCode)
	}
}

func TestEventLoggingBatch(t *testing.T) {
	srv, cleanup := newTestRouter(t, &fakeConverser{resp: testResponse()})
	defer cleanup()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/event_logging/batch", "", map[string]any{
		"events": []map[string]any{{"kind": "click"}, {"kind": "view"}},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if int(out["accepted"].(float64)) != 2 {
		t.Fatalf("expected accepted=2, got %+v", out)
	}

	oversized := make([]map[string]any, maxEventBatchSize+1)
	for i := range oversized {
		oversized[i] = map[string]any{"kind": "x"}
	}
	resp2 := doJSON(t, http.MethodPost, srv.URL+"/api/event_logging/batch", "", map[string]any{"events": oversized})
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized batch, got %d", resp2.StatusCode)
	}
}

// TestStreamClientDisconnectSkipsBilling exercises spec.md §8 property 7:
// a client that closes the connection mid-stream must not leave a
// UsageRecord behind. The fakeConverser delivers one message_start then
// blocks on ctx.Done(), so cancelling the request context mid-flight is
// the only way the stream ever ends.
func TestStreamClientDisconnectSkipsBilling(t *testing.T) {
	fc := &fakeConverser{
		events:           []model.StreamEvent{{Type: model.EventMessageStart, Message: testResponse()}},
		blockAfterEvents: true,
	}
	srv, st, cleanup := newTestRouterWithStore(t, fc)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	body, _ := json.Marshal(map[string]any{
		"model":      "claude-3-5-sonnet-20241022",
		"max_tokens": 10,
		"stream":     true,
		"messages":   []map[string]any{{"role": "user", "content": "hi"}},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer sk-test-master")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	buf := make([]byte, 64)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatalf("read first chunk: %v", err)
	}

	cancel()
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st.UsageRecordCount() == 0 {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		t.Fatalf("expected no UsageRecord after client disconnect, got %d", st.UsageRecordCount())
	}
}
