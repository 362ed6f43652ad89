package replicate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/archvision/archvision-backend/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func newTestClient(t *testing.T, baseURL string) Client {
	t.Helper()
	c, err := NewClient(testLogger(t), Config{
		APIToken:     "test-token",
		BaseURL:      baseURL,
		Timeout:      5 * time.Second,
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("init client: %v", err)
	}
	return c
}

func TestRunDepthToImageImmediateSuccess(t *testing.T) {
	var gotPrefer string
	var gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predictions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotPrefer = r.Header.Get("Prefer")
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotVersion, _ = body["version"].(string)
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "pred-1",
			"status": "succeeded",
			"output": []string{"http://out.test/depth.png", "http://out.test/render.png"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	urls, err := c.RunDepthToImage(context.Background(), PredictionInput{
		Image:  "data:image/jpeg;base64,AA==",
		Prompt: "a room",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("urls: want=2 got=%v", urls)
	}
	if gotPrefer != "wait=60" {
		t.Fatalf("prefer header: got=%q", gotPrefer)
	}
	if strings.Contains(gotVersion, "/") || strings.Contains(gotVersion, ":") {
		t.Fatalf("version must be the bare hash: got=%q", gotVersion)
	}
}

func TestRunDepthToImagePollsUntilTerminal(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]any{"id": "pred-2", "status": "processing"})
			return
		}
		if r.URL.Path != "/predictions/pred-2" {
			t.Errorf("unexpected poll path: %s", r.URL.Path)
		}
		if atomic.AddInt32(&polls, 1) < 3 {
			json.NewEncoder(w).Encode(map[string]any{"id": "pred-2", "status": "processing"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "pred-2",
			"status": "succeeded",
			"output": []string{"http://out.test/a.png"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	urls, err := c.RunDepthToImage(context.Background(), PredictionInput{Image: "x", Prompt: "p"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(urls) != 1 {
		t.Fatalf("urls: got=%v", urls)
	}
	if atomic.LoadInt32(&polls) != 3 {
		t.Fatalf("polls: want=3 got=%d", polls)
	}
}

func TestRunDepthToImageFailedPrediction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "pred-3",
			"status": "failed",
			"error":  "NSFW content detected",
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.RunDepthToImage(context.Background(), PredictionInput{Image: "x", Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "NSFW content detected") {
		t.Fatalf("want failure reason surfaced, got=%v", err)
	}
}

func TestRunDepthToImageCreationNotRetried(t *testing.T) {
	var creations int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&creations, 1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.RunDepthToImage(context.Background(), PredictionInput{Image: "x", Prompt: "p"})
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&creations) != 1 {
		t.Fatalf("creation attempts: want=1 got=%d", creations)
	}
}

func TestDecodeOutput(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
		err  bool
	}{
		{"list", `["a", "b"]`, 2, false},
		{"single string", `"a"`, 1, false},
		{"empty string", `""`, 0, false},
		{"null", `null`, 0, false},
		{"empty", ``, 0, false},
		{"object", `{"x": 1}`, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeOutput(json.RawMessage(tc.raw))
			if tc.err {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("urls: want=%d got=%v", tc.want, got)
			}
		})
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(testLogger(t), Config{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}
