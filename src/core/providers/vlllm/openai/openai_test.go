package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"parking-sign-server-go/src/core/image"
	"parking-sign-server-go/src/core/providers/vlllm"
	"parking-sign-server-go/src/core/utils"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type     string `json:"type"`
			Text     string `json:"text"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"content"`
	} `json:"messages"`
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewProvider(&vlllm.Config{
		Type:      "openai",
		ModelName: "gpt-4o-mini",
		APIKey:    "sk-test",
		BaseURL:   server.URL + "/v1",
	}, utils.NewConsoleLogger("info", nil))
	if err != nil {
		t.Fatalf("NewProvider error = %v", err)
	}
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize error = %v", err)
	}
	return p.(*Provider)
}

func TestAnalyzeSendsSingleVisionTurn(t *testing.T) {
	var got capturedRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"Parking IS allowed for 2 hours on Monday 6/10/2024 at 2:30 PM."},"finish_reason":"stop"}]}`))
	})

	verdict, err := p.Analyze(context.Background(), "Today is Monday 6/10/2024.", image.ImageData{Data: "iVBORw0KGgo=", Format: "png"})
	if err != nil {
		t.Fatalf("Analyze error = %v", err)
	}
	if verdict != "Parking IS allowed for 2 hours on Monday 6/10/2024 at 2:30 PM." {
		t.Errorf("verdict = %q", verdict)
	}

	if got.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Fatalf("want exactly one user message, got %+v", got.Messages)
	}
	parts := got.Messages[0].Content
	if len(parts) != 2 || parts[0].Type != "text" || parts[1].Type != "image_url" {
		t.Fatalf("unexpected content parts: %+v", parts)
	}
	if parts[0].Text != "Today is Monday 6/10/2024." {
		t.Errorf("text part = %q", parts[0].Text)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("image url = %q", parts[1].ImageURL.URL)
	}
}

func TestAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantEmpty bool
	}{
		{
			name:   "上游500",
			status: http.StatusInternalServerError,
			body:   `{"error":{"message":"boom","type":"server_error"}}`,
		},
		{
			name:   "认证失败",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"bad key","type":"invalid_request_error"}}`,
		},
		{
			name:      "没有choices",
			status:    http.StatusOK,
			body:      `{"id":"x","choices":[]}`,
			wantEmpty: true,
		},
		{
			name:      "空内容",
			status:    http.StatusOK,
			body:      `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`,
			wantEmpty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := p.Analyze(context.Background(), "prompt", image.ImageData{Data: "AAAA", Format: "png"})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantEmpty && !errors.Is(err, vlllm.ErrEmptyResponse) {
				t.Errorf("err = %v, want ErrEmptyResponse", err)
			}
		})
	}
}

func TestInitializeRequiresKey(t *testing.T) {
	p, _ := NewProvider(&vlllm.Config{Type: "openai", ModelName: "gpt-4o-mini"}, utils.NewConsoleLogger("info", nil))
	if err := p.Initialize(); err == nil {
		t.Error("Initialize without API key should fail")
	}
}

func TestPing(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/models" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"}]}`))
	})
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping error = %v", err)
	}
}

func TestPingFailures(t *testing.T) {
	t.Run("认证失败", func(t *testing.T) {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
		})
		if err := p.Ping(context.Background()); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("地址不可达", func(t *testing.T) {
		p, _ := NewProvider(&vlllm.Config{
			Type:      "openai",
			ModelName: "gpt-4o-mini",
			APIKey:    "sk-test",
			BaseURL:   "http://127.0.0.1:1/v1",
		}, utils.NewConsoleLogger("info", nil))
		if err := p.Initialize(); err != nil {
			t.Fatalf("Initialize error = %v", err)
		}
		if err := p.Ping(context.Background()); err == nil {
			t.Error("expected error")
		}
	})
}
