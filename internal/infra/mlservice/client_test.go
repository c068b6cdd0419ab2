package mlservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	var got summarizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/summarize" {
			t.Fatalf("неожиданный запрос: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("не удалось разобрать тело запроса: %v", err)
		}
		json.NewEncoder(w).Encode(summarizeResponse{Summary: "краткий итог"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	summary, err := client.Summarize(context.Background(), []string{"первое", "второе"}, 200)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if summary != "краткий итог" {
		t.Fatalf("неожиданный итог: %q", summary)
	}
	if len(got.Notifications) != 2 || got.MaxTokens != 200 {
		t.Fatalf("неожиданное тело запроса: %+v", got)
	}
}

func TestSummarizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	if _, err := client.Summarize(context.Background(), []string{"текст"}, 200); err == nil {
		t.Fatalf("ожидали ошибку при статусе 500")
	}
}

func TestSummarizeEmptyInput(t *testing.T) {
	client := NewClient("http://localhost:0", time.Second)
	if _, err := client.Summarize(context.Background(), nil, 200); err == nil {
		t.Fatalf("пустая пачка не должна уходить в сервис")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Fatalf("неожиданный путь: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	if !client.Health(context.Background()) {
		t.Fatalf("ожидали, что сервис жив")
	}
}

func TestHealthDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	srv.Close()

	client := NewClient(srv.URL, time.Second)
	if client.Health(context.Background()) {
		t.Fatalf("закрытый сервис не должен считаться живым")
	}
}
