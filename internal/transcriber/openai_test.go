package transcriber

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenAITranscribeVerboseJSON(t *testing.T) {
	var gotPath, gotAuth, gotFormat, gotModel, gotLanguage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotFormat = r.FormValue("response_format")
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task":"transcribe","language":"english","duration":3.0,"text":" hello world",
			"segments":[{"id":0,"start":0.0,"end":1.25,"text":" hello"},{"id":1,"start":1.25,"end":3.0,"text":" world"}]}`))
	}))
	defer server.Close()

	audio := filepath.Join(t.TempDir(), "a.wav")
	if err := os.WriteFile(audio, []byte("RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1/", Language: "en"}, nil)
	defer svc.Close()

	result, err := svc.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if gotPath != "/v1/audio/transcriptions" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotFormat != "verbose_json" || gotModel != "whisper-1" || gotLanguage != "en" {
		t.Fatalf("unexpected form: format=%q model=%q language=%q", gotFormat, gotModel, gotLanguage)
	}
	if result.Text != "hello world" {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if len(result.Segments) != 2 || result.Segments[0].EndMS != 1250 || result.Segments[1].Text != "world" {
		t.Fatalf("unexpected segments %+v", result.Segments)
	}
	if svc.Name() != "openai/whisper-1" {
		t.Fatalf("unexpected name %q", svc.Name())
	}
}

func TestOpenAITranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
	}))
	defer server.Close()

	audio := filepath.Join(t.TempDir(), "a.mp3")
	if err := os.WriteFile(audio, []byte("ID3"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := NewOpenAI(OpenAIConfig{BaseURL: server.URL}, nil)
	if _, err := svc.Transcribe(context.Background(), audio); err == nil {
		t.Fatal("expected error from failing server")
	}
}

func TestOpenAIClosed(t *testing.T) {
	svc := NewOpenAI(OpenAIConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	_ = svc.Close()
	if _, err := svc.Transcribe(context.Background(), "/in/a.wav"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOpenAIHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"whisper-1","object":"model"}]}`))
	}))
	defer server.Close()

	good := NewOpenAI(OpenAIConfig{APIKey: "good", BaseURL: server.URL + "/v1"}, nil)
	if err := good.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	bad := NewOpenAI(OpenAIConfig{APIKey: "bad", BaseURL: server.URL + "/v1"}, nil)
	if err := bad.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected auth failure")
	}
	other := NewOpenAI(OpenAIConfig{APIKey: "good", BaseURL: server.URL + "/v1", Model: "large-v3"}, nil)
	if err := other.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for unlisted model")
	}
}
