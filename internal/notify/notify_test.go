package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func TestWebhook_Notify(t *testing.T) {
	var gotPayload string
	var gotFiles []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
			return
		}
		gotPayload = r.FormValue("payload_json")
		for field, headers := range r.MultipartForm.File {
			for _, fh := range headers {
				f, err := fh.Open()
				if err != nil {
					t.Fatal(err)
				}
				data, _ := io.ReadAll(f)
				f.Close() //nolint:errcheck
				gotFiles = append(gotFiles, field+":"+fh.Filename+":"+string(data))
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, testLogger())
	err := wh.Notify(context.Background(), "Aurora activity detected!", []Image{
		{Name: "muonio.jpg", Data: []byte("frame")},
		{Name: "activity_map.png", Data: []byte("map")},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(gotPayload), &payload); err != nil {
		t.Fatalf("payload_json = %q: %v", gotPayload, err)
	}
	if payload.Content != "Aurora activity detected!" {
		t.Errorf("content = %q", payload.Content)
	}

	if len(gotFiles) != 2 {
		t.Fatalf("files = %v, want 2", gotFiles)
	}
	want := map[string]bool{
		"files[0]:muonio.jpg:frame":     true,
		"files[1]:activity_map.png:map": true,
	}
	for _, f := range gotFiles {
		if !want[f] {
			t.Errorf("unexpected file part %q", f)
		}
	}
}

func TestWebhook_NotifyNoImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, testLogger())
	if err := wh.Notify(context.Background(), "aurorawatcher started", nil); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}

func TestWebhook_NotifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, testLogger())
	err := wh.Notify(context.Background(), "alert", nil)
	if err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}

func TestLogNotifier(t *testing.T) {
	ln := &LogNotifier{Logger: testLogger()}
	if err := ln.Notify(context.Background(), "alert", []Image{{Name: "a.jpg", Data: []byte("x")}}); err != nil {
		t.Errorf("LogNotifier.Notify: %v", err)
	}
}
