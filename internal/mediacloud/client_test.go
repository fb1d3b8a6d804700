package mediacloud

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testCreds() Credentials {
	return Credentials{AccountID: "acme", APIKey: "key", APISecret: "secret"}
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Unix(1700000000, 0) }
}

func TestCheckCreds(t *testing.T) {
	ctx := context.Background()
	client := NewClient()

	t.Run("missing account", func(t *testing.T) {
		_, err := client.Search(ctx, Credentials{APIKey: "k", APISecret: "s"}, "x", 1)
		if !errors.Is(err, ErrAccountIDRequired) {
			t.Errorf("expected ErrAccountIDRequired, got %v", err)
		}
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := client.Search(ctx, Credentials{AccountID: "a", APIKey: "k"}, "x", 1)
		if !errors.Is(err, ErrCredentialsMissing) {
			t.Errorf("expected ErrCredentialsMissing, got %v", err)
		}
	})
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1_1/acme/resources/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != BasicAuth("key", "secret") {
			t.Errorf("unexpected auth header %q", got)
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Expression != "resource_type:image AND tags=final" {
			t.Errorf("unexpected expression %q", req.Expression)
		}
		if req.MaxResults != 50 {
			t.Errorf("unexpected max_results %d", req.MaxResults)
		}
		_, _ = w.Write([]byte(`{
			"total_count": 2,
			"resources": [
				{"public_id": "a", "tags": ["final"], "secure_url": "https://cdn/a.jpg"},
				{"public_id": "b", "context": {"custom": {"final": true}}}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	assets, err := client.Search(context.Background(), testCreds(), "resource_type:image AND tags=final", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	if !assets[0].IsFinal() {
		t.Error("asset a should be final via tags")
	}
	if !assets[1].IsFinal() {
		t.Error("asset b should be final via context boolean")
	}
	if assets[0].DownloadURL() != "https://cdn/a.jpg" {
		t.Errorf("unexpected download URL %q", assets[0].DownloadURL())
	}
}

func TestSearch_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad credentials"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), testCreds(), "x", 1)

	var searchErr *SearchError
	if !errors.As(err, &searchErr) {
		t.Fatalf("expected SearchError, got %v", err)
	}
	if searchErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", searchErr.Status)
	}
	if !strings.Contains(searchErr.Body, "bad credentials") {
		t.Errorf("body = %q", searchErr.Body)
	}
}

func TestFetchByPublicID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1_1/acme/resources/image/upload/img1" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			_, _ = w.Write([]byte(`{"public_id": "img1", "format": "jpg", "context": {"reel": "true"}}`))
		}))
		defer srv.Close()

		client := NewClient(WithBaseURL(srv.URL))
		asset, err := client.FetchByPublicID(context.Background(), testCreds(), "img1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if asset == nil || asset.PublicID != "img1" {
			t.Fatalf("unexpected asset %+v", asset)
		}
		if !asset.IsReel() {
			t.Error("expected reel flag from flat string context")
		}
	})

	t.Run("not found maps to nil", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		client := NewClient(WithBaseURL(srv.URL))
		asset, err := client.FetchByPublicID(context.Background(), testCreds(), "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if asset != nil {
			t.Errorf("expected nil asset, got %+v", asset)
		}
	})
}

func TestUpdateTags(t *testing.T) {
	t.Run("empty ids is a no-op", func(t *testing.T) {
		called := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		client := NewClient(WithBaseURL(srv.URL))
		if err := client.UpdateTags(context.Background(), testCreds(), nil, TagCommandAdd, TagReel); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if called {
			t.Error("expected no network call for empty public ids")
		}
	})

	t.Run("signed form", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1_1/acme/image/tags" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			if got := r.PostForm["public_ids[]"]; len(got) != 2 || got[0] != "a" || got[1] != "b" {
				t.Errorf("unexpected public_ids %v", got)
			}
			want := SignParams(map[string]string{
				"command":    "add",
				"tag":        "reel",
				"public_ids": "a,b",
				"timestamp":  "1700000000",
				"type":       "upload",
			}, "secret")
			if got := r.PostForm.Get("signature"); got != want {
				t.Errorf("signature = %s, want %s", got, want)
			}
			if got := r.PostForm.Get("api_key"); got != "key" {
				t.Errorf("api_key = %s", got)
			}
		}))
		defer srv.Close()

		client := NewClient(WithBaseURL(srv.URL), WithClock(fixedClock()))
		err := client.UpdateTags(context.Background(), testCreds(), []string{"a", "b"}, TagCommandAdd, TagReel)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestUpdateContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1_1/acme/image/context" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("context"); got != "reel=true" {
			t.Errorf("context = %q", got)
		}
		want := SignParams(map[string]string{
			"command":    "add",
			"context":    "reel=true",
			"public_ids": "img1",
			"timestamp":  "1700000000",
			"type":       "upload",
		}, "secret")
		if got := r.PostForm.Get("signature"); got != want {
			t.Errorf("signature = %s, want %s", got, want)
		}
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithClock(fixedClock()))
	err := client.UpdateContext(context.Background(), testCreds(), "img1", "reel", "true", "upload")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUploadVideo(t *testing.T) {
	tmpDir := t.TempDir()
	videoPath := filepath.Join(tmpDir, "reel.mp4")
	if err := os.WriteFile(videoPath, []byte("fake mp4 bytes"), 0600); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1_1/acme/video/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		want := SignParams(map[string]string{
			"folder":    "reels",
			"public_id": "reels/out1",
			"timestamp": "1700000000",
		}, "secret")
		if got := r.FormValue("signature"); got != want {
			t.Errorf("signature = %s, want %s", got, want)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()

		_, _ = w.Write([]byte(`{"public_id": "reels/out1", "url": "http://cdn/out1.mp4", "secure_url": "https://cdn/out1.mp4"}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithClock(fixedClock()))
	result, err := client.UploadVideo(context.Background(), testCreds(), videoPath, "reels", "reels/out1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PublicID != "reels/out1" {
		t.Errorf("public_id = %s", result.PublicID)
	}
	if result.SecureURL != "https://cdn/out1.mp4" {
		t.Errorf("secure_url = %s", result.SecureURL)
	}
}

func TestUploadVideo_NonOK(t *testing.T) {
	tmpDir := t.TempDir()
	videoPath := filepath.Join(tmpDir, "reel.mp4")
	if err := os.WriteFile(videoPath, []byte("x"), 0600); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid signature"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.UploadVideo(context.Background(), testCreds(), videoPath, "reels", "id")

	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if uploadErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d", uploadErr.Status)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("image bytes"))
	}))
	defer srv.Close()

	tmpDir := t.TempDir()
	dest := filepath.Join(tmpDir, "img.jpg")

	client := NewClient()
	if err := client.Download(context.Background(), srv.URL+"/img.jpg", dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "image bytes" {
		t.Errorf("unexpected content %q", data)
	}
}

func TestDownload_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient()
	err := client.Download(context.Background(), srv.URL+"/img.jpg", filepath.Join(t.TempDir(), "img.jpg"))

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Status != http.StatusForbidden {
		t.Errorf("status = %d", reqErr.Status)
	}
}
