package clip

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
)

func clipServer(t *testing.T, dims int, lastReq *map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		*lastReq = req
		json.NewEncoder(w).Encode(map[string]any{"embedding": make([]float64, dims)})
	}))
}

func TestEncodeText(t *testing.T) {
	var last map[string]string
	srv := clipServer(t, 8, &last)
	defer srv.Close()

	c := New(srv.URL, 8, 0)
	vec, err := c.EncodeText(context.Background(), "a red bicycle")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 8 {
		t.Fatalf("dims = %d, want 8", len(vec))
	}
	if last["text"] != "a red bicycle" {
		t.Errorf("request text = %q", last["text"])
	}
	if last["image"] != "" {
		t.Error("text request should not carry an image")
	}
}

func TestEncodeImage(t *testing.T) {
	var last map[string]string
	srv := clipServer(t, 8, &last)
	defer srv.Close()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	c := New(srv.URL, 8, 0)
	if _, err := c.EncodeImage(context.Background(), img); err != nil {
		t.Fatal(err)
	}
	if last["image"] == "" {
		t.Fatal("image request missing payload")
	}
	raw, err := base64.StdEncoding.DecodeString(last["image"])
	if err != nil {
		t.Fatalf("image payload is not base64: %v", err)
	}
	// PNG magic bytes.
	if len(raw) < 4 || raw[1] != 'P' || raw[2] != 'N' || raw[3] != 'G' {
		t.Error("image payload is not a PNG")
	}
}

func TestDimsMismatch(t *testing.T) {
	var last map[string]string
	srv := clipServer(t, 4, &last)
	defer srv.Close()

	c := New(srv.URL, 8, 0)
	if _, err := c.EncodeText(context.Background(), "x"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}
