package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestProvider(url string) *GeminiProvider {
	return NewGeminiProvider(GeminiConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "gemini-3-pro-image-preview",
	})
}

func TestGeminiGenerate(t *testing.T) {
	sheet := []byte("fake-png-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-3-pro-image-preview:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			t.Errorf("expected prompt + image parts")
		}

		fmt.Fprintf(w, `{"candidates":[{"content":{"parts":[{"inline_data":{"mime_type":"image/png","data":"%s"}}]}}]}`,
			base64.StdEncoding.EncodeToString(sheet))
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)

	result, err := provider.Generate(context.Background(), GenerateRequest{
		Prompt:        "make stickers",
		ImageData:     []byte("photo"),
		ImageMimeType: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if string(result.ImageData) != string(sheet) {
		t.Error("returned image does not match")
	}
	if result.MimeType != "image/png" {
		t.Errorf("mime type = %s, want image/png", result.MimeType)
	}
}

func TestGeminiGenerateBlocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)

	_, err := provider.Generate(context.Background(), GenerateRequest{
		Prompt:        "make stickers",
		ImageData:     []byte("photo"),
		ImageMimeType: "image/jpeg",
	})
	if !errors.Is(err, ErrContentBlocked) {
		t.Fatalf("expected ErrContentBlocked, got %v", err)
	}
}

func TestGeminiGenerateNoImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"sorry, no image"}]}}]}`)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)

	_, err := provider.Generate(context.Background(), GenerateRequest{
		Prompt:        "make stickers",
		ImageData:     []byte("photo"),
		ImageMimeType: "image/jpeg",
	})
	if !errors.Is(err, ErrNoImageReturned) {
		t.Fatalf("expected ErrNoImageReturned, got %v", err)
	}
}

func TestGeminiGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"code":429,"message":"quota exceeded"}}`)
	}))
	defer server.Close()

	provider := newTestProvider(server.URL)

	_, err := provider.Generate(context.Background(), GenerateRequest{
		Prompt:        "make stickers",
		ImageData:     []byte("photo"),
		ImageMimeType: "image/jpeg",
	})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}
