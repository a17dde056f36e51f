package services

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestObjectNameSanitizesAndPrefixes(t *testing.T) {
	name := objectName("/receipts/42/", "../My Receipt (1).pdf", testTime)

	if !strings.HasPrefix(name, "receipts/42/20300102-") {
		t.Fatalf("unexpected prefix in %q", name)
	}
	if !strings.HasSuffix(name, "-My_Receipt_1_.pdf") {
		t.Fatalf("unexpected sanitized name in %q", name)
	}
	if other := objectName("receipts/42", "../My Receipt (1).pdf", testTime); other == name {
		t.Fatal("expected unique object names")
	}
	if blank := objectName("avatars", "", testTime); !strings.HasSuffix(blank, "-file.bin") {
		t.Fatalf("expected fallback name, got %q", blank)
	}
}

func TestSupabaseStorageServiceUploadAndDelete(t *testing.T) {
	var uploadedPath, deletedPath, contentType, authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		switch r.Method {
		case http.MethodPost:
			uploadedPath = r.URL.Path
			contentType = r.Header.Get("Content-Type")
			_, _ = io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			deletedPath = r.URL.Path
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	service := NewSupabaseStorageService(server.URL+"/", "uploads", "service-key")
	service.now = func() time.Time { return testTime }

	fileURL, err := service.UploadFile(context.Background(), strings.NewReader("%PDF-1.4 receipt"), "receipt.pdf", "receipts/42")
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if !strings.HasPrefix(uploadedPath, "/storage/v1/object/uploads/receipts/42/20300102-") {
		t.Fatalf("unexpected upload path %q", uploadedPath)
	}
	if contentType != "application/pdf" {
		t.Fatalf("expected detected content type, got %q", contentType)
	}
	if authHeader != "Bearer service-key" {
		t.Fatalf("expected service key auth, got %q", authHeader)
	}
	if !strings.HasPrefix(fileURL, server.URL+"/storage/v1/object/public/uploads/receipts/42/") {
		t.Fatalf("unexpected public url %q", fileURL)
	}

	if err := service.DeleteFile(context.Background(), fileURL); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
	if deletedPath != uploadedPath {
		t.Fatalf("expected delete of %q, got %q", uploadedPath, deletedPath)
	}

	if err := service.DeleteFile(context.Background(), "https://elsewhere.example.com/file.pdf"); err == nil {
		t.Fatal("expected foreign url to be rejected")
	}
}

func TestSupabaseStorageServiceSignedURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/storage/v1/object/sign/uploads/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var payload map[string]int
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["expiresIn"] != signedURLSeconds {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"signedURL": "/object/sign/uploads/a.pdf?token=abc"})
	}))
	defer server.Close()

	service := NewSupabaseStorageService(server.URL, "uploads", "service-key")
	signed, err := service.GetSignedURL(context.Background(), server.URL+"/storage/v1/object/public/uploads/a.pdf")
	if err != nil {
		t.Fatalf("GetSignedURL: %v", err)
	}
	if signed != server.URL+"/storage/v1/object/sign/uploads/a.pdf?token=abc" {
		t.Fatalf("unexpected signed url %q", signed)
	}
}

func TestSupabaseStorageServiceReportsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("bucket policy"))
	}))
	defer server.Close()

	service := NewSupabaseStorageService(server.URL, "uploads", "service-key")
	_, err := service.UploadFile(context.Background(), strings.NewReader("data"), "a.txt", "x")
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := service.UploadFile(context.Background(), strings.NewReader(""), "a.txt", "x"); err == nil {
		t.Fatal("expected empty upload to fail")
	}
}

func TestShrinkImageFitsLargePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2000, 1000))
	img.Set(10, 10, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}

	resized, ok := shrinkImage(buf.Bytes(), "image/png")
	if !ok {
		t.Fatal("expected large image to be resized")
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(resized))
	if err != nil {
		t.Fatalf("decode resized: %v", err)
	}
	if cfg.Width != maxImageSide || cfg.Height != maxImageSide/2 {
		t.Fatalf("expected %dx%d, got %dx%d", maxImageSide, maxImageSide/2, cfg.Width, cfg.Height)
	}

	if _, ok := shrinkImage([]byte("small"), "text/plain"); ok {
		t.Fatal("expected non-images to be left alone")
	}
}
