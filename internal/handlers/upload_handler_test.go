package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(content)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	r := gin.New()
	r.POST("/uploads", UploadFile(dir))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "licencia.JPG", []byte("fake-jpeg")))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if !strings.HasPrefix(body.URL, "/uploads/") || !strings.HasSuffix(body.URL, ".jpg") {
		t.Fatalf("unexpected url %q", body.URL)
	}

	saved := filepath.Join(dir, strings.TrimPrefix(body.URL, "/uploads/"))
	data, err := os.ReadFile(saved)
	if err != nil || string(data) != "fake-jpeg" {
		t.Errorf("file not stored at %s: %v", saved, err)
	}
}

func TestUploadFileRejectsExtension(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/uploads", UploadFile(t.TempDir()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "script.sh", []byte("#!/bin/sh")))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/uploads", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without file, got %d", w.Code)
	}
}

func TestUploadFileTooLarge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	r := gin.New()
	r.POST("/uploads", UploadFile(dir))

	big := bytes.Repeat([]byte("x"), maxUploadSize+2<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "moto.png", big))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("declared length: expected 413, got %d", w.Code)
	}

	// длина не объявлена: тело обрезается при чтении
	req := uploadRequest(t, "moto.png", big)
	req.ContentLength = -1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("chunked body: expected 413, got %d", w.Code)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("nothing must be stored, found %d entries", len(entries))
	}
}
