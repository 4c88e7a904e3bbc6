package validation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Document string `json:"document" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Method   string `json:"payment_method" binding:"omitempty,payment_method"`
}

func perform(t *testing.T, body string) (int, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	Setup()

	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req registerRequest
		if !Bind(c, &req) {
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid json response: %v", err)
		}
	}
	return w.Code, out
}

func TestMissingFieldUsesJSONName(t *testing.T) {
	code, out := perform(t, `{"name":"Ana","email":"ana@example.com","password":"12345678"}`)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	errs := out["errors"].(map[string]any)
	if _, ok := errs["document"]; !ok {
		t.Errorf("expected error on document, got %v", errs)
	}
	if len(errs) != 1 {
		t.Errorf("expected only document to fail, got %v", errs)
	}
}

func TestCustomRule(t *testing.T) {
	code, out := perform(t, `{"name":"Ana","email":"ana@example.com","password":"12345678","document":"1","payment_method":"bitcoin"}`)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	if _, ok := out["errors"].(map[string]any)["payment_method"]; !ok {
		t.Errorf("expected payment_method error, got %v", out)
	}
}

func TestMalformedBody(t *testing.T) {
	code, out := perform(t, `{"name":`)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", code)
	}
	if _, ok := out["errors"].(map[string]any)["body"]; !ok {
		t.Errorf("expected body error, got %v", out)
	}
}

func TestValidRequest(t *testing.T) {
	code, _ := perform(t, `{"name":"Ana","email":"ana@example.com","password":"12345678","document":"CC123","payment_method":"cash"}`)
	if code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
}

func TestCustomErrorTranslation(t *testing.T) {
	errs := Translate(NewError("email", "уже занят"))
	if errs["email"][0] != "уже занят" {
		t.Errorf("unexpected translation: %v", errs)
	}
}
