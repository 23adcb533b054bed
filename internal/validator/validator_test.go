package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearn-backend/internal/model"
)

func bindRequest(t *testing.T, body, lang string) map[string]string {
	t.Helper()
	Setup()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if lang != "" {
		c.Request.Header.Set("Accept-Language", lang)
	}
	var req model.CreateExamRequest
	return Bind(c, &req)
}

func TestBindValid(t *testing.T) {
	body := `{"course_id":"6f1c2a52-6c1e-4d7b-9d8e-0b9a4f3b2c11","title":"Final","description":"x","duration":30,
		"questions":[{"question":"2+2?","options":["1","2","3","4"],"correct_answer":3}]}`
	if fields := bindRequest(t, body, ""); fields != nil {
		t.Fatalf("unexpected errors: %v", fields)
	}
}

func TestBindReportsNestedFields(t *testing.T) {
	body := `{"course_id":"6f1c2a52-6c1e-4d7b-9d8e-0b9a4f3b2c11","title":"Final","description":"x","duration":30,
		"questions":[{"question":"2+2?","options":["1","2"],"correct_answer":3}]}`
	fields := bindRequest(t, body, "en")
	if _, ok := fields["questions[0].options"]; !ok {
		t.Fatalf("fields = %v, want questions[0].options", fields)
	}
}

func TestBindTranslatesIndonesian(t *testing.T) {
	en := bindRequest(t, `{}`, "en")
	id := bindRequest(t, `{}`, "id")
	if en["title"] == "" || id["title"] == "" {
		t.Fatalf("missing title error: en=%v id=%v", en, id)
	}
	if en["title"] == id["title"] {
		t.Fatalf("messages not localized: %q", en["title"])
	}
}

func TestBindMalformedJSON(t *testing.T) {
	fields := bindRequest(t, `{"title":`, "")
	if _, ok := fields["detail"]; !ok {
		t.Fatalf("fields = %v, want detail", fields)
	}
}
