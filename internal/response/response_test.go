package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearn-backend/internal/i18n"
)

func serve(t *testing.T, lang string, h gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), i18n.Middleware())
	r.GET("/", h)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return w, body
}

func TestFailLocalizesMessage(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"en", "This resource is restricted to students."},
		{"id", "Sumber daya ini terbatas untuk siswa."},
	}
	for _, tt := range tests {
		w, body := serve(t, tt.lang, func(c *gin.Context) {
			Fail(c, http.StatusForbidden, ErrStudentAccessOnly)
		})
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d", w.Code)
		}
		if body.Error == nil || body.Error.Code != ErrStudentAccessOnly || body.Error.Message != tt.want {
			t.Fatalf("[%s] error = %+v", tt.lang, body.Error)
		}
		if body.Metadata.RequestID != "req-1" {
			t.Fatalf("request id = %q", body.Metadata.RequestID)
		}
	}
}

func TestRequestIDMiddlewareReplacesUnusableIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestID(c)) })

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"caller id kept", "trace-42", true},
		{"missing", "", false},
		{"too long", strings.Repeat("x", maxRequestIDLen+1), false},
		{"contains space", "a b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got != w.Body.String() {
				t.Fatalf("header %q differs from context %q", got, w.Body.String())
			}
			if tt.keep != (got == tt.header) {
				t.Fatalf("id = %q, keep = %v", got, tt.keep)
			}
			if got == "" {
				t.Fatal("empty request id")
			}
		})
	}
}

func TestAcceptedCarriesDataAndError(t *testing.T) {
	w, body := serve(t, "en", func(c *gin.Context) {
		Accepted(c, gin.H{"score": 67}, ErrPersistence)
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if body.Error == nil || body.Error.Code != ErrPersistence {
		t.Fatalf("error = %+v", body.Error)
	}
	data, ok := body.Data.(map[string]any)
	if !ok || data["score"] != float64(67) {
		t.Fatalf("data = %#v", body.Data)
	}
}

func TestUnknownCodeGetsGenericMessage(t *testing.T) {
	_, body := serve(t, "en", func(c *gin.Context) {
		Fail(c, http.StatusTeapot, ErrCode("SOMETHING_ELSE"))
	})
	if body.Error.Message != "An unexpected error occurred." {
		t.Fatalf("message = %q", body.Error.Message)
	}
}

func TestNewPagination(t *testing.T) {
	cases := []struct{ page, per, total, pages int }{
		{1, 10, 0, 0},
		{1, 10, 10, 1},
		{2, 10, 11, 2},
		{1, 0, 5, 0},
	}
	for _, c := range cases {
		if got := NewPagination(c.page, c.per, c.total); got.TotalPages != c.pages {
			t.Errorf("NewPagination(%d,%d,%d).TotalPages = %d, want %d", c.page, c.per, c.total, got.TotalPages, c.pages)
		}
	}
}
