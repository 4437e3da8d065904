package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"docrag/llm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(method, path, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reqBody *strings.Reader
	if body == "" {
		reqBody = strings.NewReader("")
	} else {
		reqBody = strings.NewReader(body)
	}
	c.Request = httptest.NewRequest(method, path, reqBody)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

// These cover the request-validation paths every handler runs before it
// touches the database or any other dependency, so nil stores are safe.

func TestAuthHandlerLoginRejectsMissingFields(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil)
	c, w := testContext(http.MethodPost, "/api/auth/login", `{"username":""}`)

	h.Login(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAuthHandlerRegisterRejectsMissingFields(t *testing.T) {
	h := NewAuthHandler(nil, nil, nil)
	c, w := testContext(http.MethodPost, "/api/auth/register", `{}`)

	h.Register(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestCollectionsHandlerCreateRejectsMissingName(t *testing.T) {
	h := NewCollectionsHandler(nil, nil, nil)
	c, w := testContext(http.MethodPost, "/api/create-collection", `{}`)

	h.Create(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), collectionNameRule) {
		t.Errorf("expected body to surface the naming rule, got %q", w.Body.String())
	}
}

func TestCollectionsHandlerDeleteRejectsMissingName(t *testing.T) {
	h := NewCollectionsHandler(nil, nil, nil)
	c, w := testContext(http.MethodPost, "/api/delete-collection", `{}`)

	h.Delete(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDocumentHandlerUploadRejectsMissingCollection(t *testing.T) {
	h := NewDocumentHandler(nil, nil, nil, nil, nil, 0, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/upload_and_embed", strings.NewReader(""))

	h.UploadAndEmbed(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDocumentHandlerCheckFileExistsRejectsMissingFields(t *testing.T) {
	h := NewDocumentHandler(nil, nil, nil, nil, nil, 0, nil)
	c, w := testContext(http.MethodPost, "/api/check_file_exists", `{}`)

	h.CheckFileExists(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDocumentHandlerSearchDocumentsRejectsMissingParams(t *testing.T) {
	h := NewDocumentHandler(nil, nil, nil, nil, nil, 0, nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/search-documents", nil)

	h.SearchDocuments(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestQueryHandlerProcessQueryRejectsUnknownLLMName(t *testing.T) {
	h := NewQueryHandler(nil, nil, nil, nil, QueryDefaults{Backend: llm.KindLocalChat}, nil, nil)
	c, w := testContext(http.MethodPost, "/api/process_query",
		`{"query":"q","collections":["docs"],"llm_name":"made-up-backend"}`)

	h.ProcessQuery(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestQueryHandlerProcessQueryRejectsMissingFields(t *testing.T) {
	h := NewQueryHandler(nil, nil, nil, nil, QueryDefaults{Backend: llm.KindLocalChat}, nil, nil)
	c, w := testContext(http.MethodPost, "/api/process_query", `{}`)

	h.ProcessQuery(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
