package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docflow/docflow/server/internal/document/repository"
	"github.com/docflow/docflow/server/internal/document/service"
	"github.com/docflow/docflow/server/internal/users"
	"github.com/docflow/docflow/server/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Count   int             `json:"count"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	g     *gin.Engine
	alice string
	bob   string
	carol string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := users.NewService(users.NewMemoryUserRepository())
	f := &fixture{g: gin.New()}
	for _, u := range []struct {
		email, name, dept string
		id                *string
	}{
		{"alice@example.com", "Alice", "Finance", &f.alice},
		{"bob@example.com", "Bob", "Legal", &f.bob},
		{"carol@example.com", "Carol", "HR", &f.carol},
	} {
		created, err := dir.Register(t.Context(), users.RegisterInput{Email: u.email, Password: "secret1", Name: u.name, Department: u.dept, Verified: true})
		require.NoError(t, err)
		*u.id = created.ID
	}

	svc := service.New(repository.NewMemoryRepo(), dir, service.Options{})
	rg := f.g.Group("/api/documents", func(c *gin.Context) {
		if id := c.GetHeader("X-Caller"); id != "" {
			c.Set(middleware.CallerIDKey, id)
		}
		c.Next()
	})
	RegisterDocumentRoutes(rg, svc)
	return f
}

func (f *fixture) do(t *testing.T, method, path, caller, body string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	f.g.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (f *fixture) create(t *testing.T) string {
	t.Helper()
	code, env := f.do(t, http.MethodPost, "/api/documents", f.alice,
		`{"title":"Budget","description":"Q3 budget","type":"Memo","priority":"High","receiverEmail":"bob@example.com"}`)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var doc struct {
		ID         string `json:"id"`
		TrackingID string `json:"trackingId"`
		Status     string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	require.Regexp(t, `^DOC-[0-9A-Z]{9}$`, doc.TrackingID)
	require.Equal(t, "Pending", doc.Status)
	return doc.ID
}

func TestDocumentHandler_Lifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)

	code, env := f.do(t, http.MethodGet, "/api/documents/inbox", f.bob, "")
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
	require.Equal(t, 1, env.Count)

	code, env = f.do(t, http.MethodGet, "/api/documents/received", f.alice, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 0, env.Count)

	code, env = f.do(t, http.MethodPut, "/api/documents/"+id+"/status", f.bob, `{"status":"Accepted"}`)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = f.do(t, http.MethodPut, "/api/documents/"+id+"/forward", f.bob, `{"receiverEmail":"carol@example.com","comment":"please sign"}`)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = f.do(t, http.MethodGet, "/api/documents/"+id, f.carol, "")
	require.Equal(t, http.StatusOK, code, env.Error)
	var view struct {
		Status   string `json:"status"`
		Receiver struct {
			Name string `json:"name"`
		} `json:"receiver"`
		History []struct {
			Kind      string `json:"kind"`
			Status    string `json:"status"`
			Comment   string `json:"comment"`
			UpdatedBy struct {
				Email string `json:"email"`
			} `json:"updatedBy"`
			ForwardedTo *struct {
				Name string `json:"name"`
			} `json:"forwardedTo"`
		} `json:"history"`
		Version int64 `json:"version"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Equal(t, "Pending", view.Status)
	require.Equal(t, "Carol", view.Receiver.Name)
	require.Len(t, view.History, 3)
	require.Equal(t, "forwarded", view.History[2].Kind)
	require.Equal(t, "Forwarded", view.History[2].Status)
	require.Equal(t, "Forwarded to Carol (HR). please sign", view.History[2].Comment)
	require.Equal(t, "bob@example.com", view.History[2].UpdatedBy.Email)
	require.NotNil(t, view.History[2].ForwardedTo)
	require.Equal(t, int64(3), view.Version)

	// bob acted on the document without sending it
	code, env = f.do(t, http.MethodGet, "/api/documents/sent", f.bob, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, env.Count)
	code, env = f.do(t, http.MethodGet, "/api/documents/outbox", f.alice, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, env.Count)
	code, env = f.do(t, http.MethodGet, "/api/documents", f.carol, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, env.Count)
}

func TestDocumentHandler_ErrorMapping(t *testing.T) {
	f := newFixture(t)
	id := f.create(t)

	cases := []struct {
		name, method, path, caller, body string
		code                             int
		msg                              string
	}{
		{"no caller", http.MethodGet, "/api/documents", "", "", http.StatusUnauthorized, ""},
		{"bad body", http.MethodPost, "/api/documents", f.alice, `{`, http.StatusBadRequest, "invalid request body"},
		{"missing title", http.MethodPost, "/api/documents", f.alice, `{"description":"d","receiverEmail":"bob@example.com"}`, http.StatusBadRequest, "Please add a document title"},
		{"unknown receiver", http.MethodPost, "/api/documents", f.alice, `{"title":"t","description":"d","receiverEmail":"nobody@example.com"}`, http.StatusNotFound, "Receiver email not found"},
		{"missing document", http.MethodGet, "/api/documents/000000000000000000000000", f.alice, "", http.StatusNotFound, "Document not found"},
		{"outsider get", http.MethodGet, "/api/documents/" + id, f.carol, "", http.StatusForbidden, "Not authorized"},
		{"sender cannot update", http.MethodPut, "/api/documents/" + id + "/status", f.alice, `{"status":"Approved"}`, http.StatusForbidden, "Not authorized to update status"},
		{"invalid status", http.MethodPut, "/api/documents/" + id + "/status", f.bob, `{"status":"Done"}`, http.StatusBadRequest, ""},
		{"stale version", http.MethodPut, "/api/documents/" + id + "/status", f.bob, `{"status":"Accepted","version":7}`, http.StatusConflict, ""},
		{"self forward", http.MethodPut, "/api/documents/" + id + "/forward", f.bob, `{"receiverEmail":"bob@example.com"}`, http.StatusBadRequest, "Cannot forward to yourself"},
		{"non receiver forward", http.MethodPut, "/api/documents/" + id + "/forward", f.carol, `{"receiverEmail":"alice@example.com"}`, http.StatusForbidden, "Not authorized to forward"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, env := f.do(t, tc.method, tc.path, tc.caller, tc.body)
			require.Equal(t, tc.code, code, env.Error)
			require.False(t, env.Success)
			if tc.msg != "" {
				require.Equal(t, tc.msg, env.Error)
			}
		})
	}

	// none of the failures above touched the document
	code, env := f.do(t, http.MethodGet, "/api/documents/"+id, f.alice, "")
	require.Equal(t, http.StatusOK, code)
	var view struct {
		History []json.RawMessage `json:"history"`
		Version int64             `json:"version"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.History, 1)
	require.Equal(t, int64(1), view.Version)
}
