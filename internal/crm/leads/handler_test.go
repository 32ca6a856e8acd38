package leads

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
)

func newRouter(e *env, ctxFor func(context.Context) context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(ctxFor(req.Context())))
		})
	})
	r.Route("/leads", NewHandler(nil, e.service).MountRoutes)
	return r
}

func employeeCtx(profile uuid.UUID) func(context.Context) context.Context {
	ac := authz.FromContext(asEmployee(profile))
	return func(ctx context.Context) context.Context { return authz.WithAuthContext(ctx, ac) }
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerLifecycle(t *testing.T) {
	e := newEnv(t)
	me := uuid.New()
	h := newRouter(e, employeeCtx(me))

	rec := do(h, http.MethodPost, "/leads", `{"title":"Globex pilot","value_cents":5000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created entity.Lead
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Globex pilot", created.Title)

	rec = do(h, http.MethodGet, "/leads/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var full LeadFull
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &full))
	assert.Equal(t, created.ID, full.ID)

	rec = do(h, http.MethodPatch, "/leads/"+created.ID.String(), `{"status":"qualified"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(h, http.MethodGet, "/leads?status=qualified&full=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Data []LeadFull `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Data, 1)

	rec = do(h, http.MethodGet, "/leads/"+created.ID.String()+"/history", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(h, http.MethodDelete, "/leads/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(h, http.MethodGet, "/leads/"+created.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerErrors(t *testing.T) {
	e := newEnv(t)
	foreign := e.seedLead(uuid.New(), nil, 1)
	h := newRouter(e, employeeCtx(uuid.New()))
	anon := newRouter(e, func(ctx context.Context) context.Context { return ctx })

	cases := []struct {
		name    string
		handler http.Handler
		method  string
		target  string
		body    string
		status  int
	}{
		{"invalid body", h, http.MethodPost, "/leads", `{"title":`, http.StatusBadRequest},
		{"unknown field", h, http.MethodPost, "/leads", `{"title":"x","owner_id":"` + uuid.NewString() + `"}`, http.StatusBadRequest},
		{"validation", h, http.MethodPost, "/leads", `{"title":"x","status":"archived"}`, http.StatusBadRequest},
		{"bad id", h, http.MethodGet, "/leads/not-a-uuid", "", http.StatusBadRequest},
		{"bad limit", h, http.MethodGet, "/leads?limit=ten", "", http.StatusBadRequest},
		{"foreign lead", h, http.MethodGet, "/leads/" + foreign.String(), "", http.StatusNotFound},
		{"foreign update", h, http.MethodPatch, "/leads/" + foreign.String(), `{"title":"x"}`, http.StatusNotFound},
		{"anonymous", anon, http.MethodGet, "/leads", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(tc.handler, tc.method, tc.target, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}
