package leads

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/access"
	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/platform/httpx"
)

// Handler exposes leads over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the lead routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.update)
		r.Delete("/", h.delete)
		r.Get("/history", h.history)
	})
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListRequest{Status: q.Get("status"), Source: q.Get("source")}
	if raw := q.Get("owner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.fail(w, r, access.InvalidInput(entity.Leads.Name, "list", "owner_id must be a uuid"))
			return
		}
		req.OwnerID = &id
	}
	var err error
	if req.Limit, err = intParam(q.Get("limit")); err != nil {
		h.fail(w, r, access.InvalidInput(entity.Leads.Name, "list", "limit must be a number"))
		return
	}
	if req.Offset, err = intParam(q.Get("offset")); err != nil {
		h.fail(w, r, access.InvalidInput(entity.Leads.Name, "list", "offset must be a number"))
		return
	}

	if q.Get("full") == "true" {
		rows, err := h.service.ListFull(r.Context(), req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, listResponse[LeadFull]{Data: rows})
		return
	}
	rows, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if rows == nil {
		rows = []entity.Lead{}
	}
	httpx.JSON(w, http.StatusOK, listResponse[entity.Lead]{Data: rows})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	lead, err := h.service.GetFull(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, access.InvalidInput(entity.Leads.Name, "create", "malformed request body"))
		return
	}
	lead, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, lead)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.fail(w, r, access.InvalidInput(entity.Leads.Name, "update", "malformed request body"))
		return
	}
	lead, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lead)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	page, _ := intParam(r.URL.Query().Get("page"))
	size, _ := intParam(r.URL.Query().Get("page_size"))
	res, err := h.service.History(r.Context(), id, page, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, access.InvalidInput(entity.Leads.Name, "", "id must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.Fail(h.logger, w, r, err)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
