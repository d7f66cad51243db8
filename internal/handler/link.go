package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/service"
	"github.com/linkgate/linkgate/internal/validation"
)

// LinkHandler handles HTTP requests for link operations.
type LinkHandler struct {
	svc      *service.LinkService
	validate *validation.Validator
	logger   *slog.Logger
}

// NewLinkHandler creates a new LinkHandler.
func NewLinkHandler(svc *service.LinkService, v *validation.Validator, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{
		svc:      svc,
		validate: v,
		logger:   logger.With("component", "link_handler"),
	}
}

// Routes mounts the /url routes on r. live may be nil.
func (h *LinkHandler) Routes(r chi.Router, limits Limits, live *LiveHandler) {
	r.Route("/url", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/shorten", h.Shorten)
		r.With(orPassthrough(limits.Bulk)).Post("/bulk", h.Bulk)
		r.Get("/{shortCode}", h.Redirect)
		r.Put("/{shortCode}", h.Update)
		r.Delete("/{shortCode}", h.Delete)
		r.Get("/{shortCode}/stats", h.Stats)
		r.Get("/{shortCode}/analytics", h.Analytics)
		if live != nil {
			r.Get("/{shortCode}/live", live.Serve)
		}
	})
}

// Shorten handles POST /url/shorten.
func (h *LinkHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req dto.ShortenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	link, err := h.svc.Shorten(r.Context(), req.ToInput())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToLinkResponse(link, h.svc.ShortURL(link)))
}

// Stats handles GET /url/{shortCode}/stats.
func (h *LinkHandler) Stats(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetStats(r.Context(), chi.URLParam(r, "shortCode"), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse(h.svc, report))
}

// Analytics handles GET /url/{shortCode}/analytics.
func (h *LinkHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := dto.StatsRequest{
		ShortCode:   chi.URLParam(r, "shortCode"),
		UserID:      userID(r),
		StartDate:   q.Get("startDate"),
		EndDate:     q.Get("endDate"),
		Granularity: q.Get("granularity"),
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := req.ToInput()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	report, err := h.svc.GetAnalytics(r.Context(), req.ShortCode, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse(h.svc, report))
}

func statsResponse(svc *service.LinkService, report *service.LinkReport) dto.StatsResponse {
	return dto.StatsResponse{
		Link:  dto.ToLinkResponse(report.Link, svc.ShortURL(report.Link)),
		Stats: report.Stats,
	}
}

// Bulk handles POST /url/bulk. Per-item failures are reported in the body;
// only a malformed batch fails the request.
func (h *LinkHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req dto.BulkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.svc.BulkShorten(r.Context(), req.ToInput())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// List handles GET /url.
func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	size, err := queryInt(r, "size")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	req := dto.ListRequest{
		Page:      page,
		Size:      size,
		UserID:    userID(r),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		Status:    q.Get("status"),
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	query, err := req.ToQuery()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.svc.List(r.Context(), query)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToListResponse(result, h.svc.ShortURL))
}

// Update handles PUT /url/{shortCode}.
func (h *LinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	params, err := req.ToParams()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	owner := req.UserID
	if owner == "" {
		owner = userID(r)
	}

	link, err := h.svc.Update(r.Context(), chi.URLParam(r, "shortCode"), owner, params)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToLinkResponse(link, h.svc.ShortURL(link)))
}

// Delete handles DELETE /url/{shortCode}.
func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	link, err := h.svc.Delete(r.Context(), chi.URLParam(r, "shortCode"), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DeleteResponse{Deleted: true, ShortCode: link.ShortCode})
}

// invalidCode rejects codes that can never exist before touching the store.
func invalidCode(code string) error {
	if code == "" || len(code) > 64 {
		return model.ErrLinkNotFound
	}
	return nil
}
