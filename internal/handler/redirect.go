package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/model"
)

// PublicRoutes mounts the root-level redirect route.
func (h *LinkHandler) PublicRoutes(r chi.Router) {
	r.Get("/{shortCode}", h.Redirect)
}

// Redirect resolves a short code, records the click and answers with a 301.
// With redirect=false the resolved link is returned as JSON instead; the
// click is still counted.
func (h *LinkHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")
	if err := invalidCode(shortCode); err != nil {
		writeError(w, h.logger, err)
		return
	}

	start := time.Now()
	link, err := h.svc.Resolve(r.Context(), shortCode, clientInfo(r))
	duration := time.Since(start)
	if err != nil {
		h.logger.Info("redirect_failed",
			"short_code", shortCode,
			"reason", model.KindOf(err).String(),
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		w.Header().Set("Cache-Control", "private, max-age=0")
		writeError(w, h.logger, err)
		return
	}

	h.logger.Info("redirect_success",
		"short_code", shortCode,
		"click_count", link.ClickCount,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	w.Header().Set("Cache-Control", "private, max-age=0")
	if !queryBool(r, "redirect", true) {
		writeJSON(w, http.StatusOK, dto.ToResolveResponse(link))
		return
	}
	http.Redirect(w, r, link.OriginalURL, http.StatusMovedPermanently)
}
