package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linkgate/linkgate/internal/handler/dto"
	"github.com/linkgate/linkgate/internal/model"
	"github.com/linkgate/linkgate/internal/qr"
	"github.com/linkgate/linkgate/internal/validation"
)

// QRHandler handles QR code generation and retrieval.
type QRHandler struct {
	svc      *qr.Service
	validate *validation.Validator
	logger   *slog.Logger
}

// NewQRHandler creates a new QRHandler.
func NewQRHandler(svc *qr.Service, v *validation.Validator, logger *slog.Logger) *QRHandler {
	return &QRHandler{
		svc:      svc,
		validate: v,
		logger:   logger.With("component", "qr_handler"),
	}
}

// Routes mounts the /qr routes on r.
func (h *QRHandler) Routes(r chi.Router, limits Limits) {
	r.Route("/qr", func(r chi.Router) {
		r.With(orPassthrough(limits.QR)).Post("/generate", h.Generate)
		r.Get("/{qrId}", h.Get)
		r.Get("/{qrId}/download", h.Download)
		r.Delete("/{qrId}", h.Delete)
	})
}

// Generate handles POST /qr/generate.
func (h *QRHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req dto.QRRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
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

	code, err := h.svc.Generate(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ToQRResponse(code))
}

// Get handles GET /qr/{qrId}.
func (h *QRHandler) Get(w http.ResponseWriter, r *http.Request) {
	code, err := h.svc.Get(r.Context(), chi.URLParam(r, "qrId"), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToQRResponse(code))
}

// Download handles GET /qr/{qrId}/download and serves the raw image.
func (h *QRHandler) Download(w http.ResponseWriter, r *http.Request) {
	code, err := h.svc.Get(r.Context(), chi.URLParam(r, "qrId"), userID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	ext := "png"
	if code.Format == model.QRFormatText {
		ext = "txt"
	}
	w.Header().Set("Content-Type", code.Format.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(code.Image)))
	w.Header().Set("Content-Disposition", `attachment; filename="qr-`+code.ID+`.`+ext+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(code.Image)
}

// Delete handles DELETE /qr/{qrId}.
func (h *QRHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "qrId")
	if err := h.svc.Delete(r.Context(), id, userID(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DeleteQRResponse{Deleted: true, QRID: id})
}
