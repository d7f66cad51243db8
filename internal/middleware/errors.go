package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/linkgate/linkgate/internal/handler/dto"
)

// writeError writes the standard error envelope for err.
func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.NewErrorResponse(err, time.Now()))
}
