package dashboard

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
)

func writeJSON(ctx context.Context, logger observability.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error(ctx, "error encoding JSON response", observability.Error(err))
	}
}

type errorResponse struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(ctx context.Context, logger observability.Logger, w http.ResponseWriter, status int, message string) {
	writeJSON(ctx, logger, w, status, errorResponse{Message: message})
}
