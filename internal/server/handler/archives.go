package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// ArchivePrefix is where archived arbitrage history lives in the bucket.
const ArchivePrefix = "archive/arb_history/"

// ArchiveHandler lists archived history objects.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{blobs: blobs, logger: logHandler(logger, "archives")}
}

// List returns archive objects, optionally narrowed to one month.
// GET /api/archives?month=2024-01
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := ArchivePrefix
	if month := strings.TrimSpace(r.URL.Query().Get("month")); month != "" {
		if len(month) != 7 || month[4] != '-' {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		prefix += month + "/"
	}

	objs, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list archives failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}
	if objs == nil {
		objs = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": objs})
}
