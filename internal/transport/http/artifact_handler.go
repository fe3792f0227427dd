package http

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "nsecli/internal/errors"
)

// ArtifactHandler serves stored export and dashboard artifacts.
type ArtifactHandler struct {
	service      ArtifactService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewArtifactHandler creates a new artifact handler.
func NewArtifactHandler(service ArtifactService, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ArtifactHandler {
	return &ArtifactHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "artifact_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the artifact routes.
func (h *ArtifactHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{artifactID}", h.DownloadArtifact)

	return r
}

// DownloadArtifact handles GET /api/artifacts/{artifactID}. The response
// content type comes from the artifact's declared kind, never from its
// filename.
func (h *ArtifactHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "artifactID")
	if id == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("artifactID", "Artifact id is required"))
		return
	}

	ref, data, err := h.service.Open(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.errorHandler.HandleError(w, r, apierrors.ErrArtifactNotFound)
			return
		}
		h.logger.ErrorContext(r.Context(), "artifact read failed",
			slog.String("artifact_id", id),
			slog.String("error", err.Error()),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	writeDownload(w, ref.Filename, ref.ContentKind, data)
}
