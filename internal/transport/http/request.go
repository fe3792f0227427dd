package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "nsecli/internal/errors"
	"nsecli/internal/pipeline"
	"nsecli/pkg/contracts/domain"
)

// dateLayout is the wire format for dates in request bodies and query
// parameters.
const dateLayout = "2006-01-02"

var validate = validator.New()

// decodeAndValidate decodes a JSON request body into v and runs struct
// validation. Both failure modes come back as renderable API errors.
func decodeAndValidate(r *http.Request, v interface{}) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return apierrors.InvalidRequestWithError(err)
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return apierrors.ErrValidation(first.Field(),
				fmt.Sprintf("failed %q validation", first.Tag()))
		}
		return apierrors.InvalidRequestWithError(err)
	}
	return nil
}

// parseDate parses a wire-format date, rejecting anything else.
func parseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, apierrors.ErrValidation(field, "date is required")
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, apierrors.ErrValidation(field,
			fmt.Sprintf("invalid date %q, expected %s", value, dateLayout))
	}
	return t, nil
}

// parseKinds converts wire kind names to domain kinds. An empty slice is
// legal and means every kind.
func parseKinds(values []string) ([]domain.DataKind, error) {
	kinds := make([]domain.DataKind, 0, len(values))
	for _, v := range values {
		kind := domain.DataKind(v)
		if !kind.Valid() {
			return nil, apierrors.ErrValidation("kinds",
				fmt.Sprintf("unknown data kind %q", v))
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// mapPipelineError converts pipeline sentinel errors into API errors so the
// transport layer speaks consistent status codes. Unknown errors pass
// through and render as an opaque 500.
func mapPipelineError(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRange):
		return apierrors.New(http.StatusBadRequest, "INVALID_RANGE", err.Error())
	case errors.Is(err, pipeline.ErrSessionNotFound):
		return apierrors.ErrSessionNotFound
	case errors.Is(err, pipeline.ErrFileNotFound):
		return apierrors.ErrFileNotFound
	case errors.Is(err, pipeline.ErrNoDataAvailable):
		return apierrors.New(http.StatusUnprocessableEntity, "NO_DATA_AVAILABLE", err.Error())
	default:
		return err
	}
}

// artifactContentType maps an artifact's declared content kind to a MIME
// type. The kind is authoritative; filenames are never sniffed.
func artifactContentType(contentKind string) string {
	switch contentKind {
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "zip":
		return "application/zip"
	case "csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// writeDownload sends raw bytes as a file attachment.
func writeDownload(w http.ResponseWriter, filename, contentKind string, data []byte) {
	w.Header().Set("Content-Type", artifactContentType(contentKind))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
