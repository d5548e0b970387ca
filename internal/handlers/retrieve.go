package handlers

import (
	"errors"
	"net/http"

	"github.com/emberlink/ember/internal/secrets"
	echo "github.com/labstack/echo/v4"
)

type textResponse struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Type       string `json:"type"`
}

// RetrieveSecret handles GET /api/secrets/:id. Retrieval burns the secret:
// the metadata record is gone before any content is written, so a second
// request for the same id sees 404 no matter what happens to this one.
func (h *Handler) RetrieveSecret(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return errorResponse(c, http.StatusBadRequest, "missing id")
	}

	retrieved, err := h.svc.Retrieve(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, secrets.ErrNotFound):
			return errorResponse(c, http.StatusNotFound, "secret not found or already burned")
		case errors.Is(err, secrets.ErrBlobMissing):
			c.Logger().Error(err)
			return errorResponse(c, http.StatusInternalServerError, "stored file is missing")
		default:
			c.Logger().Error(err)
			return errorResponse(c, http.StatusInternalServerError, "error retrieving secret")
		}
	}

	record := retrieved.Record
	if record.Type != secrets.TypeFile {
		return c.JSON(http.StatusOK, textResponse{
			Ciphertext: record.Ciphertext,
			IV:         record.IV,
			Type:       record.Type,
		})
	}

	defer retrieved.Blob.Close()
	// best-effort reclamation once the response is dispatched; the id
	// became unreachable when the metadata record was consumed
	defer h.svc.PurgeBlob(record.BlobRef)

	c.Response().Header().Set(HeaderIV, record.IV)
	c.Response().Header().Set(HeaderFilename, record.Filename)

	return c.Stream(http.StatusOK, echo.MIMEOctetStream, retrieved.Blob)
}
