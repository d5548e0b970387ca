package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/emberlink/ember/internal/secrets"
	echo "github.com/labstack/echo/v4"
)

// Handler serves the secret admission and retrieval endpoints.
type Handler struct {
	svc *secrets.Service
}

func NewHandler(svc *secrets.Service) *Handler {
	return &Handler{svc: svc}
}

type createRequest struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Expiry     *int64 `json:"expiry"`
}

// CreateSecret handles POST /api/secrets. A JSON body admits a text secret,
// multipart/form-data admits a file secret; anything else is unsupported.
func (h *Handler) CreateSecret(c echo.Context) error {
	// enforced on the declared size so hostile clients cannot make the
	// server buffer an oversized body before rejection
	if c.Request().ContentLength > MaxPayloadSize {
		return errorResponse(c, http.StatusRequestEntityTooLarge, "payload too large")
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	switch {
	case strings.HasPrefix(contentType, echo.MIMEApplicationJSON):
		return h.createText(c)
	case strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		return h.createFile(c)
	default:
		return errorResponse(c, http.StatusUnsupportedMediaType, "unsupported content type")
	}
}

func (h *Handler) createText(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request")
	}

	id, err := h.svc.StoreText(c.Request().Context(), req.Ciphertext, req.IV, req.Expiry)
	if err != nil {
		if errors.Is(err, secrets.ErrMissingFields) {
			return errorResponse(c, http.StatusBadRequest, "missing ciphertext or iv")
		}
		c.Logger().Error(err)
		return errorResponse(c, http.StatusInternalServerError, "error storing secret")
	}

	return c.JSON(http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) createFile(c echo.Context) error {
	fileHeader, err := c.FormFile("ciphertext")
	if err != nil {
		return errorResponse(c, http.StatusBadRequest, "missing ciphertext or iv")
	}

	iv := c.FormValue("iv")
	if iv == "" {
		return errorResponse(c, http.StatusBadRequest, "missing ciphertext or iv")
	}

	filename := c.FormValue("filename")
	if filename == "" {
		filename = fileHeader.Filename
	}

	var expiry *int64
	if raw := c.FormValue("expiry"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			expiry = &parsed
		}
	}

	body, err := fileHeader.Open()
	if err != nil {
		c.Logger().Error(err)
		return errorResponse(c, http.StatusInternalServerError, "error reading uploaded file")
	}
	defer body.Close()

	id, err := h.svc.StoreFile(c.Request().Context(), body, iv, filename, expiry)
	if err != nil {
		if errors.Is(err, secrets.ErrMissingFields) {
			return errorResponse(c, http.StatusBadRequest, "missing ciphertext or iv")
		}
		c.Logger().Error(err)
		return errorResponse(c, http.StatusInternalServerError, "error storing secret")
	}

	return c.JSON(http.StatusOK, map[string]string{"id": id})
}
