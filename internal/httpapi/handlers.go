package httpapi

import (
	"errors"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/model"
	"github.com/gyeh/medbill/internal/pipeline"
)

var allowedTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/webp":      true,
	"application/pdf": true,
}

var imageExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".webp": true}

type Handler struct {
	pipeline  *pipeline.Pipeline
	caps      collab.Capabilities
	imagesDir string
	maxUpload int64
	log       zerolog.Logger
}

type HealthResponse struct {
	Status       string              `json:"status"`
	Capabilities collab.Capabilities `json:"capabilities"`
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Capabilities: h.caps})
}

type UploadResponse struct {
	SessionID string           `json:"session_id"`
	BillData  model.BillRecord `json:"bill_data"`
}

func (h *Handler) UploadBill(c echo.Context) error {
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, h.maxUpload+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "File is too large."})
		}
		return badRequest(c, "Upload a bill as the multipart field \"file\".")
	}
	if fh.Size > h.maxUpload {
		return c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "File is too large."})
	}

	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "Could not read the uploaded file.")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return badRequest(c, "Could not read the uploaded file.")
	}
	if len(data) == 0 {
		return badRequest(c, "The uploaded file is empty.")
	}
	if int64(len(data)) > h.maxUpload {
		return c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "File is too large."})
	}

	mimeType := declaredType(fh.Header.Get(echo.HeaderContentType))
	if mimeType == "" {
		mimeType = declaredType(mimetype.Detect(data).String())
	}
	if !allowedTypes[mimeType] {
		return badRequest(c, "Unsupported file type "+mimeType+". Upload a PNG, JPEG, WebP or PDF.")
	}

	sess, err := h.pipeline.Upload(c.Request().Context(), data, mimeType)
	if err != nil {
		h.log.Warn().Err(err).Str("mime", mimeType).Msg("upload failed")
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, UploadResponse{SessionID: sess.ID, BillData: sess.Bill})
}

// declaredType strips parameters and ignores the generic binary type so
// the caller falls back to sniffing.
func declaredType(v string) string {
	t, _, _ := strings.Cut(v, ";")
	t = strings.ToLower(strings.TrimSpace(t))
	if t == "application/octet-stream" {
		return ""
	}
	return t
}

type ConfirmRequest struct {
	SessionID string            `json:"session_id" validate:"required"`
	BillData  *model.BillRecord `json:"bill_data" validate:"required"`
}

type ConfirmResponse struct {
	Discrepancies []model.Discrepancy `json:"discrepancies"`
	TotalSavings  decimal.Decimal     `json:"total_savings"`
}

func (h *Handler) ConfirmBill(c echo.Context) error {
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorBody{Error: "Invalid bill: " + err.Error()})
	}

	sess, err := h.pipeline.Confirm(c.Request().Context(), req.SessionID, *req.BillData)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ConfirmResponse{
		Discrepancies: sess.Discrepancies,
		TotalSavings:  model.TotalOvercharge(sess.Discrepancies),
	})
}

type ChatRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Message   string `json:"message"`
}

type SessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

func (h *Handler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "session_id is required.")
	}
	return h.reply(c, req.SessionID, req.Message)
}

func (h *Handler) StartChat(c echo.Context) error {
	var req SessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "session_id is required.")
	}
	return h.reply(c, req.SessionID, "")
}

func (h *Handler) reply(c echo.Context, id, message string) error {
	reply, err := h.pipeline.Chat(c.Request().Context(), id, message)
	if err != nil {
		h.log.Warn().Err(err).Str("session", id).Msg("chat turn failed")
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}

func (h *Handler) Results(c echo.Context) error {
	res, err := h.pipeline.Results(c.Param("session_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) DisputePreview(c echo.Context) error {
	var req SessionRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "session_id is required.")
	}

	pkg, err := h.pipeline.DisputePreview(c.Request().Context(), req.SessionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, pkg)
}

type SendRequest struct {
	SessionID      string `json:"session_id" validate:"required"`
	RecipientEmail string `json:"recipient_email" validate:"required,email"`
	Letter         string `json:"letter" validate:"required"`
}

type SendResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func (h *Handler) DisputeSend(c echo.Context) error {
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, errorBody{Error: "A session, a valid recipient email and a letter are required."})
	}

	receipt, err := h.pipeline.SendDispute(c.Request().Context(), req.SessionID, req.RecipientEmail, req.Letter)
	if err != nil {
		h.log.Warn().Err(err).Str("session", req.SessionID).Msg("dispute send failed")
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, SendResponse{Status: "sent", ID: receipt.ID})
}

// TestImage serves a random sample bill image for demos.
func (h *Handler) TestImage(c echo.Context) error {
	entries, err := os.ReadDir(h.imagesDir)
	if err != nil {
		return c.JSON(http.StatusNotFound, errorBody{Error: "No test images available."})
	}
	var images []string
	for _, e := range entries {
		if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			images = append(images, e.Name())
		}
	}
	if len(images) == 0 {
		return c.JSON(http.StatusNotFound, errorBody{Error: "No test images available."})
	}
	return c.File(filepath.Join(h.imagesDir, images[rand.Intn(len(images))]))
}
