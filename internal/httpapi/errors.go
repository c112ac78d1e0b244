package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/gyeh/medbill/internal/collab"
	"github.com/gyeh/medbill/internal/pipeline"
)

type errorBody struct {
	Error string `json:"error"`
}

var stageMessages = map[string]string{
	pipeline.StageExtract: "Could not read the bill",
	pipeline.StageConfirm: "Could not confirm the bill",
	pipeline.StageChat:    "Could not get a reply from the assistant",
	pipeline.StageDispute: "Could not prepare the dispute letter",
	pipeline.StageSend:    "Could not send the dispute email",
}

// statusFor maps a pipeline error to a status code and a message the
// client can act on.
func statusFor(err error) (int, string) {
	if pipeline.IsNotFound(err) {
		return http.StatusNotFound, "Session not found"
	}

	prefix := "Request failed"
	var se *pipeline.StageError
	if errors.As(err, &se) {
		if m, ok := stageMessages[se.Stage]; ok {
			prefix = m
		}
	}

	var ve validator.ValidationErrors
	if errors.Is(err, pipeline.ErrInvalidBill) || errors.As(err, &ve) {
		return http.StatusUnprocessableEntity, prefix + ": " + err.Error()
	}

	switch collab.KindOf(err) {
	case collab.KindUnavailable, collab.KindAuth:
		return http.StatusServiceUnavailable, prefix + ": the service is not available right now. Check the server configuration or try again later."
	case collab.KindRateLimited:
		return http.StatusTooManyRequests, prefix + ": the service is busy. Please wait a moment and try again."
	case collab.KindTimeout:
		return http.StatusGatewayTimeout, prefix + ": the request timed out. Please try again."
	case collab.KindCanceled:
		return http.StatusRequestTimeout, prefix + ": the request was canceled."
	case collab.KindRejected:
		if se != nil && se.Stage == pipeline.StageExtract {
			return http.StatusUnprocessableEntity, prefix + ". Try a clearer image or a PDF of the bill."
		}
		return http.StatusUnprocessableEntity, prefix + ": the request was rejected. Check the input and try again."
	default:
		return http.StatusBadGateway, prefix + ". Please try again."
	}
}

func respondError(c echo.Context, err error) error {
	status, msg := statusFor(err)
	return c.JSON(status, errorBody{Error: msg})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Error: message})
}

// errorHandler renders echo's own errors (unknown routes, recovered panics,
// bind failures) in the same shape as handler errors.
func errorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		msg := "Internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if s, ok := he.Message.(string); ok && status < http.StatusInternalServerError {
				msg = s
			} else if status < http.StatusInternalServerError {
				msg = http.StatusText(status)
			}
		}
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("unhandled error")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, errorBody{Error: msg})
		}
		if writeErr != nil {
			log.Error().Err(writeErr).Msg("write error response")
		}
	}
}
