package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "signal-recorder/internal/errors"
	"signal-recorder/internal/logging"
	"signal-recorder/internal/models"
	"signal-recorder/internal/store"
)

// Response is the JSON envelope for every API reply.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

const homePage = `<!DOCTYPE html>
<html>
<head>
<title>Webhook Receiver</title>
<style>
body { font-family: Arial, sans-serif; background-color: #f0f8ff; color: #333; text-align: center; padding-top: 80px; }
h1 { color: #2c3e50; }
p { color: #555; font-size: 18px; }
a { color: #2c7be5; }
</style>
</head>
<body>
<h1>Webhook Receiver is Running</h1>
<p>Waiting for TradingView webhook at <strong>/webhook</strong> endpoint...</p>
<p><a href="/signals">View signals</a> &middot; <a href="/download">Download CSV</a></p>
</body>
</html>
`

func (s *Server) handleHome(c echo.Context) error {
	return c.HTML(http.StatusOK, homePage)
}

// handleWebhook ingests one alert. Every failure is reported as 500 with the
// error kind so the sender sees a single failure per request.
func (s *Server) handleWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	var payload models.WebhookPayload
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(&payload); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
			return s.errorResponse(c, s.bodyTooLarge(err))
		}
		return s.errorResponse(c, apperrors.NewParseError("webhook", "request body is not valid JSON", err))
	}

	record, err := s.ingestor.Ingest(ctx, payload)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, Response{
		Status:  "success",
		Message: "Signal received",
		Data:    record,
	})
}

func (s *Server) handleList(c echo.Context) error {
	records, err := s.store.ReadAll(c.Request().Context())
	if err != nil {
		return s.errorResponse(c, err)
	}
	n := len(records)
	return c.JSON(http.StatusOK, Response{
		Status: "success",
		Count:  &n,
		Data:   records,
	})
}

func (s *Server) handleDownload(c echo.Context) error {
	records, err := s.store.ReadAll(c.Request().Context())
	if err != nil {
		return s.errorResponse(c, err)
	}

	var buf bytes.Buffer
	if err := store.EncodeCSV(&buf, records); err != nil {
		return s.errorResponse(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="signals.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":   "ok",
		"timezone": s.zone,
	})
}

func (s *Server) errorResponse(c echo.Context, err error) error {
	logger := logging.FromContext(c.Request().Context())
	logger.Error().Err(err).Str("kind", string(apperrors.KindOf(err))).Msg("Request failed")

	return c.JSON(http.StatusInternalServerError, Response{
		Status:  "error",
		Kind:    string(apperrors.KindOf(err)),
		Message: apperrors.MessageOf(err),
	})
}
