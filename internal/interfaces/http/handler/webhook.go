package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/crm/backend/internal/application/ingestion"
	"github.com/crm/backend/internal/infrastructure/logger"
	"github.com/crm/backend/internal/interfaces/http/dto"
	"github.com/crm/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenParam is the query parameter carrying the integration token
const TokenParam = "token"

// Ingester processes one inbound webhook call
type Ingester interface {
	Ingest(ctx context.Context, req ingestion.Request) *ingestion.Response
}

// WebhookHandler receives inbound integration webhooks
type WebhookHandler struct {
	BaseHandler
	ingester Ingester
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ingester Ingester) *WebhookHandler {
	return &WebhookHandler{ingester: ingester}
}

// Receive accepts a JSON, form or text payload and creates or updates the
// lead. Calls on the /test path, or with ?test=1, are audited but write nothing.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.AbortTooLarge(c)
			return
		}
		// A truncated body is still audited; it will fail to parse
		logger.L(c.Request.Context()).Warn("Failed to read webhook body", zap.Error(err))
	}

	resp := h.ingester.Ingest(c.Request.Context(), ingestion.Request{
		Token:       c.Query(TokenParam),
		TestMode:    ingestion.IsTestMode(c.Request.URL.Path, c.Request.URL.Query()),
		ContentType: c.GetHeader("Content-Type"),
		Body:        body,
		RequestID:   getRequestID(c),
		RemoteIP:    c.ClientIP(),
	})

	c.JSON(statusFor(resp), resp)
}

// statusFor maps the ingestion outcome to an HTTP status
func statusFor(resp *ingestion.Response) int {
	if resp == nil {
		return http.StatusInternalServerError
	}
	if resp.Code == "" {
		return http.StatusOK
	}
	return dto.GetHTTPStatus(resp.Code)
}
