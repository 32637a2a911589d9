package webhook

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"stackspad/internal/decode"
	"stackspad/internal/observability"
	"stackspad/internal/reconcile"
)

// SecretHeader carries the shared secret on every Chainhook delivery.
const SecretHeader = "x-chainhook-secret"

// Handler serves Chainhook deliveries.
type Handler struct {
	secret     string
	reconciler *reconcile.Reconciler
	logger     *log.Logger
}

// HandlerOptions contains configuration for creating a Handler.
type HandlerOptions struct {
	Secret     string // empty disables authentication
	Reconciler *reconcile.Reconciler
	Logger     *log.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		secret:     opts.Secret,
		reconciler: opts.Reconciler,
		logger:     logger,
	}
}

// Handle processes one delivery. Authentication is checked before the
// body is touched. A 500 tells Chainhook to redeliver, which is safe
// because reconciliation is idempotent; 200 acknowledges even when the
// delivery contained nothing for us.
func (h *Handler) Handle(c *gin.Context) {
	if !h.authorized(c) {
		observability.RecordWebhookDelivery("unauthorized")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var payload Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		observability.RecordWebhookDelivery("malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	ctx := c.Request.Context()
	var failed bool
	for _, tx := range payload.Transactions() {
		if !tx.Succeeded() {
			continue
		}
		ev, ok := decode.Decode(&tx)
		if !ok {
			continue
		}
		observability.RecordEventDecoded(string(ev.Type))

		if _, err := h.reconciler.Apply(ctx, ev); err != nil {
			h.logger.Printf("webhook apply %s (%s): %v", ev.TxID, ev.Type, err)
			failed = true
		}
	}

	if failed {
		observability.RecordWebhookDelivery("failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}
	observability.RecordWebhookDelivery("processed")
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

func (h *Handler) authorized(c *gin.Context) bool {
	if h.secret == "" {
		return true
	}
	provided := c.GetHeader(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) == 1
}
