package sandbox

import (
	"encoding/json"
	"net/http"

	"nocs-settlement/internal/middleware"
	"nocs-settlement/internal/models"
	"nocs-settlement/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SettlementHandler answers /settle and /report with the envelope checks a
// NOCS endpoint applies before any settlement processing.
type SettlementHandler struct {
	logger *zap.Logger
}

func NewSettlementHandler(logger *zap.Logger) *SettlementHandler {
	return &SettlementHandler{logger: logger}
}

// HandleSettle handles POST /nocs/v2/settle
func (h *SettlementHandler) HandleSettle(c *gin.Context) {
	req, ok := h.parse(c, models.ActionSettle)
	if !ok {
		return
	}

	msg, err := models.DecodeSettleMessage(req.Message)
	if err != nil {
		h.respondNACK(c, middleware.ErrorTypeContext, middleware.NACKCodeBadRequest,
			errors.WrapDomainError(err, errors.CodeInvalidPayload, "invalid message", err.Error()))
		return
	}

	if msg.Settlement.Type == "" {
		h.respondNACK(c, middleware.ErrorTypeDomain, middleware.NACKCodeMissingSettlementType,
			errors.NewDomainError(errors.CodeInvalidPayload, "settlement type is required", "message.settlement.type missing"))
		return
	}
	if !models.IsValidSettlementType(msg.Settlement.Type) {
		h.respondNACK(c, middleware.ErrorTypeDomain, middleware.NACKCodeBadRequest,
			errors.NewDomainError(errors.CodeInvalidPayload, "invalid settlement type", msg.Settlement.Type))
		return
	}

	h.logger.Info("settle accepted",
		zap.String("transaction_id", req.Context.TransactionID),
		zap.String("message_id", req.Context.MessageID),
		zap.String("bap_id", req.Context.BapID),
		zap.String("settlement_type", msg.Settlement.Type),
		zap.Int("orders", len(msg.Settlement.Orders)),
	)
	c.JSON(http.StatusOK, models.NewACK())
}

// HandleReport handles POST /nocs/v2/report
func (h *SettlementHandler) HandleReport(c *gin.Context) {
	req, ok := h.parse(c, models.ActionReport)
	if !ok {
		return
	}

	msg, err := models.DecodeReportMessage(req.Message)
	if err == nil {
		err = msg.Validate()
	}
	if err != nil {
		h.respondNACK(c, middleware.ErrorTypeContext, middleware.NACKCodeBadRequest,
			errors.WrapDomainError(err, errors.CodeInvalidPayload, "invalid message", err.Error()))
		return
	}

	h.logger.Info("report accepted",
		zap.String("transaction_id", req.Context.TransactionID),
		zap.String("ref_transaction_id", msg.RefTransactionID),
		zap.String("ref_message_id", msg.RefMessageID),
	)
	c.JSON(http.StatusOK, models.NewACK())
}

// parse decodes the raw body and checks the context against action.
func (h *SettlementHandler) parse(c *gin.Context, action string) (*models.InboundRequest, bool) {
	body, err := middleware.ReadRawBody(c)
	if err != nil {
		h.respondNACK(c, middleware.ErrorTypeContext, middleware.NACKCodeBadRequest, err)
		return nil, false
	}

	var req models.InboundRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.respondNACK(c, middleware.ErrorTypeContext, middleware.NACKCodeBadRequest,
			errors.WrapDomainError(err, errors.CodeInvalidPayload, "invalid request", "malformed JSON"))
		return nil, false
	}

	if err := req.Context.Validate(); err != nil {
		h.respondNACK(c, middleware.ErrorTypeContext, middleware.NACKCodeBadRequest,
			errors.WrapDomainError(err, errors.CodeInvalidPayload, "invalid context", err.Error()))
		return nil, false
	}

	if req.Context.Action != action {
		h.respondNACK(c, middleware.ErrorTypeContext, middleware.NACKCodeBadRequest,
			errors.NewDomainError(errors.CodeInvalidPayload, "action mismatch", "context.action "+req.Context.Action+" on "+action))
		return nil, false
	}

	if params := middleware.GetSignatureFromContext(c); params != nil && params.KeyID.SubscriberID != req.Context.BapID {
		h.logger.Debug("signing subscriber differs from bap_id",
			zap.String("subscriber_id", params.KeyID.SubscriberID),
			zap.String("bap_id", req.Context.BapID),
		)
	}

	return &req, true
}

func (h *SettlementHandler) respondNACK(c *gin.Context, errType, code string, err error) {
	middleware.RespondNACK(c, h.logger, errType, code, err)
}
