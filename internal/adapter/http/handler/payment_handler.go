package handler

import (
	"math"
	"strconv"
	"time"

	"intent-payment-gateway/internal/adapter/http/dto"
	"intent-payment-gateway/internal/adapter/http/middleware"
	"intent-payment-gateway/internal/core/domain"
	"intent-payment-gateway/internal/core/ports"
	"intent-payment-gateway/pkg/apperror"
	"intent-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles payment lifecycle endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Prepare handles POST /v1/payments/prepare.
// Returns 201 for a newly created payment, 200 when the natural key matched
// an existing one.
func (h *PaymentHandler) Prepare(c *gin.Context) {
	merchantID, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrUnauthenticated())
		return
	}

	var req dto.PrepareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.paymentSvc.Prepare(c.Request.Context(), ports.PrepareRequest{
		MerchantID:     merchantID.(uuid.UUID),
		IdempotencyKey: c.GetHeader(middleware.HeaderIdempotencyKey),
		Payer:          domain.Party{Address: req.Payer.Address, ChainID: req.Payer.ChainID},
		Recipient:      domain.Party{Address: req.Recipient.Address, ChainID: req.Recipient.ChainID},
		AssetID:        req.AssetID,
		Amount:         req.Amount,
		Memo:           req.Memo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	body := dto.PrepareResponse{
		Payment: toPaymentResponse(result.Payment),
		Quote:   toQuoteResponse(result.Quote),
	}
	if result.Replayed {
		response.OK(c, body)
		return
	}
	response.Created(c, body)
}

// Submit handles POST /v1/payments/submit.
func (h *PaymentHandler) Submit(c *gin.Context) {
	merchantID, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrUnauthenticated())
		return
	}

	var req dto.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		response.Error(c, apperror.Validation("payment_id must be a UUID"))
		return
	}

	submitReq := ports.SubmitRequest{
		MerchantID: merchantID.(uuid.UUID),
		PaymentID:  paymentID,
	}
	if req.SignedPayload != "" {
		submitReq.SignedPayload = []byte(req.SignedPayload)
	}

	payment, err := h.paymentSvc.Submit(c.Request.Context(), submitReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPaymentResponse(payment))
}

// Get handles GET /v1/payments/:id.
func (h *PaymentHandler) Get(c *gin.Context) {
	merchantID, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrUnauthenticated())
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrPaymentNotFound())
		return
	}

	payment, err := h.paymentSvc.Get(c.Request.Context(), merchantID.(uuid.UUID), paymentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPaymentResponse(payment))
}

// List handles GET /v1/payments.
func (h *PaymentHandler) List(c *gin.Context) {
	merchantID, ok := c.Get(middleware.CtxMerchantID)
	if !ok {
		response.Error(c, apperror.ErrUnauthenticated())
		return
	}

	params := ports.PaymentListParams{MerchantID: merchantID.(uuid.UUID)}
	params.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	params.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	if raw := c.Query("status"); raw != "" {
		status := domain.PaymentStatus(raw)
		switch status {
		case domain.PaymentStatusPending, domain.PaymentStatusSuccess,
			domain.PaymentStatusFailed, domain.PaymentStatusExpired:
			params.Status = &status
		default:
			response.Error(c, apperror.Validation("status must be one of PENDING, SUCCESS, FAILED, EXPIRED"))
			return
		}
	}

	payments, total, err := h.paymentSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, toPaymentResponse(&payments[i]))
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	response.OK(c, dto.PaymentListResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	})
}

// toPaymentResponse converts domain.Payment to its DTO.
func toPaymentResponse(p *domain.Payment) dto.PaymentResponse {
	resp := dto.PaymentResponse{
		ID:          p.ID.String(),
		Status:      string(p.Status),
		Payer:       dto.PartyResponse{Address: p.Payer.Address, ChainID: p.Payer.ChainID},
		Recipient:   dto.PartyResponse{Address: p.Recipient.Address, ChainID: p.Recipient.ChainID},
		AssetID:     p.AssetID,
		Amount:      p.Amount,
		Memo:        p.Memo,
		QuoteID:     p.QuoteID,
		ProviderRef: p.ProviderRef,
		Settlements: make([]dto.SettlementResponse, 0, len(p.Settlements)),
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.Format(time.RFC3339),
	}
	for _, s := range p.Settlements {
		resp.Settlements = append(resp.Settlements, dto.SettlementResponse{ChainID: s.ChainID, TxHash: s.TxHash})
	}
	return resp
}

// toQuoteResponse converts domain.FeeQuote to its DTO. Nil in, nil out.
func toQuoteResponse(q *domain.FeeQuote) *dto.QuoteResponse {
	if q == nil {
		return nil
	}
	resp := &dto.QuoteResponse{
		QuoteID:   q.QuoteID,
		FeeAsset:  q.FeeAsset,
		FeeAmount: q.FeeAmount,
		ExpiresAt: q.ExpiresAt.Format(time.RFC3339),
	}
	for _, b := range q.Breakdown {
		resp.Breakdown = append(resp.Breakdown, dto.FeeComponentResponse{Label: b.Label, Amount: b.Amount})
	}
	return resp
}
