package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appaccounting "github.com/smartvillage/backend/internal/application/accounting"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/interfaces/http/dto"
)

// ReceiptHandler handles receipt listing and void-and-reissue
type ReceiptHandler struct {
	BaseHandler
	receiptService *appaccounting.ReceiptService
}

// NewReceiptHandler creates a new ReceiptHandler
func NewReceiptHandler(receiptService *appaccounting.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService}
}

// VoidReissueRequest represents a request to void and reissue a receipt
type VoidReissueRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ReceiptResponse represents a receipt in API responses
type ReceiptResponse struct {
	ID             string     `json:"id"`
	VillageID      string     `json:"village_id"`
	PaymentID      string     `json:"payment_id"`
	SequenceNumber int64      `json:"sequence_number"`
	ReceiptNumber  string     `json:"receipt_number"`
	AmountUnits    int64      `json:"amount_units"`
	AmountBaht     string     `json:"amount_baht"`
	Status         string     `json:"status"`
	IssuedAt       time.Time  `json:"issued_at"`
	VoidedAt       *time.Time `json:"voided_at,omitempty"`
	VoidReason     string     `json:"void_reason,omitempty"`
	ReissuedFrom   *string    `json:"reissued_from,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toReceiptResponse(r *accounting.Receipt) ReceiptResponse {
	resp := ReceiptResponse{
		ID:             r.ID.String(),
		VillageID:      r.VillageID.String(),
		PaymentID:      r.PaymentID.String(),
		SequenceNumber: r.SequenceNumber,
		ReceiptNumber:  r.ReceiptNumber,
		AmountUnits:    r.Amount.Units(),
		AmountBaht:     r.Amount.BahtString(),
		Status:         string(r.Status),
		IssuedAt:       r.IssuedAt,
		VoidedAt:       r.VoidedAt,
		VoidReason:     r.VoidReason,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.ReissuedFrom != nil {
		id := r.ReissuedFrom.String()
		resp.ReissuedFrom = &id
	}
	return resp
}

// VoidAndReissue voids a receipt and issues the replacement under a
// fresh sequence number. The old number stays burned.
func (h *ReceiptHandler) VoidAndReissue(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	receiptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid receipt ID")
		return
	}

	var req VoidReissueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Void reason is required")
		return
	}

	replacement, err := h.receiptService.VoidAndReissue(c.Request.Context(), villageID, receiptID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toReceiptResponse(replacement))
}

// ListReceipts returns a paginated receipt list, optionally filtered
// by property
func (h *ReceiptHandler) ListReceipts(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}

	var propertyID *uuid.UUID
	if raw := c.Query("property_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid property ID")
			return
		}
		propertyID = &id
	}

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	}

	page, err := h.receiptService.ListReceipts(c.Request.Context(), villageID, propertyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]ReceiptResponse, len(page.Items))
	for i := range page.Items {
		items[i] = toReceiptResponse(&page.Items[i])
	}

	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}
