package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appaccounting "github.com/smartvillage/backend/internal/application/accounting"
	"github.com/smartvillage/backend/internal/domain/accounting"
)

// PaymentHandler handles payment recording and allocation endpoints
type PaymentHandler struct {
	BaseHandler
	allocationService *appaccounting.AllocationService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(allocationService *appaccounting.AllocationService) *PaymentHandler {
	return &PaymentHandler{allocationService: allocationService}
}

// RecordPaymentRequest represents a request to record a payment
type RecordPaymentRequest struct {
	PropertyID        string `json:"property_id" binding:"required,uuid"`
	AmountUnits       int64  `json:"amount_units" binding:"required,gt=0"`
	Method            string `json:"method" binding:"required"`
	ReceivedAt        string `json:"received_at"`
	ExternalReference string `json:"external_reference"`
	Note              string `json:"note"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                string     `json:"id"`
	VillageID         string     `json:"village_id"`
	PropertyID        string     `json:"property_id"`
	AmountUnits       int64      `json:"amount_units"`
	AmountBaht        string     `json:"amount_baht"`
	Method            string     `json:"method"`
	ExternalReference string     `json:"external_reference,omitempty"`
	Note              string     `json:"note,omitempty"`
	Status            string     `json:"status"`
	ReceivedAt        time.Time  `json:"received_at"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	AllocatedAt       *time.Time `json:"allocated_at,omitempty"`
	MatchedLineID     *string    `json:"matched_line_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AllocationResponse represents the outcome of an allocation batch
type AllocationResponse struct {
	PaymentID        string   `json:"payment_id"`
	AllocatedUnits   int64    `json:"allocated_units"`
	CreditedUnits    int64    `json:"credited_units"`
	CreditUsedUnits  int64    `json:"credit_used_units"`
	SettledInvoices  []string `json:"settled_invoices"`
	PartialInvoices  []string `json:"partial_invoices"`
	ReceiptID        *string  `json:"receipt_id,omitempty"`
	ReceiptNumber    string   `json:"receipt_number,omitempty"`
	AlreadyAllocated bool     `json:"already_allocated"`
}

func toPaymentResponse(p *accounting.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:                p.ID.String(),
		VillageID:         p.VillageID.String(),
		PropertyID:        p.PropertyID.String(),
		AmountUnits:       p.Amount.Units(),
		AmountBaht:        p.Amount.BahtString(),
		Method:            string(p.Method),
		ExternalReference: p.ExternalReference,
		Note:              p.Note,
		Status:            string(p.Status),
		ReceivedAt:        p.ReceivedAt,
		ConfirmedAt:       p.ConfirmedAt,
		AllocatedAt:       p.AllocatedAt,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
	if p.MatchedLineID != nil {
		id := p.MatchedLineID.String()
		resp.MatchedLineID = &id
	}
	return resp
}

func toAllocationResponse(r *appaccounting.AllocationResult) AllocationResponse {
	resp := AllocationResponse{
		PaymentID:        r.PaymentID.String(),
		AllocatedUnits:   r.AllocatedUnits,
		CreditedUnits:    r.CreditedUnits,
		CreditUsedUnits:  r.CreditUsedUnits,
		SettledInvoices:  make([]string, len(r.SettledInvoices)),
		PartialInvoices:  make([]string, len(r.PartialInvoices)),
		ReceiptNumber:    r.ReceiptNumber,
		AlreadyAllocated: r.AlreadyAllocated,
	}
	for i, id := range r.SettledInvoices {
		resp.SettledInvoices[i] = id.String()
	}
	for i, id := range r.PartialInvoices {
		resp.PartialInvoices[i] = id.String()
	}
	if r.ReceiptID != nil {
		id := r.ReceiptID.String()
		resp.ReceiptID = &id
	}
	return resp
}

// RecordPayment stores a pending payment awaiting confirmation
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		h.BadRequest(c, "Invalid property ID")
		return
	}

	var receivedAt time.Time
	if req.ReceivedAt != "" {
		receivedAt, err = time.Parse(time.RFC3339, req.ReceivedAt)
		if err != nil {
			h.BadRequest(c, "Invalid received_at format. Expected RFC3339")
			return
		}
	}

	payment, err := h.allocationService.RecordPayment(c.Request.Context(), appaccounting.RecordPaymentRequest{
		VillageID:         villageID,
		PropertyID:        propertyID,
		AmountUnits:       req.AmountUnits,
		Method:            accounting.PaymentMethod(req.Method),
		ReceivedAt:        receivedAt,
		ExternalReference: req.ExternalReference,
		Note:              req.Note,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toPaymentResponse(payment))
}

// ConfirmPayment confirms a pending payment and runs the allocation
// batch against the property's open invoices
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	result, err := h.allocationService.ConfirmAndAllocate(c.Request.Context(), villageID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toAllocationResponse(result))
}

// GetPayment returns a single payment by ID
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	payment, err := h.allocationService.GetPayment(c.Request.Context(), villageID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toPaymentResponse(payment))
}
