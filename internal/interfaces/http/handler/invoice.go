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

// InvoiceHandler handles invoice API endpoints
type InvoiceHandler struct {
	BaseHandler
	invoiceService *appaccounting.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *appaccounting.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// IssueInvoiceRequest represents a request to issue an invoice
type IssueInvoiceRequest struct {
	PropertyID  string `json:"property_id" binding:"required,uuid"`
	Type        string `json:"type" binding:"required"`
	AmountUnits int64  `json:"amount_units" binding:"required,gt=0"`
	DueDate     string `json:"due_date" binding:"required"`
	Description string `json:"description"`
}

// CancelInvoiceRequest represents a request to cancel an invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID              string     `json:"id"`
	VillageID       string     `json:"village_id"`
	PropertyID      string     `json:"property_id"`
	ReferenceNumber string     `json:"reference_number"`
	Type            string     `json:"type"`
	Description     string     `json:"description,omitempty"`
	AmountUnits     int64      `json:"amount_units"`
	AllocatedUnits  int64      `json:"allocated_units"`
	OutstandingUnit int64      `json:"outstanding_units"`
	AmountBaht      string     `json:"amount_baht"`
	Status          string     `json:"status"`
	DueDate         time.Time  `json:"due_date"`
	IssuedAt        *time.Time `json:"issued_at,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CanceledAt      *time.Time `json:"canceled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toInvoiceResponse(inv *accounting.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:              inv.ID.String(),
		VillageID:       inv.VillageID.String(),
		PropertyID:      inv.PropertyID.String(),
		ReferenceNumber: inv.ReferenceNumber,
		Type:            string(inv.Type),
		Description:     inv.Description,
		AmountUnits:     inv.Amount.Units(),
		AllocatedUnits:  inv.AllocatedAmount.Units(),
		OutstandingUnit: inv.OutstandingAmount().Units(),
		AmountBaht:      inv.Amount.BahtString(),
		Status:          string(inv.Status),
		DueDate:         inv.DueDate,
		IssuedAt:        inv.IssuedAt,
		PaidAt:          inv.PaidAt,
		CanceledAt:      inv.CanceledAt,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
}

// IssueInvoice creates and issues an invoice for a property
func (h *InvoiceHandler) IssueInvoice(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	var req IssueInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	propertyID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		h.BadRequest(c, "Invalid property ID")
		return
	}

	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		h.BadRequest(c, "Invalid due_date format. Expected YYYY-MM-DD")
		return
	}

	invoice, err := h.invoiceService.IssueInvoice(c.Request.Context(), appaccounting.IssueInvoiceRequest{
		VillageID:   villageID,
		PropertyID:  propertyID,
		Type:        accounting.InvoiceType(req.Type),
		AmountUnits: req.AmountUnits,
		DueDate:     dueDate,
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, toInvoiceResponse(invoice))
}

// CancelInvoice cancels an invoice that has no allocations yet
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	var req CancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Cancellation reason is required")
		return
	}

	invoice, err := h.invoiceService.CancelInvoice(c.Request.Context(), villageID, invoiceID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInvoiceResponse(invoice))
}

// GetInvoice returns a single invoice by ID
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), villageID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toInvoiceResponse(invoice))
}

// ListInvoices returns a paginated invoice list, optionally filtered
// by property and status
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
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

	var status *accounting.InvoiceStatus
	if raw := c.Query("status"); raw != "" {
		s := accounting.InvoiceStatus(raw)
		status = &s
	}

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	}

	page, err := h.invoiceService.ListInvoices(c.Request.Context(), villageID, propertyID, status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]InvoiceResponse, len(page.Items))
	for i := range page.Items {
		items[i] = toInvoiceResponse(&page.Items[i])
	}

	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}
