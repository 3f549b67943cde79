package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appaccounting "github.com/smartvillage/backend/internal/application/accounting"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/interfaces/http/dto"
)

// ReconciliationHandler handles bank statement import and matching
// endpoints
type ReconciliationHandler struct {
	BaseHandler
	reconciliationService *appaccounting.ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(reconciliationService *appaccounting.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationService: reconciliationService}
}

// ImportLineRequest represents one statement row in an import batch
type ImportLineRequest struct {
	RawReference string  `json:"raw_reference"`
	Description  string  `json:"description"`
	AmountBaht   string  `json:"amount_baht" binding:"required"`
	ValueDate    string  `json:"value_date" binding:"required"`
	PropertyHint *string `json:"property_hint,omitempty"`
}

// ImportStatementRequest represents a statement import batch
type ImportStatementRequest struct {
	BatchKey string              `json:"batch_key"`
	Lines    []ImportLineRequest `json:"lines" binding:"required,min=1"`
}

// ManualMatchRequest represents a manual match of a line to a payment
type ManualMatchRequest struct {
	PaymentID string `json:"payment_id" binding:"required,uuid"`
}

// StatementLineResponse represents a statement line in API responses
type StatementLineResponse struct {
	ID              string                `json:"id"`
	VillageID       string                `json:"village_id"`
	ImportBatchID   string                `json:"import_batch_id"`
	StatementNumber string                `json:"statement_number"`
	RawReference    string                `json:"raw_reference,omitempty"`
	Description     string                `json:"description,omitempty"`
	AmountUnits     int64                 `json:"amount_units"`
	AmountBaht      string                `json:"amount_baht"`
	ValueDate       time.Time             `json:"value_date"`
	Status          string                `json:"status"`
	MatchedPayment  *string               `json:"matched_payment_id,omitempty"`
	MatchConfidence float64               `json:"match_confidence"`
	Candidates      []MatchCandidateEntry `json:"candidates,omitempty"`
	PropertyHint    *string               `json:"property_hint,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// MatchCandidateEntry is one scored payment proposal
type MatchCandidateEntry struct {
	PaymentID string  `json:"payment_id"`
	Score     float64 `json:"score"`
}

func toStatementLineResponse(line *accounting.BankStatementLine) StatementLineResponse {
	resp := StatementLineResponse{
		ID:              line.ID.String(),
		VillageID:       line.VillageID.String(),
		ImportBatchID:   line.ImportBatchID.String(),
		StatementNumber: line.StatementNumber,
		RawReference:    line.RawReference,
		Description:     line.Description,
		AmountUnits:     line.Amount.Units(),
		AmountBaht:      line.Amount.BahtString(),
		ValueDate:       line.ValueDate,
		Status:          string(line.Status),
		MatchConfidence: line.MatchConfidence,
		CreatedAt:       line.CreatedAt,
		UpdatedAt:       line.UpdatedAt,
	}
	if line.MatchedPayment != nil {
		id := line.MatchedPayment.String()
		resp.MatchedPayment = &id
	}
	if line.PropertyHint != nil {
		id := line.PropertyHint.String()
		resp.PropertyHint = &id
	}
	for _, cand := range line.Candidates {
		resp.Candidates = append(resp.Candidates, MatchCandidateEntry{
			PaymentID: cand.PaymentID.String(),
			Score:     cand.Score,
		})
	}
	return resp
}

// ImportStatement ingests a bank statement batch and runs matching
// per line. Replaying the same batch key is a reported no-op.
func (h *ReconciliationHandler) ImportStatement(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	var req ImportStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	lines := make([]appaccounting.ImportLineRequest, 0, len(req.Lines))
	for i, line := range req.Lines {
		valueDate, err := time.Parse("2006-01-02", line.ValueDate)
		if err != nil {
			h.BadRequest(c, "Invalid value_date format at line "+strconv.Itoa(i+1)+". Expected YYYY-MM-DD")
			return
		}
		var hint *uuid.UUID
		if line.PropertyHint != nil && *line.PropertyHint != "" {
			id, err := uuid.Parse(*line.PropertyHint)
			if err != nil {
				h.BadRequest(c, "Invalid property_hint at line "+strconv.Itoa(i+1))
				return
			}
			hint = &id
		}
		lines = append(lines, appaccounting.ImportLineRequest{
			RawReference: line.RawReference,
			Description:  line.Description,
			AmountBaht:   line.AmountBaht,
			ValueDate:    valueDate,
			PropertyHint: hint,
		})
	}

	result, err := h.reconciliationService.ImportStatement(c.Request.Context(), appaccounting.ImportRequest{
		VillageID: villageID,
		BatchKey:  req.BatchKey,
		Lines:     lines,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// ManualMatch binds a statement line to a payment picked by an
// operator
func (h *ReconciliationHandler) ManualMatch(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid statement line ID")
		return
	}

	var req ManualMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Payment ID is required")
		return
	}

	paymentID, err := uuid.Parse(req.PaymentID)
	if err != nil {
		h.BadRequest(c, "Invalid payment ID")
		return
	}

	if err := h.reconciliationService.ManualMatch(c.Request.Context(), villageID, lineID, paymentID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Unmatch detaches a statement line from its payment
func (h *ReconciliationHandler) Unmatch(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid statement line ID")
		return
	}

	if err := h.reconciliationService.Unmatch(c.Request.Context(), villageID, lineID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// ListLines returns paginated statement lines filtered by match status
func (h *ReconciliationHandler) ListLines(c *gin.Context) {
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

	status := accounting.MatchStatus(c.Query("status"))

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
	}

	page, err := h.reconciliationService.ListLines(c.Request.Context(), villageID, status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]StatementLineResponse, len(page.Items))
	for i := range page.Items {
		items[i] = toStatementLineResponse(&page.Items[i])
	}

	h.SuccessWithMeta(c, items, page.Total, page.Page, page.PageSize)
}
