package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	appaccounting "github.com/smartvillage/backend/internal/application/accounting"
	"github.com/smartvillage/backend/internal/domain/accounting"
)

// TrialBalanceHandler handles trial balance API endpoints
type TrialBalanceHandler struct {
	BaseHandler
	trialBalanceService *appaccounting.TrialBalanceService
}

// NewTrialBalanceHandler creates a new TrialBalanceHandler
func NewTrialBalanceHandler(trialBalanceService *appaccounting.TrialBalanceService) *TrialBalanceHandler {
	return &TrialBalanceHandler{trialBalanceService: trialBalanceService}
}

// ClearHaltRequest represents a request to clear a posting halt
type ClearHaltRequest struct {
	Operator string `json:"operator" binding:"required"`
}

// AccountBalanceResponse represents one account row in the snapshot
type AccountBalanceResponse struct {
	AccountID    string `json:"account_id"`
	AccountCode  string `json:"account_code"`
	AccountName  string `json:"account_name"`
	AccountType  string `json:"account_type"`
	DebitUnits   int64  `json:"debit_units"`
	CreditUnits  int64  `json:"credit_units"`
	BalanceUnits int64  `json:"balance_units"`
	BalanceBaht  string `json:"balance_baht"`
}

// TrialBalanceResponse represents the trial balance snapshot
type TrialBalanceResponse struct {
	VillageID        string                   `json:"village_id"`
	AsOf             time.Time                `json:"as_of"`
	GeneratedAt      time.Time                `json:"generated_at"`
	Status           string                   `json:"status"`
	TotalDebitUnits  int64                    `json:"total_debit_units"`
	TotalCreditUnits int64                    `json:"total_credit_units"`
	DifferenceUnits  int64                    `json:"difference_units"`
	Accounts         []AccountBalanceResponse `json:"accounts"`
}

func toTrialBalanceResponse(result *accounting.TrialBalanceResult) TrialBalanceResponse {
	accounts := make([]AccountBalanceResponse, len(result.Accounts))
	for i, b := range result.Accounts {
		accounts[i] = AccountBalanceResponse{
			AccountID:    b.AccountID.String(),
			AccountCode:  b.AccountCode,
			AccountName:  b.AccountName,
			AccountType:  string(b.AccountType),
			DebitUnits:   b.TotalDebit.Units(),
			CreditUnits:  b.TotalCredit.Units(),
			BalanceUnits: b.Balance.Units(),
			BalanceBaht:  b.Balance.BahtString(),
		}
	}
	return TrialBalanceResponse{
		VillageID:        result.VillageID.String(),
		AsOf:             result.AsOf,
		GeneratedAt:      result.GeneratedAt,
		Status:           string(result.Status),
		TotalDebitUnits:  result.TotalDebits.Units(),
		TotalCreditUnits: result.TotalCredits.Units(),
		DifferenceUnits:  result.Difference.Units(),
		Accounts:         accounts,
	}
}

// GetTrialBalance generates the trial balance snapshot as of a date.
// An unbalanced snapshot halts further posting for the village.
func (h *TrialBalanceHandler) GetTrialBalance(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	asOf := time.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.BadRequest(c, "Invalid as_of format. Expected YYYY-MM-DD")
			return
		}
		// Include the whole day in the snapshot window.
		asOf = parsed.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	result, err := h.trialBalanceService.Generate(c.Request.Context(), villageID, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTrialBalanceResponse(result))
}

// ClearHalt lifts a posting halt after an operator has reviewed the
// ledger
func (h *TrialBalanceHandler) ClearHalt(c *gin.Context) {
	villageID, err := getVillageID(c)
	if err != nil {
		h.BadRequest(c, "Invalid village ID")
		return
	}

	var req ClearHaltRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Operator is required")
		return
	}

	if err := h.trialBalanceService.ClearHalt(c.Request.Context(), villageID, req.Operator); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
