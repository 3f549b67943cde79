package accounting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smartvillage/backend/internal/domain/accounting"
	"github.com/smartvillage/backend/internal/domain/shared"
	"github.com/smartvillage/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TrialBalanceService aggregates the journal per account and enforces
// the debits == credits closure. An unbalanced result halts all posting
// for the village until an operator clears the halt.
type TrialBalanceService struct {
	uow    accounting.UnitOfWork
	logger *zap.Logger
}

// NewTrialBalanceService creates a TrialBalanceService
func NewTrialBalanceService(uow accounting.UnitOfWork, logger *zap.Logger) *TrialBalanceService {
	return &TrialBalanceService{uow: uow, logger: logger}
}

// Generate produces the trial balance snapshot for a village as of the
// given cutoff (zero time means now).
func (s *TrialBalanceService) Generate(ctx context.Context, villageID uuid.UUID, asOf time.Time) (*accounting.TrialBalanceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "trial_balance", "generate")
	defer span.End()
	telemetry.SetAttributes(span, "village_id", villageID.String())

	if asOf.IsZero() {
		asOf = time.Now()
	}

	var result *accounting.TrialBalanceResult
	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		accounts, err := repos.Accounts.FindActiveByVillage(ctx, villageID)
		if err != nil {
			return err
		}

		balances := make([]accounting.AccountBalance, 0, len(accounts))
		for _, acc := range accounts {
			debit, credit, err := repos.Journal.SumByAccount(ctx, villageID, acc.ID, asOf)
			if err != nil {
				return err
			}
			balances = append(balances, accounting.NewAccountBalance(acc, debit, credit))
		}

		result = accounting.NewTrialBalanceResult(villageID, asOf, balances)
		if result.IsBalanced() {
			return nil
		}

		// The ledger does not close: freeze posting before anything else
		// can make it worse.
		s.logger.Error("trial balance does not close, halting posting",
			zap.String("village_id", villageID.String()),
			zap.Int64("difference_units", result.Difference.Units()))

		if _, err := repos.PostingHalts.FindActive(ctx, villageID); err == nil {
			return nil // already halted
		} else if !errorsIsNotFound(err) {
			return err
		}
		halt := accounting.NewPostingHalt(villageID,
			"trial balance difference of "+result.Difference.BahtString()+" THB as of "+asOf.Format(time.RFC3339))
		return repos.PostingHalts.Save(ctx, halt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if !result.IsBalanced() {
		return result, shared.ErrLedgerIntegrity
	}
	return result, nil
}

// ClearHalt lifts a village posting halt after investigation
func (s *TrialBalanceService) ClearHalt(ctx context.Context, villageID uuid.UUID, operator string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "trial_balance", "clear_halt")
	defer span.End()

	err := s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		halt, err := repos.PostingHalts.FindActive(ctx, villageID)
		if err != nil {
			return err
		}
		if err := halt.Clear(operator); err != nil {
			return err
		}
		return repos.PostingHalts.Save(ctx, halt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

// EnsureChart seeds the default chart of accounts for a village once
func (s *TrialBalanceService) EnsureChart(ctx context.Context, villageID uuid.UUID) error {
	return s.uow.Execute(ctx, func(repos accounting.Repositories) error {
		count, err := repos.Accounts.CountByVillage(ctx, villageID)
		if err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		accounts, err := accounting.DefaultChartOfAccounts(villageID)
		if err != nil {
			return err
		}
		return repos.Accounts.SaveAll(ctx, accounts)
	})
}
