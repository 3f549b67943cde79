package scheduler

import (
	"context"
	"fmt"

	appaccounting "github.com/smartvillage/backend/internal/application/accounting"
	"go.uber.org/zap"
)

// AccountingJobExecutor executes the nightly accounting jobs by
// delegating to the application services.
type AccountingJobExecutor struct {
	sweep        *appaccounting.OverdueSweep
	trialBalance *appaccounting.TrialBalanceService
	logger       *zap.Logger
}

// NewAccountingJobExecutor creates an AccountingJobExecutor
func NewAccountingJobExecutor(
	sweep *appaccounting.OverdueSweep,
	trialBalance *appaccounting.TrialBalanceService,
	logger *zap.Logger,
) *AccountingJobExecutor {
	return &AccountingJobExecutor{
		sweep:        sweep,
		trialBalance: trialBalance,
		logger:       logger,
	}
}

// Execute runs a single job
func (e *AccountingJobExecutor) Execute(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeOverdueSweep:
		result, err := e.sweep.Run(ctx)
		if err != nil {
			return err
		}
		e.logger.Info("Overdue sweep finished",
			zap.String("job_id", job.ID.String()),
			zap.Int("flagged", result.Flagged),
			zap.Int("skipped", result.Skipped),
		)
		return nil

	case JobTypeTrialBalance:
		if job.VillageID == nil {
			return fmt.Errorf("%w: trial balance requires a village", ErrInvalidJobType)
		}
		result, err := e.trialBalance.Generate(ctx, *job.VillageID, job.AsOf)
		if err != nil {
			return err
		}
		e.logger.Info("Trial balance snapshot generated",
			zap.String("job_id", job.ID.String()),
			zap.String("village_id", job.VillageID.String()),
			zap.Bool("balanced", result.IsBalanced()),
		)
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrInvalidJobType, job.Type)
	}
}
