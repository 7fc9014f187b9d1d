package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/amr0ny/bc-parser/service/worker"
)

var a *Activities // for type-safe activity invocation

// CycleWorkflowName is the registered name of CycleWorkflow.
const CycleWorkflowName = "CycleWorkflow"

// CycleInput contains the input parameters for one reporting cycle.
type CycleInput struct {
	AccountDelay time.Duration `json:"account_delay"`
}

// CycleResult summarizes one reporting cycle.
type CycleResult struct {
	StartedAt time.Time `json:"started_at"`
	Accounts  int       `json:"accounts"`
	Found     int       `json:"found"`
	NotFound  int       `json:"not_found"`
	Failed    int       `json:"failed"`
	Rows      int       `json:"rows"`
	Error     *string   `json:"error,omitempty"`
}

// CycleWorkflow runs one reporting cycle. It is triggered by a Temporal schedule.
//
// The workflow performs these steps:
// 1. Empty the record cache (ResetCache activity)
// 2. Read the account list (ReadAccounts activity)
// 3. Look up and cache each account in order (LocateAndStore activity)
// 4. Write the cache to the report (Flush activity)
//
// A failed reset is logged and a failed account lookup is counted and skipped;
// any other failure abandons the cycle.
func CycleWorkflow(ctx workflow.Context, input CycleInput) (*CycleResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("CycleWorkflow started")

	result := &CycleResult{StartedAt: workflow.Now(ctx)}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 300 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	fail := func(step string, err error) (*CycleResult, error) {
		logger.Error("cycle abandoned", "step", step, "error", err)
		errMsg := fmt.Sprintf("failed to %s: %v", step, err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to %s: %w", step, err)
	}

	// Step 1: Reset the cache. A failed reset leaves stale rows but the cycle goes on.
	if err := workflow.ExecuteActivity(ctx, a.ResetCache).Get(ctx, nil); err != nil {
		logger.Error("failed to reset cache, continuing", "error", err)
	}

	// Step 2: Read accounts
	var accts *ReadAccountsResult
	if err := workflow.ExecuteActivity(ctx, a.ReadAccounts).Get(ctx, &accts); err != nil {
		return fail("read accounts", err)
	}
	result.Accounts = len(accts.Accounts)

	// Step 3: Locate and store each account, sequentially
	for i, acct := range accts.Accounts {
		if i > 0 && input.AccountDelay > 0 {
			if err := workflow.Sleep(ctx, input.AccountDelay); err != nil {
				return fail("wait between accounts", err)
			}
		}

		var res *LocateAndStoreResult
		err := workflow.ExecuteActivity(ctx, a.LocateAndStore, LocateAndStoreInput{Account: acct}).Get(ctx, &res)
		if err != nil {
			logger.Warn("account skipped", "account", acct.ID, "error", err)
			result.Failed++
			continue
		}
		switch res.Outcome {
		case worker.OutcomeFound:
			result.Found++
		default:
			result.NotFound++
		}
	}

	// Step 4: Flush the report
	var flushed *FlushResult
	if err := workflow.ExecuteActivity(ctx, a.Flush, FlushInput{At: workflow.Now(ctx), StartedAt: result.StartedAt}).Get(ctx, &flushed); err != nil {
		return fail("flush report", err)
	}
	result.Rows = flushed.Rows

	logger.Info("CycleWorkflow completed successfully",
		"accounts", result.Accounts,
		"found", result.Found,
		"not_found", result.NotFound,
		"failed", result.Failed,
		"rows", result.Rows,
	)

	return result, nil
}
