package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/models"
	"github.com/cyclebit-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupBatchServiceTest(t *testing.T) (*BatchService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:batch_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Plan{},
		&models.Purchase{},
		&models.SubscriptionState{},
		&models.AccrualRecord{},
		&models.Commission{},
		&models.Setting{},
		&models.BatchRun{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	settingSvc := NewSettingService(repository.NewSettingRepository(db))
	commissionSvc := NewCommissionService(
		repository.NewCommissionRepository(db),
		repository.NewUserRepository(db),
		repository.NewAccrualRepository(db),
		repository.NewPurchaseRepository(db),
		settingSvc,
	)
	cycleSvc := NewCycleService(
		repository.NewPurchaseRepository(db),
		repository.NewSubscriptionStateRepository(db),
		repository.NewAccrualRepository(db),
		repository.NewPlanRepository(db),
		commissionSvc,
		settingSvc,
	)
	batchSvc := NewBatchService(
		repository.NewPurchaseRepository(db),
		repository.NewBatchRunRepository(db),
		cycleSvc,
		BatchOptions{ChunkSize: 2, Concurrency: 1, MaxRetries: 0, RetryBackoff: time.Millisecond},
	)
	return batchSvc, db
}

func TestBatchRunPartialFailureIsolation(t *testing.T) {
	svc, db := setupBatchServiceTest(t)
	ctx := context.Background()

	dailyRate := 12.5
	goodPlan := createCycleTestPlan(t, db, 100, &dailyRate)
	badPlan := createCycleTestPlan(t, db, 100, nil)

	// 引擎默认日率置 0，使未配置费率的方案确定性失败
	settingSvc := NewSettingService(repository.NewSettingRepository(db))
	if _, err := settingSvc.UpdateEngineSetting(EngineSetting{
		DaysPerCycle:       8,
		CyclesTotal:        2,
		DefaultDailyRate:   0,
		DirectReferralRate: 10,
		SpecialBonusRate:   5,
		PoolRate:           5,
		SponsorWalkDepth:   10,
	}); err != nil {
		t.Fatalf("update engine setting failed: %v", err)
	}

	var badPurchaseID uint
	for i := 0; i < 5; i++ {
		user := createCycleTestUser(t, db, fmt.Sprintf("batch-%d@example.com", i), constants.UserRoleMember, nil, 100)
		planID := goodPlan.ID
		if i == 2 {
			planID = badPlan.ID
		}
		purchase := createCycleTestPurchase(t, db, user.ID, planID, 100)
		if i == 2 {
			badPurchaseID = purchase.ID
		}
	}

	report, err := svc.Run(ctx, "batch-run-1", false)
	if err != nil {
		t.Fatalf("batch run failed: %v", err)
	}
	if report.Total != 5 {
		t.Fatalf("expected 5 due purchases, got %d", report.Total)
	}
	if report.Processed != 4 {
		t.Fatalf("expected 4 processed, got %d", report.Processed)
	}
	if report.Errors != 1 {
		t.Fatalf("expected 1 error, got %d", report.Errors)
	}
	if len(report.Details) != 1 || report.Details[0].PurchaseID != badPurchaseID {
		t.Fatalf("expected failure detail for purchase %d, got %+v", badPurchaseID, report.Details)
	}
	if len(report.SuccessDetails) != 4 {
		t.Fatalf("expected 4 success details, got %d", len(report.SuccessDetails))
	}
	for _, item := range report.SuccessDetails {
		if item.PurchaseID == badPurchaseID {
			t.Fatalf("failed purchase %d must not appear in success details", badPurchaseID)
		}
		if item.Outcome != constants.ProcessOutcomeAccrued {
			t.Fatalf("expected accrued outcome in success detail, got %s", item.Outcome)
		}
		if item.Amount.Decimal.StringFixed(2) != "12.50" {
			t.Fatalf("expected success detail amount 12.50, got %s", item.Amount.String())
		}
	}

	run, err := svc.GetRun("batch-run-1")
	if err != nil {
		t.Fatalf("load batch run failed: %v", err)
	}
	if run.Status != constants.BatchRunStatusFinished {
		t.Fatalf("expected finished status, got %s", run.Status)
	}
	if run.ProcessedCount != 4 || run.ErrorCount != 1 {
		t.Fatalf("expected persisted counts 4/1, got %d/%d", run.ProcessedCount, run.ErrorCount)
	}
	if run.Details["successes"] == nil || run.Details["errors"] == nil {
		t.Fatalf("expected persisted success/error details, got %+v", run.Details)
	}
}

func TestBatchChunkRecordsSkipReasons(t *testing.T) {
	svc, db := setupBatchServiceTest(t)
	ctx := context.Background()

	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 100, &dailyRate)
	user := createCycleTestUser(t, db, "skip-detail@example.com", constants.UserRoleMember, nil, 100)
	purchase := createCycleTestPurchase(t, db, user.ID, plan.ID, 100)
	if err := db.Model(&models.Purchase{}).Where("id = ?", purchase.ID).Update("status", constants.PurchaseStatusCompleted).Error; err != nil {
		t.Fatalf("complete purchase failed: %v", err)
	}

	report := &BatchReport{RunID: "skip-detail-run"}
	svc.processChunk(ctx, []uint{purchase.ID}, "skip-detail-run", true, report)

	if report.Skipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", report.Skipped)
	}
	if len(report.SkipReasons) != 1 {
		t.Fatalf("expected 1 skip reason entry, got %d", len(report.SkipReasons))
	}
	if report.SkipReasons[0].PurchaseID != purchase.ID || report.SkipReasons[0].Reason != constants.SkipReasonCompleted {
		t.Fatalf("expected completed skip reason for purchase %d, got %+v", purchase.ID, report.SkipReasons[0])
	}
}

func TestBatchRunDuplicateRunID(t *testing.T) {
	svc, db := setupBatchServiceTest(t)
	ctx := context.Background()

	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 100, &dailyRate)
	user := createCycleTestUser(t, db, "dup-run@example.com", constants.UserRoleMember, nil, 100)
	createCycleTestPurchase(t, db, user.ID, plan.ID, 100)

	if _, err := svc.Run(ctx, "dup-run-id", false); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := svc.Run(ctx, "dup-run-id", false); !errors.Is(err, ErrDuplicateRun) {
		t.Fatalf("expected ErrDuplicateRun, got %v", err)
	}
}

func TestBatchRunSkipsNotDueWithoutForce(t *testing.T) {
	svc, db := setupBatchServiceTest(t)
	ctx := context.Background()

	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 100, &dailyRate)
	user := createCycleTestUser(t, db, "due-filter@example.com", constants.UserRoleMember, nil, 100)
	purchase := createCycleTestPurchase(t, db, user.ID, plan.ID, 100)

	// 把到期时间推到未来，非强制批次应选不出它
	future := time.Now().Add(12 * time.Hour)
	if err := db.Model(&models.SubscriptionState{}).Where("purchase_id = ?", purchase.ID).Update("next_due_date", future).Error; err != nil {
		t.Fatalf("update next due failed: %v", err)
	}

	report, err := svc.Run(ctx, "due-filter-run", false)
	if err != nil {
		t.Fatalf("batch run failed: %v", err)
	}
	if report.Total != 0 {
		t.Fatalf("expected no due purchases, got %d", report.Total)
	}

	// 强制批次忽略到期时间
	forced, err := svc.Run(ctx, "due-filter-run-force", true)
	if err != nil {
		t.Fatalf("forced batch run failed: %v", err)
	}
	if forced.Total != 1 || forced.Processed != 1 {
		t.Fatalf("expected forced run to process 1, got total=%d processed=%d", forced.Total, forced.Processed)
	}
}

func TestBatchRunEmptyRunID(t *testing.T) {
	svc, _ := setupBatchServiceTest(t)

	if _, err := svc.Run(context.Background(), "  ", false); err == nil {
		t.Fatal("expected error for blank run id")
	}
}

func TestNormalizeBatchOptionsDefaults(t *testing.T) {
	opts := NormalizeBatchOptions(BatchOptions{})
	if opts.ChunkSize != 50 {
		t.Fatalf("expected default chunk size 50, got %d", opts.ChunkSize)
	}
	if opts.Concurrency != 8 {
		t.Fatalf("expected default concurrency 8, got %d", opts.Concurrency)
	}
	if opts.RetryBackoff != 200*time.Millisecond {
		t.Fatalf("expected default retry backoff 200ms, got %s", opts.RetryBackoff)
	}
}
