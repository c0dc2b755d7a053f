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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupCycleServiceTest(t *testing.T) (*CycleService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:cycle_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	return cycleSvc, db
}

func createCycleTestUser(t *testing.T, db *gorm.DB, email, role string, sponsorID *uint, invested float64) *models.User {
	t.Helper()
	user := &models.User{
		Email:         email,
		DisplayName:   "tester",
		Status:        constants.UserStatusActive,
		Role:          role,
		SponsorID:     sponsorID,
		TotalInvested: models.NewMoneyFromFloat(invested),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return user
}

func createCycleTestPlan(t *testing.T, db *gorm.DB, price float64, dailyRate *float64) *models.Plan {
	t.Helper()
	plan := &models.Plan{
		Name:         "测试方案",
		Price:        models.NewMoneyFromFloat(price),
		DaysPerCycle: 8,
		CyclesTotal:  2,
		Status:       constants.PlanStatusActive,
	}
	if dailyRate != nil {
		rate := models.NewMoneyFromFloat(*dailyRate)
		plan.DailyRate = &rate
	}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("create plan failed: %v", err)
	}
	return plan
}

func createCycleTestPurchase(t *testing.T, db *gorm.DB, userID, planID uint, price float64) *models.Purchase {
	t.Helper()
	purchase := &models.Purchase{
		UserID:     userID,
		PlanID:     planID,
		BaseAmount: models.NewMoneyFromFloat(price),
		Status:     constants.PurchaseStatusActive,
	}
	if err := db.Create(purchase).Error; err != nil {
		t.Fatalf("create purchase failed: %v", err)
	}
	state := &models.SubscriptionState{
		PurchaseID:  purchase.ID,
		CurrentDay:  1,
		NextDueDate: time.Now().Add(-time.Minute),
	}
	if err := db.Create(state).Error; err != nil {
		t.Fatalf("create subscription state failed: %v", err)
	}
	return purchase
}

func TestProcessPurchaseFullLifecycle(t *testing.T) {
	svc, db := setupCycleServiceTest(t)
	ctx := context.Background()

	leader := createCycleTestUser(t, db, "leader@example.com", constants.UserRoleLeader, nil, 0)
	sponsor := createCycleTestUser(t, db, "sponsor@example.com", constants.UserRoleMember, &leader.ID, 0)
	owner := createCycleTestUser(t, db, "owner@example.com", constants.UserRoleMember, &sponsor.ID, 100)

	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 100, &dailyRate)
	purchase := createCycleTestPurchase(t, db, owner.ID, plan.ID, 100)

	// 两个完整周期：每周期 8 个收益日加 1 个暂停日
	for day := 1; day <= 17; day++ {
		result, err := svc.ProcessPurchase(ctx, ProcessInput{
			PurchaseID: purchase.ID,
			RunID:      "test-run",
			Force:      true,
		})
		if err != nil {
			t.Fatalf("process day %d failed: %v", day, err)
		}
		if day == 9 {
			if result.Outcome != constants.ProcessOutcomePauseDay {
				t.Fatalf("expected pause day outcome on day 9, got %s", result.Outcome)
			}
			continue
		}
		if result.Outcome != constants.ProcessOutcomeAccrued {
			t.Fatalf("expected accrued outcome on day %d, got %s (%s)", day, result.Outcome, result.SkipReason)
		}
		if result.Amount.Decimal.StringFixed(2) != "12.50" {
			t.Fatalf("expected daily amount 12.50 on day %d, got %s", day, result.Amount.String())
		}
	}

	// 末周期的最后一个收益日落账后，周期计数和终态要等暂停日消费
	var midway models.Purchase
	if err := db.First(&midway, purchase.ID).Error; err != nil {
		t.Fatalf("reload purchase after day 17 failed: %v", err)
	}
	if midway.Status != constants.PurchaseStatusActive {
		t.Fatalf("expected active status before terminal pause day, got %s", midway.Status)
	}
	if midway.CyclesCompleted != 1 {
		t.Fatalf("expected 1 cycle completed before terminal pause day, got %d", midway.CyclesCompleted)
	}

	// 第 18 天消费末周期暂停日并转入终态
	pauseResult, err := svc.ProcessPurchase(ctx, ProcessInput{PurchaseID: purchase.ID, RunID: "test-run", Force: true})
	if err != nil {
		t.Fatalf("process day 18 failed: %v", err)
	}
	if pauseResult.Outcome != constants.ProcessOutcomePauseDay {
		t.Fatalf("expected pause day outcome on day 18, got %s", pauseResult.Outcome)
	}

	var accrualCount int64
	if err := db.Model(&models.AccrualRecord{}).Where("purchase_id = ?", purchase.ID).Count(&accrualCount).Error; err != nil {
		t.Fatalf("count accruals failed: %v", err)
	}
	if accrualCount != 16 {
		t.Fatalf("expected 16 accrual records, got %d", accrualCount)
	}

	var reloaded models.Purchase
	if err := db.First(&reloaded, purchase.ID).Error; err != nil {
		t.Fatalf("reload purchase failed: %v", err)
	}
	if !reloaded.FirstCycleCompleted || !reloaded.SecondCycleCompleted {
		t.Fatalf("expected both cycle flags set, got first=%v second=%v", reloaded.FirstCycleCompleted, reloaded.SecondCycleCompleted)
	}
	if reloaded.Status != constants.PurchaseStatusCompleted {
		t.Fatalf("expected completed status, got %s", reloaded.Status)
	}
	if reloaded.CyclesCompleted != 2 {
		t.Fatalf("expected 2 cycles completed, got %d", reloaded.CyclesCompleted)
	}

	// 直推佣金：首周期收益之和 100.00 的 10%
	var direct models.Commission
	if err := db.Where("type = ? AND purchase_id = ?", constants.CommissionTypeDirectReferral, purchase.ID).First(&direct).Error; err != nil {
		t.Fatalf("load direct referral commission failed: %v", err)
	}
	if direct.PayeeID != sponsor.ID {
		t.Fatalf("expected direct commission payee %d, got %d", sponsor.ID, direct.PayeeID)
	}
	if direct.SourceUserID != owner.ID || direct.CycleNumber != 1 {
		t.Fatalf("unexpected direct commission key: source=%d cycle=%d", direct.SourceUserID, direct.CycleNumber)
	}
	if direct.BaseAmount.Decimal.StringFixed(2) != "100.00" {
		t.Fatalf("expected direct base 100.00, got %s", direct.BaseAmount.String())
	}
	if direct.Amount.Decimal.StringFixed(2) != "10.00" {
		t.Fatalf("expected direct amount 10.00, got %s", direct.Amount.String())
	}
	if direct.Status != constants.CommissionStatusPending {
		t.Fatalf("expected pending status, got %s", direct.Status)
	}

	// 领袖奖励：推荐链上的领袖按持有人累计投入 100 的 5% 计提
	var bonus models.Commission
	if err := db.Where("type = ? AND purchase_id = ?", constants.CommissionTypeLeaderBonus, purchase.ID).First(&bonus).Error; err != nil {
		t.Fatalf("load leader bonus failed: %v", err)
	}
	if bonus.PayeeID != leader.ID {
		t.Fatalf("expected leader bonus payee %d, got %d", leader.ID, bonus.PayeeID)
	}
	if bonus.Amount.Decimal.StringFixed(2) != "5.00" {
		t.Fatalf("expected leader bonus amount 5.00, got %s", bonus.Amount.String())
	}
	if bonus.CycleNumber != 2 {
		t.Fatalf("expected leader bonus cycle 2, got %d", bonus.CycleNumber)
	}

	// 终态认购再次处理是无害空操作
	result, err := svc.ProcessPurchase(ctx, ProcessInput{PurchaseID: purchase.ID, RunID: "test-run", Force: true})
	if err != nil {
		t.Fatalf("reprocess completed purchase failed: %v", err)
	}
	if result.Outcome != constants.ProcessOutcomeSkipped || result.SkipReason != constants.SkipReasonCompleted {
		t.Fatalf("expected completed skip, got %s/%s", result.Outcome, result.SkipReason)
	}

	var commissionCount int64
	if err := db.Model(&models.Commission{}).Where("purchase_id = ?", purchase.ID).Count(&commissionCount).Error; err != nil {
		t.Fatalf("count commissions failed: %v", err)
	}
	if commissionCount != 2 {
		t.Fatalf("expected exactly 2 commissions, got %d", commissionCount)
	}
}

func TestProcessPurchaseNotDueWithoutForce(t *testing.T) {
	svc, db := setupCycleServiceTest(t)
	ctx := context.Background()

	owner := createCycleTestUser(t, db, "notdue@example.com", constants.UserRoleMember, nil, 100)
	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 100, &dailyRate)
	purchase := createCycleTestPurchase(t, db, owner.ID, plan.ID, 100)

	first, err := svc.ProcessPurchase(ctx, ProcessInput{PurchaseID: purchase.ID, RunID: "test-run"})
	if err != nil {
		t.Fatalf("first process failed: %v", err)
	}
	if first.Outcome != constants.ProcessOutcomeAccrued {
		t.Fatalf("expected accrued, got %s", first.Outcome)
	}

	// 落账后下次到期在 24 小时后，再次非强制处理应跳过
	second, err := svc.ProcessPurchase(ctx, ProcessInput{PurchaseID: purchase.ID, RunID: "test-run"})
	if err != nil {
		t.Fatalf("second process failed: %v", err)
	}
	if second.Outcome != constants.ProcessOutcomeSkipped || second.SkipReason != constants.SkipReasonNotDue {
		t.Fatalf("expected not_due skip, got %s/%s", second.Outcome, second.SkipReason)
	}

	var accrualCount int64
	if err := db.Model(&models.AccrualRecord{}).Where("purchase_id = ?", purchase.ID).Count(&accrualCount).Error; err != nil {
		t.Fatalf("count accruals failed: %v", err)
	}
	if accrualCount != 1 {
		t.Fatalf("expected 1 accrual record, got %d", accrualCount)
	}
}

func TestProcessPurchaseRateMissing(t *testing.T) {
	svc, db := setupCycleServiceTest(t)
	ctx := context.Background()

	// 引擎默认日率置 0，方案也未配置，应拒绝落账
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

	owner := createCycleTestUser(t, db, "norate@example.com", constants.UserRoleMember, nil, 100)
	plan := createCycleTestPlan(t, db, 100, nil)
	purchase := createCycleTestPurchase(t, db, owner.ID, plan.ID, 100)

	result, err := svc.ProcessPurchase(ctx, ProcessInput{PurchaseID: purchase.ID, RunID: "test-run", Force: true})
	if !errors.Is(err, ErrRateMissing) {
		t.Fatalf("expected ErrRateMissing, got %v", err)
	}
	if result == nil || result.Outcome != constants.ProcessOutcomeError {
		t.Fatalf("expected error outcome, got %+v", result)
	}

	var accrualCount int64
	if err := db.Model(&models.AccrualRecord{}).Where("purchase_id = ?", purchase.ID).Count(&accrualCount).Error; err != nil {
		t.Fatalf("count accruals failed: %v", err)
	}
	if accrualCount != 0 {
		t.Fatalf("expected no accrual records, got %d", accrualCount)
	}
}

func TestProcessPurchaseRateOverride(t *testing.T) {
	svc, db := setupCycleServiceTest(t)
	ctx := context.Background()

	owner := createCycleTestUser(t, db, "override@example.com", constants.UserRoleMember, nil, 100)
	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 200, &dailyRate)
	purchase := createCycleTestPurchase(t, db, owner.ID, plan.ID, 200)

	override := decimal.NewFromFloat(20)
	result, err := svc.ProcessPurchase(ctx, ProcessInput{
		PurchaseID:   purchase.ID,
		RunID:        "test-run",
		Force:        true,
		RateOverride: &override,
	})
	if err != nil {
		t.Fatalf("process with override failed: %v", err)
	}
	if result.Amount.Decimal.StringFixed(2) != "40.00" {
		t.Fatalf("expected override amount 40.00, got %s", result.Amount.String())
	}
}

func TestProcessPurchaseNoSponsorSkipsDirectCommission(t *testing.T) {
	svc, db := setupCycleServiceTest(t)
	ctx := context.Background()

	owner := createCycleTestUser(t, db, "solo@example.com", constants.UserRoleMember, nil, 100)
	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 100, &dailyRate)
	purchase := createCycleTestPurchase(t, db, owner.ID, plan.ID, 100)

	for day := 1; day <= 8; day++ {
		if _, err := svc.ProcessPurchase(ctx, ProcessInput{PurchaseID: purchase.ID, RunID: "test-run", Force: true}); err != nil {
			t.Fatalf("process day %d failed: %v", day, err)
		}
	}

	var reloaded models.Purchase
	if err := db.First(&reloaded, purchase.ID).Error; err != nil {
		t.Fatalf("reload purchase failed: %v", err)
	}
	if !reloaded.FirstCycleCompleted {
		t.Fatalf("expected first cycle milestone to flip")
	}

	var commissionCount int64
	if err := db.Model(&models.Commission{}).Where("purchase_id = ?", purchase.ID).Count(&commissionCount).Error; err != nil {
		t.Fatalf("count commissions failed: %v", err)
	}
	if commissionCount != 0 {
		t.Fatalf("expected no commissions without sponsor, got %d", commissionCount)
	}
}

func TestProcessPurchaseNotFound(t *testing.T) {
	svc, _ := setupCycleServiceTest(t)

	if _, err := svc.ProcessPurchase(context.Background(), ProcessInput{PurchaseID: 9999, RunID: "test-run"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
