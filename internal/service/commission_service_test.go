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

func setupCommissionServiceTest(t *testing.T) (*CommissionService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:commission_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	svc := NewCommissionService(
		repository.NewCommissionRepository(db),
		repository.NewUserRepository(db),
		repository.NewAccrualRepository(db),
		repository.NewPurchaseRepository(db),
		settingSvc,
	)
	return svc, db
}

func TestEvaluatePoolBonusOncePerCycle(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	ctx := context.Background()

	owner := createCycleTestUser(t, db, "pool-owner@example.com", constants.UserRoleMember, nil, 0)
	payeeA := createCycleTestUser(t, db, "pool-a@example.com", constants.UserRoleLeader, nil, 0)
	payeeB := createCycleTestUser(t, db, "pool-b@example.com", constants.UserRoleLeader, nil, 0)
	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 200, &dailyRate)
	purchase := createCycleTestPurchase(t, db, owner.ID, plan.ID, 200)

	commission, err := svc.EvaluatePoolBonus(ctx, purchase.ID, payeeA.ID, 1, "pool-run-1")
	if err != nil {
		t.Fatalf("first pool bonus failed: %v", err)
	}
	if commission.Amount.Decimal.StringFixed(2) != "10.00" {
		t.Fatalf("expected pool bonus 10.00 (5%% of 200), got %s", commission.Amount.String())
	}
	if commission.TriggerKind != constants.CommissionTriggerAdminPool {
		t.Fatalf("expected admin pool trigger, got %s", commission.TriggerKind)
	}

	// 同认购同周期换收款人也不允许再次派发，返回已落账的记录
	existing, err := svc.EvaluatePoolBonus(ctx, purchase.ID, payeeB.ID, 1, "pool-run-2")
	if !errors.Is(err, ErrDuplicateCommission) {
		t.Fatalf("expected ErrDuplicateCommission, got %v", err)
	}
	if existing == nil || existing.ID != commission.ID {
		t.Fatalf("expected existing commission %d returned, got %+v", commission.ID, existing)
	}

	// 不同周期可以再次派发
	if _, err := svc.EvaluatePoolBonus(ctx, purchase.ID, payeeB.ID, 2, "pool-run-3"); err != nil {
		t.Fatalf("pool bonus for cycle 2 failed: %v", err)
	}

	var count int64
	if err := db.Model(&models.Commission{}).Where("type = ? AND purchase_id = ?", constants.CommissionTypePoolBonus, purchase.ID).Count(&count).Error; err != nil {
		t.Fatalf("count pool bonuses failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 pool bonuses, got %d", count)
	}
}

func TestEvaluatePoolBonusTargetsMissing(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	ctx := context.Background()

	payee := createCycleTestUser(t, db, "pool-missing@example.com", constants.UserRoleLeader, nil, 0)

	if _, err := svc.EvaluatePoolBonus(ctx, 9999, payee.ID, 1, "pool-run"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing purchase, got %v", err)
	}

	owner := createCycleTestUser(t, db, "pool-owner2@example.com", constants.UserRoleMember, nil, 0)
	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 100, &dailyRate)
	purchase := createCycleTestPurchase(t, db, owner.ID, plan.ID, 100)

	if _, err := svc.EvaluatePoolBonus(ctx, purchase.ID, 9999, 1, "pool-run"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing payee, got %v", err)
	}
}

func TestHandleFirstCycleCompleteBaseUsesPlanDays(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	sponsor := createCycleTestUser(t, db, "days-sponsor@example.com", constants.UserRoleMember, nil, 0)
	owner := createCycleTestUser(t, db, "days-owner@example.com", constants.UserRoleMember, &sponsor.ID, 100)
	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 80, &dailyRate)
	purchase := createCycleTestPurchase(t, db, owner.ID, plan.ID, 80)

	// 方案周期 10 天时基数应覆盖前 10 条，而不是引擎默认的 8 条
	for day := 1; day <= 10; day++ {
		record := &models.AccrualRecord{
			PurchaseID:  purchase.ID,
			UserID:      owner.ID,
			Amount:      models.NewMoneyFromFloat(10),
			CycleNumber: 1,
			DayInCycle:  day,
			CompletedAt: time.Now(),
		}
		if err := db.Create(record).Error; err != nil {
			t.Fatalf("create accrual failed: %v", err)
		}
	}
	// 第二周期的记录不计入首周期基数
	extra := &models.AccrualRecord{
		PurchaseID:  purchase.ID,
		UserID:      owner.ID,
		Amount:      models.NewMoneyFromFloat(99),
		CycleNumber: 2,
		DayInCycle:  1,
		CompletedAt: time.Now(),
	}
	if err := db.Create(extra).Error; err != nil {
		t.Fatalf("create extra accrual failed: %v", err)
	}

	if err := svc.HandleFirstCycleComplete(db, purchase, 10, "days-run"); err != nil {
		t.Fatalf("handle first cycle failed: %v", err)
	}

	var direct models.Commission
	if err := db.Where("type = ? AND purchase_id = ?", constants.CommissionTypeDirectReferral, purchase.ID).First(&direct).Error; err != nil {
		t.Fatalf("load direct commission failed: %v", err)
	}
	if direct.BaseAmount.Decimal.StringFixed(2) != "100.00" {
		t.Fatalf("expected base 100.00 over 10 days, got %s", direct.BaseAmount.String())
	}
	if direct.Amount.Decimal.StringFixed(2) != "10.00" {
		t.Fatalf("expected amount 10.00, got %s", direct.Amount.String())
	}
}

func TestCancelCommissionRules(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)
	ctx := context.Background()

	payee := createCycleTestUser(t, db, "cancel-payee@example.com", constants.UserRoleMember, nil, 0)
	source := createCycleTestUser(t, db, "cancel-source@example.com", constants.UserRoleMember, nil, 0)

	pending := &models.Commission{
		Type:         constants.CommissionTypeDirectReferral,
		PayeeID:      payee.ID,
		SourceUserID: source.ID,
		PurchaseID:   1,
		CycleNumber:  1,
		Amount:       models.NewMoneyFromFloat(10),
		Currency:     constants.DefaultCurrency,
		Status:       constants.CommissionStatusPending,
		TriggerKind:  constants.CommissionTriggerFirstCycle,
	}
	if err := db.Create(pending).Error; err != nil {
		t.Fatalf("create pending commission failed: %v", err)
	}

	cancelled, err := svc.CancelCommission(ctx, pending.ID, "人工冲正")
	if err != nil {
		t.Fatalf("cancel pending commission failed: %v", err)
	}
	if cancelled.Status != constants.CommissionStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}
	if cancelled.CancelReason != "人工冲正" {
		t.Fatalf("expected cancel reason persisted, got %q", cancelled.CancelReason)
	}

	// 已取消佣金重复取消是幂等空操作
	again, err := svc.CancelCommission(ctx, pending.ID, "再次取消")
	if err != nil {
		t.Fatalf("re-cancel failed: %v", err)
	}
	if again.Status != constants.CommissionStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", again.Status)
	}
	if again.CancelReason != "人工冲正" {
		t.Fatalf("expected original cancel reason kept, got %q", again.CancelReason)
	}

	paid := &models.Commission{
		Type:         constants.CommissionTypeLeaderBonus,
		PayeeID:      payee.ID,
		SourceUserID: source.ID,
		PurchaseID:   1,
		CycleNumber:  2,
		Amount:       models.NewMoneyFromFloat(5),
		Currency:     constants.DefaultCurrency,
		Status:       constants.CommissionStatusPaid,
		TriggerKind:  constants.CommissionTriggerSecondCycle,
	}
	if err := db.Create(paid).Error; err != nil {
		t.Fatalf("create paid commission failed: %v", err)
	}
	if _, err := svc.CancelCommission(ctx, paid.ID, "不允许"); !errors.Is(err, ErrCommissionStatusInvalid) {
		t.Fatalf("expected ErrCommissionStatusInvalid for paid commission, got %v", err)
	}

	if _, err := svc.CancelCommission(ctx, 9999, "不存在"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCollectUplineSpecialDepthAndCycle(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	// 链路: owner -> m1 -> leader -> parent（角色命中在第 2、3 层）
	parent := createCycleTestUser(t, db, "upline-parent@example.com", constants.UserRoleParent, nil, 0)
	leader := createCycleTestUser(t, db, "upline-leader@example.com", constants.UserRoleLeader, &parent.ID, 0)
	m1 := createCycleTestUser(t, db, "upline-m1@example.com", constants.UserRoleMember, &leader.ID, 0)
	owner := createCycleTestUser(t, db, "upline-owner@example.com", constants.UserRoleMember, &m1.ID, 0)

	holders, err := svc.collectUplineSpecial(db, owner, 10)
	if err != nil {
		t.Fatalf("collect upline failed: %v", err)
	}
	if len(holders) != 2 {
		t.Fatalf("expected 2 role holders, got %d", len(holders))
	}
	if holders[0].ID != leader.ID || holders[1].ID != parent.ID {
		t.Fatalf("expected holders [%d %d], got [%d %d]", leader.ID, parent.ID, holders[0].ID, holders[1].ID)
	}

	// 层数上限截断：深度 2 只收集到领袖
	holders, err = svc.collectUplineSpecial(db, owner, 2)
	if err != nil {
		t.Fatalf("collect upline with depth 2 failed: %v", err)
	}
	if len(holders) != 1 || holders[0].ID != leader.ID {
		t.Fatalf("expected only leader within depth 2, got %+v", holders)
	}

	// 层数上限内无角色命中则为空
	holders, err = svc.collectUplineSpecial(db, owner, 1)
	if err != nil {
		t.Fatalf("collect upline with depth 1 failed: %v", err)
	}
	if len(holders) != 0 {
		t.Fatalf("expected no holders within depth 1, got %d", len(holders))
	}

	// 推荐链成环时终止而不是死循环
	loopA := createCycleTestUser(t, db, "loop-a@example.com", constants.UserRoleMember, nil, 0)
	loopB := createCycleTestUser(t, db, "loop-b@example.com", constants.UserRoleMember, &loopA.ID, 0)
	if err := db.Model(&models.User{}).Where("id = ?", loopA.ID).Update("sponsor_id", loopB.ID).Error; err != nil {
		t.Fatalf("build sponsor loop failed: %v", err)
	}
	loopA.SponsorID = &loopB.ID

	holders, err = svc.collectUplineSpecial(db, loopA, 10)
	if err != nil {
		t.Fatalf("collect upline in loop failed: %v", err)
	}
	if len(holders) != 0 {
		t.Fatalf("expected loop walk to terminate empty, got %d holders", len(holders))
	}
}

func TestHandleSecondCycleCompletePaysEveryRoleHolder(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	// 链路: owner -> leader -> parent，两名角色持有人各得一条奖励
	parent := createCycleTestUser(t, db, "multi-parent@example.com", constants.UserRoleParent, nil, 0)
	leader := createCycleTestUser(t, db, "multi-leader@example.com", constants.UserRoleLeader, &parent.ID, 0)
	owner := createCycleTestUser(t, db, "multi-owner@example.com", constants.UserRoleMember, &leader.ID, 400)
	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 400, &dailyRate)
	purchase := createCycleTestPurchase(t, db, owner.ID, plan.ID, 400)

	if err := svc.HandleSecondCycleComplete(db, purchase, "multi-run"); err != nil {
		t.Fatalf("handle second cycle failed: %v", err)
	}

	var bonuses []models.Commission
	if err := db.Where("purchase_id = ?", purchase.ID).Order("id asc").Find(&bonuses).Error; err != nil {
		t.Fatalf("load bonuses failed: %v", err)
	}
	if len(bonuses) != 2 {
		t.Fatalf("expected 2 bonus commissions, got %d", len(bonuses))
	}
	if bonuses[0].PayeeID != leader.ID || bonuses[0].Type != constants.CommissionTypeLeaderBonus {
		t.Fatalf("expected leader bonus for %d, got payee=%d type=%s", leader.ID, bonuses[0].PayeeID, bonuses[0].Type)
	}
	if bonuses[1].PayeeID != parent.ID || bonuses[1].Type != constants.CommissionTypeParentBonus {
		t.Fatalf("expected parent bonus for %d, got payee=%d type=%s", parent.ID, bonuses[1].PayeeID, bonuses[1].Type)
	}
	for _, bonus := range bonuses {
		if bonus.Amount.Decimal.StringFixed(2) != "20.00" {
			t.Fatalf("expected each bonus 20.00 (5%% of 400), got %s", bonus.Amount.String())
		}
	}

	// 重复触发不追加新记录
	if err := svc.HandleSecondCycleComplete(db, purchase, "multi-run-2"); err != nil {
		t.Fatalf("repeat handle second cycle failed: %v", err)
	}
	var count int64
	if err := db.Model(&models.Commission{}).Where("purchase_id = ?", purchase.ID).Count(&count).Error; err != nil {
		t.Fatalf("count bonuses failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 bonuses after repeat, got %d", count)
	}
}

func TestHandleSecondCycleCompleteParentBonusType(t *testing.T) {
	svc, db := setupCommissionServiceTest(t)

	parent := createCycleTestUser(t, db, "ptype-parent@example.com", constants.UserRoleParent, nil, 0)
	owner := createCycleTestUser(t, db, "ptype-owner@example.com", constants.UserRoleMember, &parent.ID, 300)
	dailyRate := 12.5
	plan := createCycleTestPlan(t, db, 300, &dailyRate)
	purchase := createCycleTestPurchase(t, db, owner.ID, plan.ID, 300)

	if err := svc.HandleSecondCycleComplete(db, purchase, "bonus-run"); err != nil {
		t.Fatalf("handle second cycle failed: %v", err)
	}

	var bonus models.Commission
	if err := db.Where("purchase_id = ?", purchase.ID).First(&bonus).Error; err != nil {
		t.Fatalf("load bonus failed: %v", err)
	}
	if bonus.Type != constants.CommissionTypeParentBonus {
		t.Fatalf("expected parent bonus type, got %s", bonus.Type)
	}
	if bonus.Amount.Decimal.StringFixed(2) != "15.00" {
		t.Fatalf("expected bonus 15.00 (5%% of 300), got %s", bonus.Amount.String())
	}

	// 重复触发由幂等写入吸收
	if err := svc.HandleSecondCycleComplete(db, purchase, "bonus-run-2"); err != nil {
		t.Fatalf("repeat handle second cycle failed: %v", err)
	}
	var count int64
	if err := db.Model(&models.Commission{}).Where("purchase_id = ?", purchase.ID).Count(&count).Error; err != nil {
		t.Fatalf("count bonuses failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected single bonus, got %d", count)
	}
}
