package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupPurchaseRepositoryTest(t *testing.T) (*GormPurchaseRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:purchase_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Plan{}, &models.Purchase{}, &models.SubscriptionState{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewPurchaseRepository(db), db
}

func createTestPurchaseWithState(t *testing.T, db *gorm.DB, status string, nextDue time.Time) *models.Purchase {
	t.Helper()
	purchase := &models.Purchase{
		UserID:     1,
		PlanID:     1,
		BaseAmount: models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		Status:     status,
	}
	if err := db.Create(purchase).Error; err != nil {
		t.Fatalf("create purchase failed: %v", err)
	}
	state := &models.SubscriptionState{
		PurchaseID:  purchase.ID,
		CurrentDay:  1,
		NextDueDate: nextDue,
	}
	if err := db.Create(state).Error; err != nil {
		t.Fatalf("create state failed: %v", err)
	}
	return purchase
}

func TestMarkCycleCompletedFlipsOnce(t *testing.T) {
	repo, db := setupPurchaseRepositoryTest(t)
	purchase := createTestPurchaseWithState(t, db, constants.PurchaseStatusActive, time.Now())

	rows, err := repo.MarkFirstCycleCompleted(purchase.ID)
	if err != nil {
		t.Fatalf("mark first cycle failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected first flip to affect 1 row, got %d", rows)
	}

	// 已翻转的标记再次翻转不命中任何行
	rows, err = repo.MarkFirstCycleCompleted(purchase.ID)
	if err != nil {
		t.Fatalf("re-mark first cycle failed: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected second flip to affect 0 rows, got %d", rows)
	}

	rows, err = repo.MarkSecondCycleCompleted(purchase.ID)
	if err != nil {
		t.Fatalf("mark second cycle failed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected second cycle flip to affect 1 row, got %d", rows)
	}
	rows, err = repo.MarkSecondCycleCompleted(purchase.ID)
	if err != nil {
		t.Fatalf("re-mark second cycle failed: %v", err)
	}
	if rows != 0 {
		t.Fatalf("expected repeat flip to affect 0 rows, got %d", rows)
	}
}

func TestListDueIDs(t *testing.T) {
	repo, db := setupPurchaseRepositoryTest(t)
	now := time.Now()

	due := createTestPurchaseWithState(t, db, constants.PurchaseStatusActive, now.Add(-time.Hour))
	notDue := createTestPurchaseWithState(t, db, constants.PurchaseStatusActive, now.Add(time.Hour))
	createTestPurchaseWithState(t, db, constants.PurchaseStatusCompleted, now.Add(-time.Hour))

	ids, err := repo.ListDueIDs(now, false)
	if err != nil {
		t.Fatalf("list due ids failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != due.ID {
		t.Fatalf("expected only purchase %d due, got %v", due.ID, ids)
	}

	// 强制模式忽略到期时间但仍排除终态认购
	forced, err := repo.ListDueIDs(now, true)
	if err != nil {
		t.Fatalf("list forced ids failed: %v", err)
	}
	if len(forced) != 2 {
		t.Fatalf("expected 2 active purchases in forced mode, got %v", forced)
	}
	if forced[0] != due.ID || forced[1] != notDue.ID {
		t.Fatalf("expected ascending ids [%d %d], got %v", due.ID, notDue.ID, forced)
	}
}

func TestUpdateProgress(t *testing.T) {
	repo, db := setupPurchaseRepositoryTest(t)
	purchase := createTestPurchaseWithState(t, db, constants.PurchaseStatusActive, time.Now())

	if err := repo.UpdateProgress(purchase.ID, 1, ""); err != nil {
		t.Fatalf("update progress failed: %v", err)
	}
	var reloaded models.Purchase
	if err := db.First(&reloaded, purchase.ID).Error; err != nil {
		t.Fatalf("reload purchase failed: %v", err)
	}
	if reloaded.CyclesCompleted != 1 {
		t.Fatalf("expected 1 cycle completed, got %d", reloaded.CyclesCompleted)
	}
	if reloaded.Status != constants.PurchaseStatusActive {
		t.Fatalf("expected status unchanged, got %s", reloaded.Status)
	}

	if err := repo.UpdateProgress(purchase.ID, 2, constants.PurchaseStatusCompleted); err != nil {
		t.Fatalf("update progress with status failed: %v", err)
	}
	if err := db.First(&reloaded, purchase.ID).Error; err != nil {
		t.Fatalf("reload purchase failed: %v", err)
	}
	if reloaded.CyclesCompleted != 2 || reloaded.Status != constants.PurchaseStatusCompleted {
		t.Fatalf("expected completed with 2 cycles, got %s/%d", reloaded.Status, reloaded.CyclesCompleted)
	}
}
