package service

import (
	"context"
	"time"

	"github.com/cyclebit-next/internal/cache"
	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/logger"
	"github.com/cyclebit-next/internal/models"
	"github.com/cyclebit-next/internal/repository"
	"gorm.io/gorm"
)

// PurchaseService 认购业务服务
type PurchaseService struct {
	purchaseRepo repository.PurchaseRepository
	stateRepo    repository.SubscriptionStateRepository
	planRepo     repository.PlanRepository
	userRepo     repository.UserRepository
}

// NewPurchaseService 创建认购服务
func NewPurchaseService(
	purchaseRepo repository.PurchaseRepository,
	stateRepo repository.SubscriptionStateRepository,
	planRepo repository.PlanRepository,
	userRepo repository.UserRepository,
) *PurchaseService {
	return &PurchaseService{
		purchaseRepo: purchaseRepo,
		stateRepo:    stateRepo,
		planRepo:     planRepo,
		userRepo:     userRepo,
	}
}

// CreatePurchaseInput 认购创建输入
type CreatePurchaseInput struct {
	UserID uint
	PlanID uint
}

// CreatePurchase 创建认购并立即激活，同步初始化周期推进状态
func (s *PurchaseService) CreatePurchase(ctx context.Context, input CreatePurchaseInput) (*models.Purchase, error) {
	user, err := s.userRepo.GetByID(input.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if user.Status != constants.UserStatusActive {
		return nil, ErrUserDisabled
	}
	plan, err := s.planRepo.GetByID(input.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrNotFound
	}
	if plan.Status != constants.PlanStatusActive {
		return nil, ErrPlanInactive
	}

	purchase := &models.Purchase{
		UserID:     user.ID,
		PlanID:     plan.ID,
		BaseAmount: plan.Price,
		Status:     constants.PurchaseStatusActive,
	}
	err = s.purchaseRepo.Transaction(func(tx *gorm.DB) error {
		if err := s.purchaseRepo.WithTx(tx).Create(purchase); err != nil {
			return err
		}
		state := &models.SubscriptionState{
			PurchaseID:  purchase.ID,
			CurrentDay:  1,
			NextDueDate: time.Now(),
		}
		if err := s.stateRepo.WithTx(tx).Create(state); err != nil {
			return err
		}
		return s.userRepo.WithTx(tx).AddTotalInvested(user.ID, plan.Price)
	})
	if err != nil {
		return nil, err
	}

	if err := cache.Del(ctx, cache.EarningsKey(user.ID)); err != nil {
		logger.Warnw("earnings_cache_invalidate_failed", "user_id", user.ID, "error", err)
	}
	logger.Infow("purchase_created",
		"purchase_id", purchase.ID,
		"user_id", user.ID,
		"plan_id", plan.ID,
		"base_amount", purchase.BaseAmount.String(),
	)
	return s.GetByID(purchase.ID)
}

// GetByID 查询认购详情
func (s *PurchaseService) GetByID(id uint) (*models.Purchase, error) {
	purchase, err := s.purchaseRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, ErrNotFound
	}
	return purchase, nil
}

// List 查询认购列表
func (s *PurchaseService) List(filter repository.PurchaseListFilter) ([]models.Purchase, int64, error) {
	return s.purchaseRepo.List(filter)
}
