package service

import (
	"context"
	"time"

	"github.com/cyclebit-next/internal/cache"
	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/logger"
	"github.com/cyclebit-next/internal/models"
	"github.com/cyclebit-next/internal/repository"
)

// 收益摘要缓存有效期
const earningsCacheTTL = 5 * time.Minute

// EarningsSummary 用户收益摘要
type EarningsSummary struct {
	UserID              uint         `json:"user_id"`
	TotalInvested       models.Money `json:"total_invested"`
	TotalAccrued        models.Money `json:"total_accrued"`
	PendingCommission   models.Money `json:"pending_commission"`
	PaidCommission      models.Money `json:"paid_commission"`
	CancelledCommission models.Money `json:"cancelled_commission"`
}

// EarningsService 用户收益查询服务
type EarningsService struct {
	userRepo       repository.UserRepository
	accrualRepo    repository.AccrualRepository
	commissionRepo repository.CommissionRepository
}

// NewEarningsService 创建收益查询服务
func NewEarningsService(
	userRepo repository.UserRepository,
	accrualRepo repository.AccrualRepository,
	commissionRepo repository.CommissionRepository,
) *EarningsService {
	return &EarningsService{
		userRepo:       userRepo,
		accrualRepo:    accrualRepo,
		commissionRepo: commissionRepo,
	}
}

// GetUserEarnings 查询用户收益摘要（缓存优先）
func (s *EarningsService) GetUserEarnings(ctx context.Context, userID uint) (*EarningsSummary, error) {
	cacheKey := cache.EarningsKey(userID)
	var cached EarningsSummary
	hit, err := cache.GetJSON(ctx, cacheKey, &cached)
	if err != nil {
		logger.Warnw("earnings_cache_read_failed", "user_id", userID, "error", err)
	}
	if hit {
		return &cached, nil
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}

	accrued, err := s.accrualRepo.SumByUser(userID)
	if err != nil {
		return nil, err
	}
	pending, err := s.commissionRepo.SumByPayee(userID, []string{constants.CommissionStatusPending})
	if err != nil {
		return nil, err
	}
	paid, err := s.commissionRepo.SumByPayee(userID, []string{constants.CommissionStatusPaid})
	if err != nil {
		return nil, err
	}
	cancelled, err := s.commissionRepo.SumByPayee(userID, []string{constants.CommissionStatusCancelled})
	if err != nil {
		return nil, err
	}

	summary := &EarningsSummary{
		UserID:              user.ID,
		TotalInvested:       user.TotalInvested,
		TotalAccrued:        models.NewMoneyFromDecimal(accrued),
		PendingCommission:   models.NewMoneyFromDecimal(pending),
		PaidCommission:      models.NewMoneyFromDecimal(paid),
		CancelledCommission: models.NewMoneyFromDecimal(cancelled),
	}
	if err := cache.SetJSON(ctx, cacheKey, summary, earningsCacheTTL); err != nil {
		logger.Warnw("earnings_cache_write_failed", "user_id", userID, "error", err)
	}
	return summary, nil
}
