package service

import (
	"context"
	"strings"

	"github.com/cyclebit-next/internal/cache"
	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/logger"
	"github.com/cyclebit-next/internal/models"
	"github.com/cyclebit-next/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionService 佣金业务服务
type CommissionService struct {
	commissionRepo repository.CommissionRepository
	userRepo       repository.UserRepository
	accrualRepo    repository.AccrualRepository
	purchaseRepo   repository.PurchaseRepository
	settingService *SettingService
}

// NewCommissionService 创建佣金服务
func NewCommissionService(
	commissionRepo repository.CommissionRepository,
	userRepo repository.UserRepository,
	accrualRepo repository.AccrualRepository,
	purchaseRepo repository.PurchaseRepository,
	settingService *SettingService,
) *CommissionService {
	return &CommissionService{
		commissionRepo: commissionRepo,
		userRepo:       userRepo,
		accrualRepo:    accrualRepo,
		purchaseRepo:   purchaseRepo,
		settingService: settingService,
	}
}

// HandleFirstCycleComplete 首周期完成，向直接推荐人派发直推佣金
//
// 基数为该认购首周期全部日收益之和，daysPerCycle 为调用方解析后的
// 周期收益天数（方案优先）。持有人无推荐人时静默跳过。
// 在调用方事务内执行，重复触发由幂等写入吸收。
func (s *CommissionService) HandleFirstCycleComplete(tx *gorm.DB, purchase *models.Purchase, daysPerCycle int, runID string) error {
	if purchase == nil {
		return nil
	}
	owner, err := s.userRepo.WithTx(tx).GetByID(purchase.UserID)
	if err != nil {
		return err
	}
	if owner == nil {
		return ErrNotFound
	}
	if owner.SponsorID == nil || *owner.SponsorID == 0 {
		logger.Infow("direct_referral_skipped_no_sponsor",
			"purchase_id", purchase.ID,
			"user_id", owner.ID,
			"run_id", runID,
		)
		return nil
	}

	setting, err := s.settingService.GetEngineSetting()
	if err != nil {
		return err
	}
	if daysPerCycle <= 0 {
		daysPerCycle = setting.DaysPerCycle
	}
	base, err := s.accrualRepo.WithTx(tx).SumFirstN(purchase.ID, daysPerCycle)
	if err != nil {
		return err
	}
	rate := decimal.NewFromFloat(setting.DirectReferralRate)

	commission := &models.Commission{
		Type:         constants.CommissionTypeDirectReferral,
		PayeeID:      *owner.SponsorID,
		SourceUserID: owner.ID,
		PurchaseID:   purchase.ID,
		CycleNumber:  1,
		BaseAmount:   models.NewMoneyFromDecimal(base),
		RatePercent:  models.NewMoneyFromDecimal(rate),
		Amount:       models.NewMoneyFromDecimal(ApplyRatePercent(base, rate)),
		Currency:     constants.DefaultCurrency,
		Status:       constants.CommissionStatusPending,
		TriggerKind:  constants.CommissionTriggerFirstCycle,
		RunID:        runID,
	}
	return s.createIdempotent(tx, commission)
}

// HandleSecondCycleComplete 第二周期完成，沿推荐链向限定层数内的全部领袖/上级派发奖励
//
// 每名领袖/上级各派发一条，基数为持有人累计投入金额。
// 链上限定层数内无领袖/上级时静默跳过。
func (s *CommissionService) HandleSecondCycleComplete(tx *gorm.DB, purchase *models.Purchase, runID string) error {
	if purchase == nil {
		return nil
	}
	owner, err := s.userRepo.WithTx(tx).GetByID(purchase.UserID)
	if err != nil {
		return err
	}
	if owner == nil {
		return ErrNotFound
	}

	setting, err := s.settingService.GetEngineSetting()
	if err != nil {
		return err
	}
	payees, err := s.collectUplineSpecial(tx, owner, setting.SponsorWalkDepth)
	if err != nil {
		return err
	}
	if len(payees) == 0 {
		logger.Infow("special_bonus_skipped_no_upline",
			"purchase_id", purchase.ID,
			"user_id", owner.ID,
			"run_id", runID,
		)
		return nil
	}

	base := owner.TotalInvested.Decimal
	rate := decimal.NewFromFloat(setting.SpecialBonusRate)
	for _, payee := range payees {
		commissionType := constants.CommissionTypeLeaderBonus
		if payee.Role == constants.UserRoleParent {
			commissionType = constants.CommissionTypeParentBonus
		}
		commission := &models.Commission{
			Type:         commissionType,
			PayeeID:      payee.ID,
			SourceUserID: owner.ID,
			PurchaseID:   purchase.ID,
			CycleNumber:  2,
			BaseAmount:   models.NewMoneyFromDecimal(base),
			RatePercent:  models.NewMoneyFromDecimal(rate),
			Amount:       models.NewMoneyFromDecimal(ApplyRatePercent(base, rate)),
			Currency:     constants.DefaultCurrency,
			Status:       constants.CommissionStatusPending,
			TriggerKind:  constants.CommissionTriggerSecondCycle,
			RunID:        runID,
		}
		if err := s.createIdempotent(tx, commission); err != nil {
			return err
		}
	}
	return nil
}

// EvaluatePoolBonus 管理端触发池奖励，同一认购同一周期至多派发一次
func (s *CommissionService) EvaluatePoolBonus(ctx context.Context, purchaseID, payeeID uint, cycleNumber int, runID string) (*models.Commission, error) {
	purchase, err := s.purchaseRepo.GetByID(purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, ErrNotFound
	}
	payee, err := s.userRepo.GetByID(payeeID)
	if err != nil {
		return nil, err
	}
	if payee == nil {
		return nil, ErrNotFound
	}
	if cycleNumber < 1 {
		cycleNumber = 1
	}

	// 池奖励的业务键不含收款人，先查同认购同周期是否已派发
	existing, err := s.commissionRepo.GetByTypeAndCycle(constants.CommissionTypePoolBonus, purchase.ID, cycleNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, ErrDuplicateCommission
	}

	setting, err := s.settingService.GetEngineSetting()
	if err != nil {
		return nil, err
	}
	base := purchase.BaseAmount.Decimal
	rate := decimal.NewFromFloat(setting.PoolRate)

	commission := &models.Commission{
		Type:         constants.CommissionTypePoolBonus,
		PayeeID:      payee.ID,
		SourceUserID: purchase.UserID,
		PurchaseID:   purchase.ID,
		CycleNumber:  cycleNumber,
		BaseAmount:   models.NewMoneyFromDecimal(base),
		RatePercent:  models.NewMoneyFromDecimal(rate),
		Amount:       models.NewMoneyFromDecimal(ApplyRatePercent(base, rate)),
		Currency:     constants.DefaultCurrency,
		Status:       constants.CommissionStatusPending,
		TriggerKind:  constants.CommissionTriggerAdminPool,
		RunID:        strings.TrimSpace(runID),
	}
	if err := s.commissionRepo.Create(commission); err != nil {
		if isUniqueViolation(err) {
			// 并发派发输掉唯一索引竞争，返回已落账的记录
			existing, lookupErr := s.commissionRepo.GetByTypeAndCycle(constants.CommissionTypePoolBonus, purchase.ID, cycleNumber)
			if lookupErr != nil {
				return nil, lookupErr
			}
			return existing, ErrDuplicateCommission
		}
		return nil, err
	}
	s.invalidateEarnings(ctx, commission.PayeeID)
	return commission, nil
}

// CancelCommission 取消待结算佣金，已结算佣金不允许取消
func (s *CommissionService) CancelCommission(ctx context.Context, id uint, reason string) (*models.Commission, error) {
	var cancelled *models.Commission
	err := s.commissionRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.commissionRepo.WithTx(tx)
		commission, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if commission == nil {
			return ErrNotFound
		}
		switch commission.Status {
		case constants.CommissionStatusPending:
		case constants.CommissionStatusCancelled:
			cancelled = commission
			return nil
		default:
			return ErrCommissionStatusInvalid
		}
		if err := repo.UpdateStatus(id, constants.CommissionStatusCancelled, reason); err != nil {
			return err
		}
		cancelled, err = repo.GetByID(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.invalidateEarnings(ctx, cancelled.PayeeID)
	return cancelled, nil
}

// List 查询佣金列表
func (s *CommissionService) List(filter repository.CommissionListFilter) ([]models.Commission, int64, error) {
	return s.commissionRepo.List(filter)
}

// GetByID 查询佣金详情
func (s *CommissionService) GetByID(id uint) (*models.Commission, error) {
	commission, err := s.commissionRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if commission == nil {
		return nil, ErrNotFound
	}
	return commission, nil
}

// collectUplineSpecial 沿推荐链上行收集限定层数内的全部领袖/上级用户
func (s *CommissionService) collectUplineSpecial(tx *gorm.DB, owner *models.User, maxDepth int) ([]*models.User, error) {
	repo := s.userRepo.WithTx(tx)
	current := owner
	seen := map[uint]struct{}{owner.ID: {}}
	var holders []*models.User
	for depth := 0; depth < maxDepth; depth++ {
		if current.SponsorID == nil || *current.SponsorID == 0 {
			return holders, nil
		}
		next, err := repo.GetByID(*current.SponsorID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return holders, nil
		}
		// 推荐链成环时终止
		if _, ok := seen[next.ID]; ok {
			return holders, nil
		}
		seen[next.ID] = struct{}{}
		if next.Role == constants.UserRoleLeader || next.Role == constants.UserRoleParent {
			holders = append(holders, next)
		}
		current = next
	}
	return holders, nil
}

// createIdempotent 幂等写入佣金，自然键已存在视为成功
func (s *CommissionService) createIdempotent(tx *gorm.DB, commission *models.Commission) error {
	repo := s.commissionRepo.WithTx(tx)
	existing, err := repo.GetByNaturalKey(
		commission.Type,
		commission.PayeeID,
		commission.SourceUserID,
		commission.PurchaseID,
		commission.CycleNumber,
	)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Debugw("commission_already_exists",
			"type", commission.Type,
			"purchase_id", commission.PurchaseID,
			"payee_id", commission.PayeeID,
			"cycle_number", commission.CycleNumber,
		)
		return nil
	}
	if err := repo.Create(commission); err != nil {
		if isUniqueViolation(err) {
			logger.Debugw("commission_duplicate_insert_absorbed",
				"type", commission.Type,
				"purchase_id", commission.PurchaseID,
				"payee_id", commission.PayeeID,
				"cycle_number", commission.CycleNumber,
			)
			return nil
		}
		return err
	}
	logger.Infow("commission_created",
		"type", commission.Type,
		"purchase_id", commission.PurchaseID,
		"payee_id", commission.PayeeID,
		"source_user_id", commission.SourceUserID,
		"cycle_number", commission.CycleNumber,
		"amount", commission.Amount.String(),
		"run_id", commission.RunID,
	)
	return nil
}

func (s *CommissionService) invalidateEarnings(ctx context.Context, userID uint) {
	if userID == 0 {
		return
	}
	if err := cache.Del(ctx, cache.EarningsKey(userID)); err != nil {
		logger.Warnw("earnings_cache_invalidate_failed", "user_id", userID, "error", err)
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
