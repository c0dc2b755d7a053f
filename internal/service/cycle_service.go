package service

import (
	"context"
	"errors"
	"time"

	"github.com/cyclebit-next/internal/cache"
	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/logger"
	"github.com/cyclebit-next/internal/models"
	"github.com/cyclebit-next/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 状态推进期望天数不匹配，说明另一并发处理已推进该认购
var errConcurrentAdvance = errors.New("认购状态已被并发推进")

// CycleService 收益周期推进服务
//
// 每次调用推进一个认购一天：收益日落账一条日收益记录，
// 暂停日仅消费天序不落账。周期里程碑在落账后按收益记录数检测，
// 完成标记单向翻转，佣金派发只挂在翻转成功的那一次上。
type CycleService struct {
	purchaseRepo      repository.PurchaseRepository
	stateRepo         repository.SubscriptionStateRepository
	accrualRepo       repository.AccrualRepository
	planRepo          repository.PlanRepository
	commissionService *CommissionService
	settingService    *SettingService
}

// NewCycleService 创建收益周期推进服务
func NewCycleService(
	purchaseRepo repository.PurchaseRepository,
	stateRepo repository.SubscriptionStateRepository,
	accrualRepo repository.AccrualRepository,
	planRepo repository.PlanRepository,
	commissionService *CommissionService,
	settingService *SettingService,
) *CycleService {
	return &CycleService{
		purchaseRepo:      purchaseRepo,
		stateRepo:         stateRepo,
		accrualRepo:       accrualRepo,
		planRepo:          planRepo,
		commissionService: commissionService,
		settingService:    settingService,
	}
}

// ProcessInput 单笔认购处理输入
type ProcessInput struct {
	PurchaseID   uint
	RunID        string
	Force        bool             // 忽略到期时间强制推进
	RateOverride *decimal.Decimal // 日收益率覆盖值（百分比）
}

// ProcessResult 单笔认购处理结果
type ProcessResult struct {
	PurchaseID  uint         `json:"purchase_id"`
	Outcome     string       `json:"outcome"`
	SkipReason  string       `json:"skip_reason,omitempty"`
	Amount      models.Money `json:"amount"`
	CycleNumber int          `json:"cycle_number"`
	DayInCycle  int          `json:"day_in_cycle"`
	Message     string       `json:"message,omitempty"`
}

// ProcessPurchase 推进认购一天
func (s *CycleService) ProcessPurchase(ctx context.Context, input ProcessInput) (*ProcessResult, error) {
	purchase, err := s.purchaseRepo.GetByID(input.PurchaseID)
	if err != nil {
		return nil, err
	}
	if purchase == nil {
		return nil, ErrNotFound
	}

	result := &ProcessResult{PurchaseID: purchase.ID}
	switch purchase.Status {
	case constants.PurchaseStatusActive:
	case constants.PurchaseStatusCompleted:
		// 终态认购重复处理是无害空操作
		result.Outcome = constants.ProcessOutcomeSkipped
		result.SkipReason = constants.SkipReasonCompleted
		return result, nil
	default:
		result.Outcome = constants.ProcessOutcomeSkipped
		result.SkipReason = constants.SkipReasonNotActive
		return result, nil
	}

	now := time.Now()
	state := purchase.State
	if state == nil {
		state = &models.SubscriptionState{
			PurchaseID:  purchase.ID,
			CurrentDay:  1,
			NextDueDate: now,
		}
		if err := s.stateRepo.Create(state); err != nil {
			return nil, err
		}
	}
	if !input.Force && state.NextDueDate.After(now) {
		result.Outcome = constants.ProcessOutcomeSkipped
		result.SkipReason = constants.SkipReasonNotDue
		return result, nil
	}

	setting, err := s.settingService.GetEngineSetting()
	if err != nil {
		return nil, err
	}
	daysPerCycle := purchase.Plan.DaysPerCycle
	if daysPerCycle <= 0 {
		daysPerCycle = setting.DaysPerCycle
	}
	cyclesTotal := purchase.Plan.CyclesTotal
	if cyclesTotal <= 0 {
		cyclesTotal = setting.CyclesTotal
	}

	// 周期由 daysPerCycle 个收益日加 1 个暂停日组成
	periodLen := daysPerCycle + 1
	day := state.CurrentDay
	dayInCycle := ((day - 1) % periodLen) + 1
	cycleNumber := (day-1)/periodLen + 1
	result.CycleNumber = cycleNumber
	result.DayInCycle = dayInCycle

	nextDue := now.Add(24 * time.Hour)
	if dayInCycle == periodLen {
		return s.consumePauseDay(result, purchase, day, cycleNumber, cyclesTotal, nextDue)
	}

	rate, err := ResolveDailyRate(&purchase.Plan, input.RateOverride, setting.DefaultDailyRate)
	if err != nil {
		result.Outcome = constants.ProcessOutcomeError
		result.Message = err.Error()
		return result, err
	}
	amount := models.NewMoneyFromDecimal(ApplyRatePercent(purchase.BaseAmount.Decimal, rate))

	err = s.purchaseRepo.Transaction(func(tx *gorm.DB) error {
		rows, err := s.stateRepo.WithTx(tx).Advance(purchase.ID, day, map[string]interface{}{
			"current_day":   day + 1,
			"is_paused":     dayInCycle == daysPerCycle,
			"next_due_date": nextDue,
			"total_accrued": gorm.Expr("total_accrued + ?", amount),
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return errConcurrentAdvance
		}

		record := &models.AccrualRecord{
			PurchaseID:  purchase.ID,
			UserID:      purchase.UserID,
			Amount:      amount,
			CycleNumber: cycleNumber,
			DayInCycle:  dayInCycle,
			CompletedAt: now,
		}
		if err := s.accrualRepo.WithTx(tx).Create(record); err != nil {
			return err
		}

		count, err := s.accrualRepo.WithTx(tx).CountByPurchase(purchase.ID)
		if err != nil {
			return err
		}
		return s.detectMilestones(tx, purchase, count, daysPerCycle, cyclesTotal, input.RunID)
	})
	if err != nil {
		if errors.Is(err, errConcurrentAdvance) {
			result.Outcome = constants.ProcessOutcomeSkipped
			result.SkipReason = constants.SkipReasonAlreadyToday
			return result, nil
		}
		result.Outcome = constants.ProcessOutcomeError
		result.Message = err.Error()
		return result, err
	}

	result.Outcome = constants.ProcessOutcomeAccrued
	result.Amount = amount
	s.invalidateEarnings(ctx, purchase.UserID)
	logger.Infow("purchase_accrued",
		"purchase_id", purchase.ID,
		"user_id", purchase.UserID,
		"cycle_number", cycleNumber,
		"day_in_cycle", dayInCycle,
		"amount", amount.String(),
		"run_id", input.RunID,
	)
	return result, nil
}

// consumePauseDay 消费暂停日，只推进天序不落账
//
// 周期计数在暂停日消费后才递增；末周期的暂停日消费后认购转入终态。
func (s *CycleService) consumePauseDay(result *ProcessResult, purchase *models.Purchase, day, cycleNumber, cyclesTotal int, nextDue time.Time) (*ProcessResult, error) {
	status := ""
	if cycleNumber >= cyclesTotal {
		status = constants.PurchaseStatusCompleted
	}
	err := s.purchaseRepo.Transaction(func(tx *gorm.DB) error {
		rows, err := s.stateRepo.WithTx(tx).Advance(purchase.ID, day, map[string]interface{}{
			"current_day":   day + 1,
			"is_paused":     false,
			"next_due_date": nextDue,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return errConcurrentAdvance
		}
		return s.purchaseRepo.WithTx(tx).UpdateProgress(purchase.ID, cycleNumber, status)
	})
	if err != nil {
		if errors.Is(err, errConcurrentAdvance) {
			result.Outcome = constants.ProcessOutcomeSkipped
			result.SkipReason = constants.SkipReasonAlreadyToday
			return result, nil
		}
		result.Outcome = constants.ProcessOutcomeError
		result.Message = err.Error()
		return result, err
	}
	result.Outcome = constants.ProcessOutcomePauseDay
	if status != "" {
		logger.Infow("purchase_completed",
			"purchase_id", purchase.ID,
			"cycles_completed", cycleNumber,
		)
	}
	logger.Debugw("purchase_pause_day_consumed",
		"purchase_id", purchase.ID,
		"cycle_number", cycleNumber,
	)
	return result, nil
}

// detectMilestones 按累计收益记录数检测里程碑并派发佣金
func (s *CycleService) detectMilestones(tx *gorm.DB, purchase *models.Purchase, count int64, daysPerCycle, cyclesTotal int, runID string) error {
	purchaseRepo := s.purchaseRepo.WithTx(tx)

	if count >= int64(daysPerCycle) {
		rows, err := purchaseRepo.MarkFirstCycleCompleted(purchase.ID)
		if err != nil {
			return err
		}
		if rows > 0 {
			logger.Infow("first_cycle_milestone",
				"purchase_id", purchase.ID,
				"user_id", purchase.UserID,
				"run_id", runID,
			)
			if err := s.commissionService.HandleFirstCycleComplete(tx, purchase, daysPerCycle, runID); err != nil {
				return err
			}
		}
	}

	// 第二周期里程碑要求恰好达到第二周期最后一个收益日
	if cyclesTotal >= 2 && count == int64(daysPerCycle*2) {
		rows, err := purchaseRepo.MarkSecondCycleCompleted(purchase.ID)
		if err != nil {
			return err
		}
		if rows > 0 {
			logger.Infow("second_cycle_milestone",
				"purchase_id", purchase.ID,
				"user_id", purchase.UserID,
				"run_id", runID,
			)
			if err := s.commissionService.HandleSecondCycleComplete(tx, purchase, runID); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *CycleService) invalidateEarnings(ctx context.Context, userID uint) {
	if userID == 0 {
		return
	}
	if err := cache.Del(ctx, cache.EarningsKey(userID)); err != nil {
		logger.Warnw("earnings_cache_invalidate_failed", "user_id", userID, "error", err)
	}
}
