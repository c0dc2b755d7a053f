package service

import (
	"strings"

	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/models"
	"github.com/cyclebit-next/internal/repository"
)

// PlanService 投资方案业务服务
type PlanService struct {
	planRepo repository.PlanRepository
}

// NewPlanService 创建投资方案服务
func NewPlanService(planRepo repository.PlanRepository) *PlanService {
	return &PlanService{planRepo: planRepo}
}

// PlanInput 方案创建/更新输入
type PlanInput struct {
	Name         string
	Price        models.Money
	DailyRate    *models.Money
	Rate         *models.Money
	DaysPerCycle int
	CyclesTotal  int
	Status       string
}

// Create 创建方案
func (s *PlanService) Create(input PlanInput) (*models.Plan, error) {
	plan := &models.Plan{
		Name:         strings.TrimSpace(input.Name),
		Price:        input.Price,
		DailyRate:    input.DailyRate,
		Rate:         input.Rate,
		DaysPerCycle: input.DaysPerCycle,
		CyclesTotal:  input.CyclesTotal,
		Status:       strings.TrimSpace(input.Status),
	}
	if plan.DaysPerCycle <= 0 {
		plan.DaysPerCycle = 8
	}
	if plan.CyclesTotal <= 0 {
		plan.CyclesTotal = 2
	}
	if plan.Status == "" {
		plan.Status = constants.PlanStatusActive
	}
	if err := s.planRepo.Create(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// Update 更新方案
func (s *PlanService) Update(id uint, input PlanInput) (*models.Plan, error) {
	plan, err := s.planRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrNotFound
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		plan.Name = name
	}
	if input.Price.Decimal.IsPositive() {
		plan.Price = input.Price
	}
	if input.DailyRate != nil {
		plan.DailyRate = input.DailyRate
	}
	if input.Rate != nil {
		plan.Rate = input.Rate
	}
	if input.DaysPerCycle > 0 {
		plan.DaysPerCycle = input.DaysPerCycle
	}
	if input.CyclesTotal > 0 {
		plan.CyclesTotal = input.CyclesTotal
	}
	if status := strings.TrimSpace(input.Status); status != "" {
		plan.Status = status
	}
	if err := s.planRepo.Update(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// GetByID 查询方案详情
func (s *PlanService) GetByID(id uint) (*models.Plan, error) {
	plan, err := s.planRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrNotFound
	}
	return plan, nil
}

// List 查询方案列表
func (s *PlanService) List(filter repository.PlanListFilter) ([]models.Plan, int64, error) {
	return s.planRepo.List(filter)
}
