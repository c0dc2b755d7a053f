package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/cyclebit-next/internal/http/response"
	"github.com/cyclebit-next/internal/models"
	"github.com/cyclebit-next/internal/repository"
	"github.com/cyclebit-next/internal/service"
	"github.com/shopspring/decimal"

	"github.com/gin-gonic/gin"
)

// PlanRequest 方案创建/更新请求
type PlanRequest struct {
	Name         string `json:"name"`
	Price        string `json:"price"`
	DailyRate    string `json:"daily_rate"`
	Rate         string `json:"rate"`
	DaysPerCycle int    `json:"days_per_cycle"`
	CyclesTotal  int    `json:"cycles_total"`
	Status       string `json:"status"`
}

func (r PlanRequest) toInput() (service.PlanInput, error) {
	input := service.PlanInput{
		Name:         r.Name,
		DaysPerCycle: r.DaysPerCycle,
		CyclesTotal:  r.CyclesTotal,
		Status:       r.Status,
	}
	if raw := strings.TrimSpace(r.Price); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil || price.IsNegative() {
			return input, errors.New("价格不合法")
		}
		input.Price = models.NewMoneyFromDecimal(price)
	}
	if raw := strings.TrimSpace(r.DailyRate); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil || rate.IsNegative() {
			return input, errors.New("日收益率不合法")
		}
		m := models.NewMoneyFromDecimal(rate)
		input.DailyRate = &m
	}
	if raw := strings.TrimSpace(r.Rate); raw != "" {
		rate, err := decimal.NewFromString(raw)
		if err != nil || rate.IsNegative() {
			return input, errors.New("通用收益率不合法")
		}
		m := models.NewMoneyFromDecimal(rate)
		input.Rate = &m
	}
	return input, nil
}

// ListPlans 查询方案列表
func (h *Handler) ListPlans(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.PlanService.List(repository.PlanListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "方案列表查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// CreatePlan 创建方案
func (h *Handler) CreatePlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Price) == "" {
		respondError(c, response.CodeBadRequest, "方案名称与价格必填", nil)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}

	plan, err := h.PlanService.Create(input)
	if err != nil {
		respondError(c, response.CodeInternal, "方案创建失败", err)
		return
	}
	response.Success(c, plan)
}

// UpdatePlan 更新方案
func (h *Handler) UpdatePlan(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "方案ID不合法", nil)
		return
	}
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, err.Error(), nil)
		return
	}

	plan, err := h.PlanService.Update(uint(id), input)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "方案不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "方案更新失败", err)
		return
	}
	response.Success(c, plan)
}
