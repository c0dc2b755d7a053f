package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/cyclebit-next/internal/http/response"
	"github.com/cyclebit-next/internal/queue"
	"github.com/cyclebit-next/internal/repository"
	"github.com/cyclebit-next/internal/service"
	"github.com/shopspring/decimal"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EngineRunRequest 批处理触发请求
type EngineRunRequest struct {
	Force bool `json:"force"`
	Sync  bool `json:"sync"` // 同步执行并返回完整报告
}

// RunEngine 触发一次收益周期批处理
//
// 队列可用且未要求同步时走异步任务，立即返回 run_id；
// 否则在请求内同步执行并返回报告。
func (h *Handler) RunEngine(c *gin.Context) {
	// 请求体可省略，全部字段取默认值
	var req EngineRunRequest
	_ = c.ShouldBindJSON(&req)

	runID := uuid.New().String()
	if !req.Sync && h.QueueClient.Enabled() {
		err := h.QueueClient.EnqueueEngineBatchRun(queue.EngineBatchRunPayload{
			RunID: runID,
			Force: req.Force,
		})
		if err != nil {
			respondError(c, response.CodeInternal, "批处理任务入队失败", err)
			return
		}
		response.SuccessWithMsg(c, "批处理已入队", gin.H{"run_id": runID})
		return
	}

	report, err := h.BatchService.Run(c.Request.Context(), runID, req.Force)
	if err != nil {
		respondError(c, response.CodeInternal, "批处理执行失败", err)
		return
	}
	response.Success(c, report)
}

// ProcessPurchaseRequest 单笔认购推进请求
type ProcessPurchaseRequest struct {
	Force        bool   `json:"force"`
	RateOverride string `json:"rate_override"` // 日收益率覆盖值（百分比）
}

// ProcessPurchase 手动推进单笔认购一天
func (h *Handler) ProcessPurchase(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "认购ID不合法", nil)
		return
	}
	var req ProcessPurchaseRequest
	_ = c.ShouldBindJSON(&req)

	var override *decimal.Decimal
	if raw := strings.TrimSpace(req.RateOverride); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || !parsed.IsPositive() {
			respondError(c, response.CodeBadRequest, "收益率覆盖值不合法", err)
			return
		}
		override = &parsed
	}

	result, err := h.CycleService.ProcessPurchase(c.Request.Context(), service.ProcessInput{
		PurchaseID:   uint(id),
		RunID:        "manual-" + uuid.New().String(),
		Force:        req.Force,
		RateOverride: override,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "认购不存在", nil)
		case errors.Is(err, service.ErrRateMissing):
			respondError(c, response.CodeBadRequest, "日收益率缺失", nil)
		default:
			respondError(c, response.CodeInternal, "认购推进失败", err)
		}
		return
	}
	response.Success(c, result)
}

// PoolBonusRequest 池奖励派发请求
type PoolBonusRequest struct {
	PurchaseID  uint `json:"purchase_id" binding:"required"`
	PayeeID     uint `json:"payee_id" binding:"required"`
	CycleNumber int  `json:"cycle_number"`
}

// GrantPoolBonus 管理端派发池奖励
func (h *Handler) GrantPoolBonus(c *gin.Context) {
	var req PoolBonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}

	commission, err := h.CommissionService.EvaluatePoolBonus(
		c.Request.Context(),
		req.PurchaseID,
		req.PayeeID,
		req.CycleNumber,
		"pool-"+uuid.New().String(),
	)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "认购或收款人不存在", nil)
		case errors.Is(err, service.ErrDuplicateCommission):
			// 重复派发是幂等空操作，返回已落账的记录
			response.Success(c, commission)
		default:
			respondError(c, response.CodeInternal, "池奖励派发失败", err)
		}
		return
	}
	response.Success(c, commission)
}

// ListBatchRuns 查询批处理运行记录
func (h *Handler) ListBatchRuns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	rows, total, err := h.BatchService.ListRuns(repository.BatchRunListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		RunID:    strings.TrimSpace(c.Query("run_id")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "批处理记录查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetEngineSetting 查询引擎设置
func (h *Handler) GetEngineSetting(c *gin.Context) {
	setting, err := h.SettingService.GetEngineSetting()
	if err != nil {
		respondError(c, response.CodeInternal, "引擎设置查询失败", err)
		return
	}
	response.Success(c, setting)
}

// UpdateEngineSetting 更新引擎设置
func (h *Handler) UpdateEngineSetting(c *gin.Context) {
	var req service.EngineSetting
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	updated, err := h.SettingService.UpdateEngineSetting(req)
	if err != nil {
		if errors.Is(err, service.ErrEngineConfigInvalid) {
			respondError(c, response.CodeBadRequest, err.Error(), nil)
			return
		}
		respondError(c, response.CodeInternal, "引擎设置保存失败", err)
		return
	}
	response.Success(c, updated)
}
