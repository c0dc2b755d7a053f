package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/cyclebit-next/internal/http/response"
	"github.com/cyclebit-next/internal/repository"
	"github.com/cyclebit-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListCommissions 查询佣金列表
func (h *Handler) ListCommissions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	payeeID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("payee_id")), 10, 64)
	sourceUserID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("source_user_id")), 10, 64)
	purchaseID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("purchase_id")), 10, 64)

	rows, total, err := h.CommissionService.List(repository.CommissionListFilter{
		Page:         page,
		PageSize:     pageSize,
		PayeeID:      uint(payeeID),
		SourceUserID: uint(sourceUserID),
		PurchaseID:   uint(purchaseID),
		Type:         strings.TrimSpace(c.Query("type")),
		Status:       strings.TrimSpace(c.Query("status")),
		TriggerKind:  strings.TrimSpace(c.Query("trigger_kind")),
		RunID:        strings.TrimSpace(c.Query("run_id")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "佣金列表查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetCommission 查询佣金详情
func (h *Handler) GetCommission(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "佣金ID不合法", nil)
		return
	}
	commission, err := h.CommissionService.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "佣金记录不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "佣金查询失败", err)
		return
	}
	response.Success(c, commission)
}

// CancelCommissionRequest 佣金取消请求
type CancelCommissionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CancelCommission 取消待结算佣金
func (h *Handler) CancelCommission(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "佣金ID不合法", nil)
		return
	}
	var req CancelCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}

	commission, err := h.CommissionService.CancelCommission(c.Request.Context(), uint(id), req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "佣金记录不存在", nil)
		case errors.Is(err, service.ErrCommissionStatusInvalid):
			respondError(c, response.CodeConflict, "佣金状态不允许取消", nil)
		default:
			respondError(c, response.CodeInternal, "佣金取消失败", err)
		}
		return
	}
	response.Success(c, commission)
}
