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

// ListPurchases 查询认购列表
func (h *Handler) ListPurchases(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	userID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("user_id")), 10, 64)
	planID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("plan_id")), 10, 64)

	rows, total, err := h.PurchaseService.List(repository.PurchaseListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   uint(userID),
		PlanID:   uint(planID),
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "认购列表查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// GetPurchase 查询认购详情
func (h *Handler) GetPurchase(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "认购ID不合法", nil)
		return
	}
	purchase, err := h.PurchaseService.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "认购不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "认购查询失败", err)
		return
	}
	response.Success(c, purchase)
}

// ListPurchaseAccruals 查询认购的日收益记录
func (h *Handler) ListPurchaseAccruals(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "认购ID不合法", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	purchase, err := h.PurchaseService.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "认购不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "认购查询失败", err)
		return
	}
	records, err := h.AccrualRepo.ListByPurchase(purchase.ID, limit)
	if err != nil {
		respondError(c, response.CodeInternal, "收益记录查询失败", err)
		return
	}
	response.Success(c, records)
}

// CreatePurchaseRequest 认购创建请求
type CreatePurchaseRequest struct {
	UserID uint `json:"user_id" binding:"required"`
	PlanID uint `json:"plan_id" binding:"required"`
}

// CreatePurchase 创建认购
func (h *Handler) CreatePurchase(c *gin.Context) {
	var req CreatePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}

	purchase, err := h.PurchaseService.CreatePurchase(c.Request.Context(), service.CreatePurchaseInput{
		UserID: req.UserID,
		PlanID: req.PlanID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondError(c, response.CodeNotFound, "用户或方案不存在", nil)
		case errors.Is(err, service.ErrPlanInactive):
			respondError(c, response.CodeBadRequest, "投资方案不可用", nil)
		case errors.Is(err, service.ErrUserDisabled):
			respondError(c, response.CodeBadRequest, "用户已被禁用", nil)
		default:
			respondError(c, response.CodeInternal, "认购创建失败", err)
		}
		return
	}
	response.Success(c, purchase)
}
