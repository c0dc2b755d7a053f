package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/http/response"
	"github.com/cyclebit-next/internal/models"
	"github.com/cyclebit-next/internal/repository"
	"github.com/cyclebit-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListUsers 查询用户列表
func (h *Handler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)
	sponsorID, _ := strconv.ParseUint(strings.TrimSpace(c.Query("sponsor_id")), 10, 64)

	rows, total, err := h.UserRepo.List(repository.UserListFilter{
		Page:      page,
		PageSize:  pageSize,
		Status:    strings.TrimSpace(c.Query("status")),
		Role:      strings.TrimSpace(c.Query("role")),
		SponsorID: uint(sponsorID),
		Search:    strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "用户列表查询失败", err)
		return
	}
	response.SuccessWithPage(c, rows, response.BuildPagination(page, pageSize, total))
}

// CreateUserRequest 用户创建请求
type CreateUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name"`
	SponsorID   *uint  `json:"sponsor_id"`
	Role        string `json:"role"`
}

// CreateUser 创建用户
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数不合法", err)
		return
	}
	role := strings.TrimSpace(req.Role)
	switch role {
	case "":
		role = constants.UserRoleMember
	case constants.UserRoleMember, constants.UserRoleLeader, constants.UserRoleParent:
	default:
		respondError(c, response.CodeBadRequest, "用户角色不合法", nil)
		return
	}
	if req.SponsorID != nil && *req.SponsorID != 0 {
		sponsor, err := h.UserRepo.GetByID(*req.SponsorID)
		if err != nil {
			respondError(c, response.CodeInternal, "推荐人查询失败", err)
			return
		}
		if sponsor == nil {
			respondError(c, response.CodeNotFound, "推荐人不存在", nil)
			return
		}
	}

	user := &models.User{
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Status:      constants.UserStatusActive,
		SponsorID:   req.SponsorID,
		Role:        role,
	}
	if err := h.UserRepo.Create(user); err != nil {
		respondError(c, response.CodeInternal, "用户创建失败", err)
		return
	}
	response.Success(c, user)
}

// GetUserEarnings 查询用户收益摘要
func (h *Handler) GetUserEarnings(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "用户ID不合法", nil)
		return
	}

	summary, err := h.EarningsService.GetUserEarnings(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(c, response.CodeNotFound, "用户不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "收益摘要查询失败", err)
		return
	}
	response.Success(c, summary)
}
