package service

import "errors"

// 业务错误定义
var (
	ErrNotFound                = errors.New("记录不存在")
	ErrInvalidCredentials      = errors.New("用户名或密码错误")
	ErrRateMissing             = errors.New("日收益率缺失")
	ErrPurchaseNotActive       = errors.New("认购未激活")
	ErrPurchaseCompleted       = errors.New("认购已结束")
	ErrNotDue                  = errors.New("认购未到处理时间")
	ErrDuplicateCommission     = errors.New("佣金记录已存在")
	ErrDuplicateRun            = errors.New("批次运行ID已存在")
	ErrCommissionStatusInvalid = errors.New("佣金状态不允许该操作")
	ErrEngineConfigInvalid     = errors.New("引擎配置不合法")
	ErrPlanInactive            = errors.New("投资方案不可用")
	ErrUserDisabled            = errors.New("用户已被禁用")
)
