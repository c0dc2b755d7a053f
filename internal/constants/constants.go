package constants

// 认购状态常量
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusActive    = "active"
	PurchaseStatusCompleted = "completed"
)

// 佣金类型常量
const (
	CommissionTypeDirectReferral = "direct_referral"
	CommissionTypeLeaderBonus    = "leader_bonus"
	CommissionTypeParentBonus    = "parent_bonus"
	CommissionTypePoolBonus      = "pool_bonus"
)

// 佣金状态常量
const (
	CommissionStatusPending   = "pending"
	CommissionStatusPaid      = "paid"
	CommissionStatusCancelled = "cancelled"
)

// 佣金触发来源常量
const (
	CommissionTriggerFirstCycle  = "first_cycle_complete"
	CommissionTriggerSecondCycle = "second_cycle_complete"
	CommissionTriggerAdminPool   = "admin_pool"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 用户层级角色常量
const (
	UserRoleMember = "member"
	UserRoleLeader = "leader"
	UserRoleParent = "parent"
)

// 方案状态常量
const (
	PlanStatusActive   = "active"
	PlanStatusDisabled = "disabled"
)

// 批次运行状态常量
const (
	BatchRunStatusRunning  = "running"
	BatchRunStatusFinished = "finished"
	BatchRunStatusAborted  = "aborted"
)

// 单笔处理结果常量
const (
	ProcessOutcomeAccrued  = "accrued"
	ProcessOutcomePauseDay = "pause_day"
	ProcessOutcomeSkipped  = "skipped"
	ProcessOutcomeError    = "error"
)

// 跳过原因常量
const (
	SkipReasonNotDue       = "not_due"
	SkipReasonPaused       = "paused"
	SkipReasonCompleted    = "completed"
	SkipReasonNotActive    = "not_active"
	SkipReasonAlreadyToday = "already_accrued"
	SkipReasonNoSponsor    = "no_sponsor"
)

// 队列名称常量
const (
	QueueDefault = "default"
)

// 异步任务类型常量
const (
	TaskEngineBatchRun  = "engine:batch_run"
	TaskPurchaseProcess = "engine:purchase_process"
)

// 默认货币常量
const (
	DefaultCurrency = "USD"
)

// 设置键常量
const (
	SettingKeyEngineConfig = "engine_config"
)
