package repository

import "time"

// UserListFilter 查询用户列表的过滤条件
type UserListFilter struct {
	Page      int
	PageSize  int
	Status    string
	Role      string
	SponsorID uint
	Search    string
}

// PlanListFilter 查询方案列表的过滤条件
type PlanListFilter struct {
	Page       int
	PageSize   int
	Status     string
	Search     string
	OnlyActive bool
}

// PurchaseListFilter 查询认购列表的过滤条件
type PurchaseListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	PlanID      uint
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// CommissionListFilter 查询佣金列表的过滤条件
type CommissionListFilter struct {
	Page         int
	PageSize     int
	PayeeID      uint
	SourceUserID uint
	PurchaseID   uint
	Type         string
	Status       string
	TriggerKind  string
	RunID        string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
}

// BatchRunListFilter 查询批处理记录的过滤条件
type BatchRunListFilter struct {
	Page     int
	PageSize int
	Status   string
	RunID    string
}
