package models

import (
	"time"

	"gorm.io/gorm"
)

// Purchase 认购记录表（一次有收益资格的认购实例）
type Purchase struct {
	ID                   uint           `gorm:"primarykey" json:"id"`                                        // 主键
	UserID               uint           `gorm:"not null;index" json:"user_id"`                               // 持有人ID
	PlanID               uint           `gorm:"not null;index" json:"plan_id"`                               // 方案ID
	BaseAmount           Money          `gorm:"type:decimal(20,2);not null;default:0" json:"base_amount"`    // 认购本金
	Status               string         `gorm:"type:varchar(20);not null;index" json:"status"`               // 生命周期状态 pending/active/completed
	FirstCycleCompleted  bool           `gorm:"not null;default:false" json:"first_cycle_completed"`         // 首周期完成标记（仅单向翻转一次）
	SecondCycleCompleted bool           `gorm:"not null;default:false" json:"second_cycle_completed"`        // 次周期完成标记（仅单向翻转一次）
	CyclesCompleted      int            `gorm:"not null;default:0" json:"cycles_completed"`                  // 已完成周期数
	CreatedAt            time.Time      `gorm:"index" json:"created_at"`                                     // 创建时间
	UpdatedAt            time.Time      `gorm:"index" json:"updated_at"`                                     // 更新时间
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`                                              // 软删除时间

	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`  // 持有人
	Plan  Plan  `gorm:"foreignKey:PlanID" json:"plan,omitempty"`  // 方案
	State *SubscriptionState `gorm:"foreignKey:PurchaseID" json:"state,omitempty"` // 周期推进状态
}

// TableName 指定表名
func (Purchase) TableName() string {
	return "purchases"
}
