package models

import (
	"time"

	"gorm.io/gorm"
)

// Plan 认购方案表（收益周期与日收益率配置）
type Plan struct {
	ID           uint           `gorm:"primarykey" json:"id"`                                  // 主键
	Name         string         `gorm:"type:varchar(100);not null" json:"name"`                // 方案名称
	Price        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"`    // 认购价格
	DailyRate    *Money         `gorm:"type:decimal(10,2)" json:"daily_rate,omitempty"`        // 日收益率（百分比，可空）
	Rate         *Money         `gorm:"type:decimal(10,2)" json:"rate,omitempty"`              // 通用收益率（百分比，日收益率缺省时回退）
	DaysPerCycle int            `gorm:"not null;default:8" json:"days_per_cycle"`              // 每周期收益天数（不含暂停日）
	CyclesTotal  int            `gorm:"not null;default:2" json:"cycles_total"`                // 总周期数
	Status       string         `gorm:"type:varchar(20);not null;default:'active'" json:"status"` // 方案状态
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                               // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                               // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                        // 软删除时间
}

// TableName 指定表名
func (Plan) TableName() string {
	return "plans"
}
