package models

import "time"

// SubscriptionState 周期推进状态表（每个认购一条，仅由周期推进器变更）
type SubscriptionState struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                       // 主键
	PurchaseID   uint      `gorm:"not null;uniqueIndex" json:"purchase_id"`                    // 认购ID
	CurrentDay   int       `gorm:"not null;default:1" json:"current_day"`                      // 当前待处理天序（跨收益日与暂停日单调递增）
	IsPaused     bool      `gorm:"not null;default:false" json:"is_paused"`                    // 是否处于暂停日
	NextDueDate  time.Time `gorm:"index;not null" json:"next_due_date"`                        // 下次应处理时间
	TotalAccrued Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_accrued"` // 累计收益金额
	UpdatedAt    time.Time `gorm:"index" json:"updated_at"`                                    // 更新时间
}

// TableName 指定表名
func (SubscriptionState) TableName() string {
	return "subscription_states"
}
