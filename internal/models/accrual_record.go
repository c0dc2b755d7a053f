package models

import "time"

// AccrualRecord 日收益记录表（每个收益日追加一条，创建后不可变）
type AccrualRecord struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                 // 主键
	PurchaseID  uint      `gorm:"not null;index" json:"purchase_id"`                    // 认购ID
	UserID      uint      `gorm:"not null;index" json:"user_id"`                        // 持有人ID
	Amount      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`  // 当日收益金额
	CycleNumber int       `gorm:"not null" json:"cycle_number"`                         // 所属周期（从 1 起）
	DayInCycle  int       `gorm:"not null" json:"day_in_cycle"`                         // 周期内天序（从 1 起）
	CompletedAt time.Time `gorm:"index;not null" json:"completed_at"`                   // 收益完成时间
	CreatedAt   time.Time `gorm:"index;not null;default:CURRENT_TIMESTAMP" json:"created_at"` // 创建时间

	Purchase Purchase `gorm:"foreignKey:PurchaseID" json:"purchase,omitempty"` // 认购
}

// TableName 指定表名
func (AccrualRecord) TableName() string {
	return "accrual_records"
}
