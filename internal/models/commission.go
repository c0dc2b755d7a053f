package models

import (
	"fmt"
	"time"

	"github.com/cyclebit-next/internal/constants"
	"gorm.io/gorm"
)

// Commission 佣金台账记录（待结算义务，创建后除取消外不可变）
//
// 自然键唯一索引 idx_commission_unique 覆盖
// (type, payee, source_user, purchase, cycle_number)：同一认购、同一收款人、
// 同一类型的佣金至多存在一条，重复写入依赖该索引拒绝。
type Commission struct {
	ID           uint           `gorm:"primarykey" json:"id"`                                                                        // 主键
	Type         string         `gorm:"type:varchar(20);not null;index:idx_commission_unique,unique" json:"type"`                    // 佣金类型
	PayeeID      uint           `gorm:"not null;index;index:idx_commission_unique,unique" json:"payee_id"`                           // 收款人ID
	SourceUserID uint           `gorm:"not null;index;index:idx_commission_unique,unique" json:"source_user_id"`                     // 来源持有人ID
	PurchaseID   uint           `gorm:"not null;index;index:idx_commission_unique,unique" json:"purchase_id"`                        // 来源认购ID
	CycleNumber  int            `gorm:"not null;default:0;index:idx_commission_unique,unique" json:"cycle_number"`                   // 触发周期号
	DedupeKey    string         `gorm:"type:varchar(120);uniqueIndex:idx_commission_dedupe;not null" json:"-"`                       // 业务去重键（池奖励不含收款人）
	BaseAmount   Money          `gorm:"type:decimal(20,2);not null;default:0" json:"base_amount"`                                    // 佣金基数金额
	RatePercent  Money          `gorm:"type:decimal(10,2);not null;default:0" json:"rate_percent"`                                   // 佣金比例（百分比）
	Amount       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                                         // 佣金金额
	Currency     string         `gorm:"type:varchar(10);not null;default:'USD'" json:"currency"`                                     // 币种
	Status       string         `gorm:"type:varchar(20);not null;index" json:"status"`                                               // 状态 pending/paid/cancelled
	TriggerKind  string         `gorm:"type:varchar(40);not null" json:"trigger_kind"`                                               // 触发来源
	RunID        string         `gorm:"type:varchar(64);index" json:"run_id,omitempty"`                                              // 产生该记录的批次运行ID
	CancelReason string         `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`                                            // 取消原因
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                                                                     // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                                                                     // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                                                              // 软删除时间

	Payee      User     `gorm:"foreignKey:PayeeID" json:"payee,omitempty"`            // 收款人
	SourceUser User     `gorm:"foreignKey:SourceUserID" json:"source_user,omitempty"` // 来源持有人
	Purchase   Purchase `gorm:"foreignKey:PurchaseID" json:"purchase,omitempty"`      // 来源认购
}

// TableName 指定表名
func (Commission) TableName() string {
	return "commissions"
}

// BeforeCreate 落盘前补齐去重键。
// 池奖励的业务键是 (type, purchase, cycle_number)，不含收款人，
// 换收款人并发派发由该键的唯一索引在存储层拒绝。
func (c *Commission) BeforeCreate(tx *gorm.DB) error {
	if c.DedupeKey != "" {
		return nil
	}
	if c.Type == constants.CommissionTypePoolBonus {
		c.DedupeKey = fmt.Sprintf("%s:%d:%d", c.Type, c.PurchaseID, c.CycleNumber)
	} else {
		c.DedupeKey = fmt.Sprintf("%s:%d:%d:%d:%d", c.Type, c.PayeeID, c.SourceUserID, c.PurchaseID, c.CycleNumber)
	}
	return nil
}
