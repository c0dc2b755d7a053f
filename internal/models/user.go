package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表（认购持有人，含推荐关系与层级角色）
type User struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                       // 主键
	Email         string         `gorm:"uniqueIndex;not null" json:"email"`                          // 邮箱
	DisplayName   string         `gorm:"default:''" json:"display_name"`                             // 昵称
	Status        string         `gorm:"default:'active';index" json:"status"`                       // 账号状态
	SponsorID     *uint          `gorm:"index" json:"sponsor_id,omitempty"`                          // 推荐人ID（无推荐人为空）
	Role          string         `gorm:"type:varchar(20);not null;default:'member'" json:"role"`     // 层级角色 member/leader/parent
	TotalInvested Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_invested"` // 累计投入金额
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                                    // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                             // 软删除时间

	Sponsor *User `gorm:"foreignKey:SponsorID" json:"sponsor,omitempty"` // 推荐人
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
