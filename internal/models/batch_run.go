package models

import "time"

// BatchRun 批次运行记录表（每次批处理的汇总报告）
type BatchRun struct {
	ID             uint       `gorm:"primarykey" json:"id"`                          // 主键
	RunID          string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"run_id"` // 运行ID
	Status         string     `gorm:"type:varchar(20);not null;index" json:"status"` // 运行状态
	ProcessedCount int        `gorm:"not null;default:0" json:"processed_count"`     // 成功处理数
	SkippedCount   int        `gorm:"not null;default:0" json:"skipped_count"`       // 跳过数
	ErrorCount     int        `gorm:"not null;default:0" json:"error_count"`         // 失败数
	Details        JSON       `gorm:"type:json" json:"details"`                      // 明细（成功/跳过/失败列表）
	StartedAt      time.Time  `gorm:"index;not null" json:"started_at"`              // 开始时间
	FinishedAt     *time.Time `gorm:"index" json:"finished_at,omitempty"`            // 结束时间
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                       // 创建时间
}

// TableName 指定表名
func (BatchRun) TableName() string {
	return "batch_runs"
}
