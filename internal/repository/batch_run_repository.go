package repository

import (
	"errors"
	"strings"

	"github.com/cyclebit-next/internal/models"

	"gorm.io/gorm"
)

// BatchRunRepository 批处理记录数据访问接口
type BatchRunRepository interface {
	Create(run *models.BatchRun) error
	Update(run *models.BatchRun) error
	GetByRunID(runID string) (*models.BatchRun, error)
	List(filter BatchRunListFilter) ([]models.BatchRun, int64, error)
}

// GormBatchRunRepository GORM 批处理记录仓储
type GormBatchRunRepository struct {
	db *gorm.DB
}

// NewBatchRunRepository 创建批处理记录仓储
func NewBatchRunRepository(db *gorm.DB) *GormBatchRunRepository {
	return &GormBatchRunRepository{db: db}
}

// Create 创建批处理记录
func (r *GormBatchRunRepository) Create(run *models.BatchRun) error {
	return r.db.Create(run).Error
}

// Update 更新批处理记录
func (r *GormBatchRunRepository) Update(run *models.BatchRun) error {
	return r.db.Save(run).Error
}

// GetByRunID 按运行ID获取批处理记录
func (r *GormBatchRunRepository) GetByRunID(runID string) (*models.BatchRun, error) {
	normalized := strings.TrimSpace(runID)
	if normalized == "" {
		return nil, nil
	}
	var run models.BatchRun
	if err := r.db.Where("run_id = ?", normalized).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// List 查询批处理记录列表
func (r *GormBatchRunRepository) List(filter BatchRunListFilter) ([]models.BatchRun, int64, error) {
	query := r.db.Model(&models.BatchRun{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if runID := strings.TrimSpace(filter.RunID); runID != "" {
		query = query.Where("run_id = ?", runID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.BatchRun
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
