package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PurchaseRepository 认购数据访问接口
type PurchaseRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) PurchaseRepository

	GetByID(id uint) (*models.Purchase, error)
	GetByIDForUpdate(id uint) (*models.Purchase, error)
	Create(purchase *models.Purchase) error
	Update(purchase *models.Purchase) error
	List(filter PurchaseListFilter) ([]models.Purchase, int64, error)
	ListDueIDs(now time.Time, force bool) ([]uint, error)
	MarkFirstCycleCompleted(id uint) (int64, error)
	MarkSecondCycleCompleted(id uint) (int64, error)
	UpdateProgress(id uint, cyclesCompleted int, status string) error
}

// GormPurchaseRepository GORM 认购仓储
type GormPurchaseRepository struct {
	db *gorm.DB
}

// NewPurchaseRepository 创建认购仓储
func NewPurchaseRepository(db *gorm.DB) *GormPurchaseRepository {
	return &GormPurchaseRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPurchaseRepository) WithTx(tx *gorm.DB) PurchaseRepository {
	if tx == nil {
		return r
	}
	return &GormPurchaseRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPurchaseRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取认购
func (r *GormPurchaseRepository) GetByID(id uint) (*models.Purchase, error) {
	if id == 0 {
		return nil, nil
	}
	var purchase models.Purchase
	if err := r.db.Preload("User").Preload("Plan").Preload("State").First(&purchase, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// GetByIDForUpdate 按ID锁定查询认购
func (r *GormPurchaseRepository) GetByIDForUpdate(id uint) (*models.Purchase, error) {
	if id == 0 {
		return nil, nil
	}
	var purchase models.Purchase
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&purchase, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// Create 创建认购
func (r *GormPurchaseRepository) Create(purchase *models.Purchase) error {
	return r.db.Create(purchase).Error
}

// Update 更新认购
func (r *GormPurchaseRepository) Update(purchase *models.Purchase) error {
	return r.db.Save(purchase).Error
}

// List 查询认购列表
func (r *GormPurchaseRepository) List(filter PurchaseListFilter) ([]models.Purchase, int64, error) {
	query := r.db.Model(&models.Purchase{}).Preload("User").Preload("Plan").Preload("State")
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.PlanID != 0 {
		query = query.Where("plan_id = ?", filter.PlanID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Purchase
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListDueIDs 查询到期待处理的认购ID，force 时忽略到期时间
func (r *GormPurchaseRepository) ListDueIDs(now time.Time, force bool) ([]uint, error) {
	query := r.db.Model(&models.Purchase{}).
		Joins("JOIN subscription_states ss ON ss.purchase_id = purchases.id").
		Where("purchases.status = ?", constants.PurchaseStatusActive)
	if !force {
		query = query.Where("ss.next_due_date <= ?", now)
	}

	var ids []uint
	if err := query.Order("purchases.id asc").Pluck("purchases.id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkFirstCycleCompleted 条件翻转首周期完成标记，返回影响行数
func (r *GormPurchaseRepository) MarkFirstCycleCompleted(id uint) (int64, error) {
	if id == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Purchase{}).
		Where("id = ? AND first_cycle_completed = ?", id, false).
		Updates(map[string]interface{}{
			"first_cycle_completed": true,
			"updated_at":            time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// MarkSecondCycleCompleted 条件翻转第二周期完成标记，返回影响行数
func (r *GormPurchaseRepository) MarkSecondCycleCompleted(id uint) (int64, error) {
	if id == 0 {
		return 0, nil
	}
	result := r.db.Model(&models.Purchase{}).
		Where("id = ? AND second_cycle_completed = ?", id, false).
		Updates(map[string]interface{}{
			"second_cycle_completed": true,
			"updated_at":             time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// UpdateProgress 更新认购周期进度与状态
func (r *GormPurchaseRepository) UpdateProgress(id uint, cyclesCompleted int, status string) error {
	if id == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"cycles_completed": cyclesCompleted,
		"updated_at":       time.Now(),
	}
	if s := strings.TrimSpace(status); s != "" {
		updates["status"] = s
	}
	return r.db.Model(&models.Purchase{}).Where("id = ?", id).Updates(updates).Error
}
