package repository

import (
	"errors"
	"time"

	"github.com/cyclebit-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionStateRepository 认购进度状态数据访问接口
type SubscriptionStateRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) SubscriptionStateRepository

	GetByPurchase(purchaseID uint) (*models.SubscriptionState, error)
	GetByPurchaseForUpdate(purchaseID uint) (*models.SubscriptionState, error)
	Create(state *models.SubscriptionState) error
	Advance(purchaseID uint, expectedDay int, updates map[string]interface{}) (int64, error)
}

// GormSubscriptionStateRepository GORM 认购进度状态仓储
type GormSubscriptionStateRepository struct {
	db *gorm.DB
}

// NewSubscriptionStateRepository 创建认购进度状态仓储
func NewSubscriptionStateRepository(db *gorm.DB) *GormSubscriptionStateRepository {
	return &GormSubscriptionStateRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSubscriptionStateRepository) WithTx(tx *gorm.DB) SubscriptionStateRepository {
	if tx == nil {
		return r
	}
	return &GormSubscriptionStateRepository{db: tx}
}

// Transaction 执行事务
func (r *GormSubscriptionStateRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByPurchase 按认购获取进度状态
func (r *GormSubscriptionStateRepository) GetByPurchase(purchaseID uint) (*models.SubscriptionState, error) {
	if purchaseID == 0 {
		return nil, nil
	}
	var state models.SubscriptionState
	if err := r.db.Where("purchase_id = ?", purchaseID).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// GetByPurchaseForUpdate 按认购锁定查询进度状态
func (r *GormSubscriptionStateRepository) GetByPurchaseForUpdate(purchaseID uint) (*models.SubscriptionState, error) {
	if purchaseID == 0 {
		return nil, nil
	}
	var state models.SubscriptionState
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("purchase_id = ?", purchaseID).
		First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// Create 创建进度状态
func (r *GormSubscriptionStateRepository) Create(state *models.SubscriptionState) error {
	return r.db.Create(state).Error
}

// Advance 按期望天数推进状态，影响行数为 0 表示已被并发推进
func (r *GormSubscriptionStateRepository) Advance(purchaseID uint, expectedDay int, updates map[string]interface{}) (int64, error) {
	if purchaseID == 0 || len(updates) == 0 {
		return 0, nil
	}
	updates["updated_at"] = time.Now()
	result := r.db.Model(&models.SubscriptionState{}).
		Where("purchase_id = ? AND current_day = ?", purchaseID, expectedDay).
		Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
