package repository

import (
	"github.com/cyclebit-next/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccrualRepository 收益记录数据访问接口
type AccrualRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) AccrualRepository

	Create(record *models.AccrualRecord) error
	CountByPurchase(purchaseID uint) (int64, error)
	ListByPurchase(purchaseID uint, limit int) ([]models.AccrualRecord, error)
	SumFirstN(purchaseID uint, n int) (decimal.Decimal, error)
	SumByUser(userID uint) (decimal.Decimal, error)
}

// GormAccrualRepository GORM 收益记录仓储
type GormAccrualRepository struct {
	db *gorm.DB
}

// NewAccrualRepository 创建收益记录仓储
func NewAccrualRepository(db *gorm.DB) *GormAccrualRepository {
	return &GormAccrualRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAccrualRepository) WithTx(tx *gorm.DB) AccrualRepository {
	if tx == nil {
		return r
	}
	return &GormAccrualRepository{db: tx}
}

// Transaction 执行事务
func (r *GormAccrualRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建收益记录
func (r *GormAccrualRepository) Create(record *models.AccrualRecord) error {
	return r.db.Create(record).Error
}

// CountByPurchase 统计认购的收益记录数
func (r *GormAccrualRepository) CountByPurchase(purchaseID uint) (int64, error) {
	if purchaseID == 0 {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.AccrualRecord{}).
		Where("purchase_id = ?", purchaseID).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ListByPurchase 按时间顺序查询认购的收益记录
func (r *GormAccrualRepository) ListByPurchase(purchaseID uint, limit int) ([]models.AccrualRecord, error) {
	if purchaseID == 0 {
		return []models.AccrualRecord{}, nil
	}
	query := r.db.Where("purchase_id = ?", purchaseID).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.AccrualRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SumFirstN 汇总认购最早 n 条收益记录的金额
func (r *GormAccrualRepository) SumFirstN(purchaseID uint, n int) (decimal.Decimal, error) {
	if purchaseID == 0 || n <= 0 {
		return decimal.Zero, nil
	}
	rows, err := r.ListByPurchase(purchaseID, n)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount.Decimal)
	}
	return total.Round(2), nil
}

// SumByUser 汇总用户全部收益记录金额
func (r *GormAccrualRepository) SumByUser(userID uint) (decimal.Decimal, error) {
	if userID == 0 {
		return decimal.Zero, nil
	}
	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := r.db.Model(&models.AccrualRecord{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0) AS total").
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}
