package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/cyclebit-next/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionRepository 佣金数据访问接口
type CommissionRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CommissionRepository

	Create(commission *models.Commission) error
	GetByID(id uint) (*models.Commission, error)
	GetByIDForUpdate(id uint) (*models.Commission, error)
	GetByNaturalKey(commissionType string, payeeID, sourceUserID, purchaseID uint, cycleNumber int) (*models.Commission, error)
	GetByTypeAndCycle(commissionType string, purchaseID uint, cycleNumber int) (*models.Commission, error)
	List(filter CommissionListFilter) ([]models.Commission, int64, error)
	UpdateStatus(id uint, status, cancelReason string) error
	SumByPayee(payeeID uint, statuses []string) (decimal.Decimal, error)
}

// GormCommissionRepository GORM 佣金仓储
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCommissionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// Create 创建佣金记录，自然键冲突由唯一索引兜底
func (r *GormCommissionRepository) Create(commission *models.Commission) error {
	return r.db.Create(commission).Error
}

// GetByID 按ID获取佣金
func (r *GormCommissionRepository) GetByID(id uint) (*models.Commission, error) {
	if id == 0 {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.Preload("Payee").Preload("SourceUser").Preload("Purchase").First(&commission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// GetByIDForUpdate 按ID锁定查询佣金
func (r *GormCommissionRepository) GetByIDForUpdate(id uint) (*models.Commission, error) {
	if id == 0 {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&commission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// GetByNaturalKey 按幂等自然键查询佣金
func (r *GormCommissionRepository) GetByNaturalKey(commissionType string, payeeID, sourceUserID, purchaseID uint, cycleNumber int) (*models.Commission, error) {
	if purchaseID == 0 {
		return nil, nil
	}
	var commission models.Commission
	err := r.db.Where(
		"type = ? AND payee_id = ? AND source_user_id = ? AND purchase_id = ? AND cycle_number = ?",
		strings.TrimSpace(commissionType), payeeID, sourceUserID, purchaseID, cycleNumber,
	).First(&commission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// GetByTypeAndCycle 按类型+认购+周期查询佣金（不区分收款人）
func (r *GormCommissionRepository) GetByTypeAndCycle(commissionType string, purchaseID uint, cycleNumber int) (*models.Commission, error) {
	if purchaseID == 0 {
		return nil, nil
	}
	var commission models.Commission
	err := r.db.Where(
		"type = ? AND purchase_id = ? AND cycle_number = ?",
		strings.TrimSpace(commissionType), purchaseID, cycleNumber,
	).First(&commission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// List 查询佣金列表
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.Commission, int64, error) {
	query := r.db.Model(&models.Commission{}).
		Preload("Payee").
		Preload("SourceUser").
		Preload("Purchase")
	if filter.PayeeID != 0 {
		query = query.Where("payee_id = ?", filter.PayeeID)
	}
	if filter.SourceUserID != 0 {
		query = query.Where("source_user_id = ?", filter.SourceUserID)
	}
	if filter.PurchaseID != 0 {
		query = query.Where("purchase_id = ?", filter.PurchaseID)
	}
	if ctype := strings.TrimSpace(filter.Type); ctype != "" {
		query = query.Where("type = ?", ctype)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if trigger := strings.TrimSpace(filter.TriggerKind); trigger != "" {
		query = query.Where("trigger_kind = ?", trigger)
	}
	if runID := strings.TrimSpace(filter.RunID); runID != "" {
		query = query.Where("run_id = ?", runID)
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

	var rows []models.Commission
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// UpdateStatus 更新佣金状态
func (r *GormCommissionRepository) UpdateStatus(id uint, status, cancelReason string) error {
	if id == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"status":     strings.TrimSpace(status),
		"updated_at": time.Now(),
	}
	if reason := strings.TrimSpace(cancelReason); reason != "" {
		updates["cancel_reason"] = reason
	}
	return r.db.Model(&models.Commission{}).Where("id = ?", id).Updates(updates).Error
}

// SumByPayee 汇总收款人指定状态的佣金金额
func (r *GormCommissionRepository) SumByPayee(payeeID uint, statuses []string) (decimal.Decimal, error) {
	if payeeID == 0 {
		return decimal.Zero, nil
	}
	query := r.db.Model(&models.Commission{}).Where("payee_id = ?", payeeID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	var row struct {
		Total decimal.Decimal `gorm:"column:total"`
	}
	if err := query.Select("COALESCE(SUM(amount), 0) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Total.Round(2), nil
}
