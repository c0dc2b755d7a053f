package service

import (
	"github.com/cyclebit-next/internal/models"
	"github.com/shopspring/decimal"
)

// ResolveDailyRate 解析日收益率（百分比），按 覆盖值 > 方案日率 > 方案通用率 > 系统默认 取值
func ResolveDailyRate(plan *models.Plan, override *decimal.Decimal, fallback float64) (decimal.Decimal, error) {
	if override != nil && override.IsPositive() {
		return *override, nil
	}
	if plan != nil {
		if plan.DailyRate != nil && plan.DailyRate.Decimal.IsPositive() {
			return plan.DailyRate.Decimal, nil
		}
		if plan.Rate != nil && plan.Rate.Decimal.IsPositive() {
			return plan.Rate.Decimal, nil
		}
	}
	if fallback > 0 {
		return decimal.NewFromFloat(fallback), nil
	}
	return decimal.Zero, ErrRateMissing
}

// ApplyRatePercent 按百分比计算金额并保留 2 位小数
func ApplyRatePercent(base decimal.Decimal, ratePercent decimal.Decimal) decimal.Decimal {
	return base.Mul(ratePercent).Div(decimal.NewFromInt(100)).Round(2)
}
