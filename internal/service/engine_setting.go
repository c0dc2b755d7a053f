package service

import (
	"fmt"
	"math"

	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/models"
)

const (
	engineDaysPerCycleMin     = 1
	engineDaysPerCycleMax     = 365
	engineCyclesTotalMin      = 1
	engineCyclesTotalMax      = 100
	engineRateMin             = 0
	engineRateMax             = 100
	engineSponsorWalkDepthMin = 1
	engineSponsorWalkDepthMax = 50
)

// EngineSetting 收益周期引擎配置
type EngineSetting struct {
	DaysPerCycle       int     `json:"days_per_cycle"`
	CyclesTotal        int     `json:"cycles_total"`
	DefaultDailyRate   float64 `json:"default_daily_rate"`
	DirectReferralRate float64 `json:"direct_referral_rate"`
	SpecialBonusRate   float64 `json:"special_bonus_rate"`
	PoolRate           float64 `json:"pool_rate"`
	SponsorWalkDepth   int     `json:"sponsor_walk_depth"`
}

// EngineDefaultSetting 默认引擎配置
func EngineDefaultSetting() EngineSetting {
	return EngineSetting{
		DaysPerCycle:       8,
		CyclesTotal:        2,
		DefaultDailyRate:   12.5,
		DirectReferralRate: 10,
		SpecialBonusRate:   5,
		PoolRate:           5,
		SponsorWalkDepth:   10,
	}
}

// NormalizeEngineSetting 归一化引擎配置
func NormalizeEngineSetting(setting EngineSetting) EngineSetting {
	if setting.DaysPerCycle < engineDaysPerCycleMin {
		setting.DaysPerCycle = engineDaysPerCycleMin
	}
	if setting.DaysPerCycle > engineDaysPerCycleMax {
		setting.DaysPerCycle = engineDaysPerCycleMax
	}
	if setting.CyclesTotal < engineCyclesTotalMin {
		setting.CyclesTotal = engineCyclesTotalMin
	}
	if setting.CyclesTotal > engineCyclesTotalMax {
		setting.CyclesTotal = engineCyclesTotalMax
	}
	setting.DefaultDailyRate = clampEngineRate(setting.DefaultDailyRate)
	setting.DirectReferralRate = clampEngineRate(setting.DirectReferralRate)
	setting.SpecialBonusRate = clampEngineRate(setting.SpecialBonusRate)
	setting.PoolRate = clampEngineRate(setting.PoolRate)
	if setting.SponsorWalkDepth < engineSponsorWalkDepthMin {
		setting.SponsorWalkDepth = engineSponsorWalkDepthMin
	}
	if setting.SponsorWalkDepth > engineSponsorWalkDepthMax {
		setting.SponsorWalkDepth = engineSponsorWalkDepthMax
	}
	return setting
}

// ValidateEngineSetting 校验引擎配置
func ValidateEngineSetting(setting EngineSetting) error {
	if setting.DaysPerCycle < engineDaysPerCycleMin || setting.DaysPerCycle > engineDaysPerCycleMax {
		return fmt.Errorf("%w: 每周期收益天数必须在 1-365 之间", ErrEngineConfigInvalid)
	}
	if setting.CyclesTotal < engineCyclesTotalMin || setting.CyclesTotal > engineCyclesTotalMax {
		return fmt.Errorf("%w: 总周期数必须在 1-100 之间", ErrEngineConfigInvalid)
	}
	for _, rate := range []float64{
		setting.DefaultDailyRate,
		setting.DirectReferralRate,
		setting.SpecialBonusRate,
		setting.PoolRate,
	} {
		if rate < engineRateMin || rate > engineRateMax {
			return fmt.Errorf("%w: 比例必须在 0-100 之间", ErrEngineConfigInvalid)
		}
	}
	return nil
}

// EngineSettingToMap 将引擎配置转换为 settings 存储结构
func EngineSettingToMap(setting EngineSetting) map[string]interface{} {
	normalized := NormalizeEngineSetting(setting)
	return map[string]interface{}{
		"days_per_cycle":       normalized.DaysPerCycle,
		"cycles_total":         normalized.CyclesTotal,
		"default_daily_rate":   normalized.DefaultDailyRate,
		"direct_referral_rate": normalized.DirectReferralRate,
		"special_bonus_rate":   normalized.SpecialBonusRate,
		"pool_rate":            normalized.PoolRate,
		"sponsor_walk_depth":   normalized.SponsorWalkDepth,
	}
}

func engineSettingFromJSON(raw models.JSON, fallback EngineSetting) EngineSetting {
	result := fallback

	if daysRaw, ok := raw["days_per_cycle"]; ok {
		if parsed, err := parseSettingInt(daysRaw); err == nil {
			result.DaysPerCycle = parsed
		}
	}
	if cyclesRaw, ok := raw["cycles_total"]; ok {
		if parsed, err := parseSettingInt(cyclesRaw); err == nil {
			result.CyclesTotal = parsed
		}
	}
	if rateRaw, ok := raw["default_daily_rate"]; ok {
		if parsed, err := parseSettingFloat(rateRaw); err == nil {
			result.DefaultDailyRate = parsed
		}
	}
	if rateRaw, ok := raw["direct_referral_rate"]; ok {
		if parsed, err := parseSettingFloat(rateRaw); err == nil {
			result.DirectReferralRate = parsed
		}
	}
	if rateRaw, ok := raw["special_bonus_rate"]; ok {
		if parsed, err := parseSettingFloat(rateRaw); err == nil {
			result.SpecialBonusRate = parsed
		}
	}
	if rateRaw, ok := raw["pool_rate"]; ok {
		if parsed, err := parseSettingFloat(rateRaw); err == nil {
			result.PoolRate = parsed
		}
	}
	if depthRaw, ok := raw["sponsor_walk_depth"]; ok {
		if parsed, err := parseSettingInt(depthRaw); err == nil {
			result.SponsorWalkDepth = parsed
		}
	}

	return NormalizeEngineSetting(result)
}

func normalizeEngineSettingMap(value map[string]interface{}) models.JSON {
	setting := engineSettingFromJSON(models.JSON(value), EngineDefaultSetting())
	return models.JSON(EngineSettingToMap(setting))
}

func clampEngineRate(value float64) float64 {
	rounded := math.Round(value*100) / 100
	if rounded < engineRateMin {
		return engineRateMin
	}
	if rounded > engineRateMax {
		return engineRateMax
	}
	return rounded
}

// GetEngineSetting 获取引擎设置（优先 settings，空时回退默认）
func (s *SettingService) GetEngineSetting() (EngineSetting, error) {
	fallback := EngineDefaultSetting()
	if s == nil {
		return fallback, nil
	}

	value, err := s.GetByKey(constants.SettingKeyEngineConfig)
	if err != nil {
		return fallback, err
	}
	if value == nil {
		return fallback, nil
	}
	return engineSettingFromJSON(value, fallback), nil
}

// UpdateEngineSetting 更新引擎设置
func (s *SettingService) UpdateEngineSetting(setting EngineSetting) (EngineSetting, error) {
	normalized := NormalizeEngineSetting(setting)
	if err := ValidateEngineSetting(normalized); err != nil {
		return EngineDefaultSetting(), err
	}
	if _, err := s.Update(constants.SettingKeyEngineConfig, EngineSettingToMap(normalized)); err != nil {
		return EngineDefaultSetting(), err
	}
	return normalized, nil
}
