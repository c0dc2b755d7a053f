package main

import (
	"fmt"
	"time"

	"github.com/cyclebit-next/internal/config"
	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/logger"
	"github.com/cyclebit-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 默认管理员
	if err := models.InitDefaultAdmin(cfg.Admin.Username, cfg.Admin.Password); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	// 添加认购方案
	dailyRate := models.NewMoneyFromDecimal(decimal.NewFromFloat(12.5))
	fallbackRate := models.NewMoneyFromDecimal(decimal.NewFromFloat(10))
	plans := []models.Plan{
		{
			Name:         "标准方案",
			Price:        models.NewMoneyFromDecimal(decimal.NewFromFloat(100)),
			DailyRate:    &dailyRate,
			DaysPerCycle: 8,
			CyclesTotal:  2,
			Status:       constants.PlanStatusActive,
		},
		{
			Name:         "进阶方案",
			Price:        models.NewMoneyFromDecimal(decimal.NewFromFloat(500)),
			Rate:         &fallbackRate,
			DaysPerCycle: 8,
			CyclesTotal:  2,
			Status:       constants.PlanStatusActive,
		},
		{
			Name:         "默认费率方案",
			Price:        models.NewMoneyFromDecimal(decimal.NewFromFloat(1000)),
			DaysPerCycle: 8,
			CyclesTotal:  2,
			Status:       constants.PlanStatusActive,
		},
	}

	planIDs := map[string]uint{}
	for _, plan := range plans {
		var existing models.Plan
		if err := models.DB.Where("name = ?", plan.Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&plan).Error; err != nil {
				stdLog.Printf("Failed to create plan %s: %v", plan.Name, err)
				continue
			}
			stdLog.Printf("Created plan: %s", plan.Name)
			planIDs[plan.Name] = plan.ID
		} else {
			stdLog.Printf("Plan already exists: %s", plan.Name)
			planIDs[plan.Name] = existing.ID
		}
	}

	// 添加用户（构造 leader -> 推荐人 -> 持有人 的推荐链）
	type userSeed struct {
		Email       string
		DisplayName string
		Role        string
		Sponsor     string
	}
	userSeeds := []userSeed{
		{Email: "leader@example.com", DisplayName: "团队长", Role: constants.UserRoleLeader},
		{Email: "parent@example.com", DisplayName: "母账号", Role: constants.UserRoleParent, Sponsor: "leader@example.com"},
		{Email: "sponsor@example.com", DisplayName: "推荐人", Role: constants.UserRoleMember, Sponsor: "leader@example.com"},
		{Email: "owner@example.com", DisplayName: "持有人", Role: constants.UserRoleMember, Sponsor: "sponsor@example.com"},
		{Email: "solo@example.com", DisplayName: "无推荐人用户", Role: constants.UserRoleMember},
	}

	userIDs := map[string]uint{}
	for _, seed := range userSeeds {
		var existing models.User
		if err := models.DB.Where("email = ?", seed.Email).First(&existing).Error; err == nil {
			stdLog.Printf("User already exists: %s", seed.Email)
			userIDs[seed.Email] = existing.ID
			continue
		}
		user := models.User{
			Email:       seed.Email,
			DisplayName: seed.DisplayName,
			Status:      constants.UserStatusActive,
			Role:        seed.Role,
		}
		if seed.Sponsor != "" {
			if sponsorID, ok := userIDs[seed.Sponsor]; ok {
				user.SponsorID = &sponsorID
			}
		}
		if err := models.DB.Create(&user).Error; err != nil {
			stdLog.Printf("Failed to create user %s: %v", seed.Email, err)
			continue
		}
		stdLog.Printf("Created user: %s", seed.Email)
		userIDs[seed.Email] = user.ID
	}

	// 添加认购记录（到期时间设为当前，便于立即跑批）
	now := time.Now()
	type purchaseSeed struct {
		UserEmail string
		PlanName  string
	}
	purchaseSeeds := []purchaseSeed{
		{UserEmail: "owner@example.com", PlanName: "标准方案"},
		{UserEmail: "solo@example.com", PlanName: "进阶方案"},
	}
	for _, seed := range purchaseSeeds {
		userID := userIDs[seed.UserEmail]
		planID := planIDs[seed.PlanName]
		if userID == 0 || planID == 0 {
			stdLog.Printf("Skip purchase seed for %s: user or plan missing", seed.UserEmail)
			continue
		}
		var count int64
		models.DB.Model(&models.Purchase{}).Where("user_id = ? AND plan_id = ?", userID, planID).Count(&count)
		if count > 0 {
			stdLog.Printf("Purchase already exists: %s / %s", seed.UserEmail, seed.PlanName)
			continue
		}
		var plan models.Plan
		if err := models.DB.First(&plan, planID).Error; err != nil {
			stdLog.Printf("Failed to load plan %s: %v", seed.PlanName, err)
			continue
		}
		purchase := models.Purchase{
			UserID:     userID,
			PlanID:     planID,
			BaseAmount: plan.Price,
			Status:     constants.PurchaseStatusActive,
		}
		if err := models.DB.Create(&purchase).Error; err != nil {
			stdLog.Printf("Failed to create purchase for %s: %v", seed.UserEmail, err)
			continue
		}
		state := models.SubscriptionState{
			PurchaseID:  purchase.ID,
			CurrentDay:  1,
			NextDueDate: now,
		}
		if err := models.DB.Create(&state).Error; err != nil {
			stdLog.Printf("Failed to create subscription state for %s: %v", seed.UserEmail, err)
			continue
		}
		if err := models.DB.Model(&models.User{}).Where("id = ?", userID).
			Update("total_invested", gorm.Expr("total_invested + ?", plan.Price)).Error; err != nil {
			stdLog.Printf("Failed to update total invested for %s: %v", seed.UserEmail, err)
		}
		stdLog.Printf("Created purchase: %s / %s", seed.UserEmail, seed.PlanName)
	}

	// 写入引擎配置
	engineConfig := map[string]interface{}{
		"days_per_cycle":       8,
		"cycles_total":         2,
		"default_daily_rate":   12.5,
		"direct_referral_rate": 10,
		"special_bonus_rate":   5,
		"pool_rate":            5,
		"sponsor_walk_depth":   10,
	}
	var setting models.Setting
	if err := models.DB.Where("key = ?", constants.SettingKeyEngineConfig).First(&setting).Error; err != nil {
		setting = models.Setting{
			Key:       constants.SettingKeyEngineConfig,
			ValueJSON: models.JSON(engineConfig),
		}
		if err := models.DB.Create(&setting).Error; err != nil {
			stdLog.Printf("Failed to create engine config: %v", err)
		} else {
			stdLog.Println("Created engine config")
		}
	} else {
		setting.ValueJSON = models.JSON(engineConfig)
		if err := models.DB.Save(&setting).Error; err != nil {
			stdLog.Printf("Failed to update engine config: %v", err)
		} else {
			stdLog.Println("Updated engine config")
		}
	}

	fmt.Println("\n✅ Seed data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- 3 Plans")
	fmt.Println("- 5 Users (leader / parent / sponsor / owner / solo)")
	fmt.Println("- 2 Purchases with subscription states")
	fmt.Println("- Engine configuration")
}
