package router

import (
	"github.com/cyclebit-next/internal/config"
	adminhandlers "github.com/cyclebit-next/internal/http/handlers/admin"
	"github.com/cyclebit-next/internal/logger"
	"github.com/cyclebit-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	adminHandler := adminhandlers.New(c)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", adminHandler.Login)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				// 引擎管理
				authorized.POST("/engine/run", adminHandler.RunEngine)
				authorized.POST("/engine/purchases/:id/process", adminHandler.ProcessPurchase)
				authorized.POST("/engine/pool-bonus", adminHandler.GrantPoolBonus)
				authorized.GET("/engine/settings", adminHandler.GetEngineSetting)
				authorized.PUT("/engine/settings", adminHandler.UpdateEngineSetting)
				authorized.GET("/engine/runs", adminHandler.ListBatchRuns)

				// 佣金管理
				authorized.GET("/commissions", adminHandler.ListCommissions)
				authorized.GET("/commissions/:id", adminHandler.GetCommission)
				authorized.POST("/commissions/:id/cancel", adminHandler.CancelCommission)

				// 购买管理
				authorized.GET("/purchases", adminHandler.ListPurchases)
				authorized.GET("/purchases/:id", adminHandler.GetPurchase)
				authorized.GET("/purchases/:id/accruals", adminHandler.ListPurchaseAccruals)
				authorized.POST("/purchases", adminHandler.CreatePurchase)

				// 方案管理
				authorized.GET("/plans", adminHandler.ListPlans)
				authorized.POST("/plans", adminHandler.CreatePlan)
				authorized.PUT("/plans/:id", adminHandler.UpdatePlan)

				// 用户管理
				authorized.GET("/users", adminHandler.ListUsers)
				authorized.POST("/users", adminHandler.CreateUser)
				authorized.GET("/users/:id/earnings", adminHandler.GetUserEarnings)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
