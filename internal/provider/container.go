package provider

import (
	"time"

	"github.com/cyclebit-next/internal/cache"
	"github.com/cyclebit-next/internal/config"
	"github.com/cyclebit-next/internal/logger"
	"github.com/cyclebit-next/internal/models"
	"github.com/cyclebit-next/internal/queue"
	"github.com/cyclebit-next/internal/repository"
	"github.com/cyclebit-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo      repository.AdminRepository
	UserRepo       repository.UserRepository
	PlanRepo       repository.PlanRepository
	PurchaseRepo   repository.PurchaseRepository
	StateRepo      repository.SubscriptionStateRepository
	AccrualRepo    repository.AccrualRepository
	CommissionRepo repository.CommissionRepository
	BatchRunRepo   repository.BatchRunRepository
	SettingRepo    repository.SettingRepository

	// Services
	AuthService       *service.AuthService
	SettingService    *service.SettingService
	PlanService       *service.PlanService
	PurchaseService   *service.PurchaseService
	CommissionService *service.CommissionService
	CycleService      *service.CycleService
	BatchService      *service.BatchService
	EarningsService   *service.EarningsService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.PlanRepo = repository.NewPlanRepository(db)
	c.PurchaseRepo = repository.NewPurchaseRepository(db)
	c.StateRepo = repository.NewSubscriptionStateRepository(db)
	c.AccrualRepo = repository.NewAccrualRepository(db)
	c.CommissionRepo = repository.NewCommissionRepository(db)
	c.BatchRunRepo = repository.NewBatchRunRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initServices() {
	c.SettingService = service.NewSettingService(c.SettingRepo)
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.PlanService = service.NewPlanService(c.PlanRepo)
	c.PurchaseService = service.NewPurchaseService(c.PurchaseRepo, c.StateRepo, c.PlanRepo, c.UserRepo)
	c.CommissionService = service.NewCommissionService(c.CommissionRepo, c.UserRepo, c.AccrualRepo, c.PurchaseRepo, c.SettingService)
	c.CycleService = service.NewCycleService(c.PurchaseRepo, c.StateRepo, c.AccrualRepo, c.PlanRepo, c.CommissionService, c.SettingService)
	c.BatchService = service.NewBatchService(c.PurchaseRepo, c.BatchRunRepo, c.CycleService, service.BatchOptions{
		ChunkSize:    c.Config.Engine.ChunkSize,
		Concurrency:  c.Config.Engine.Concurrency,
		MaxRetries:   c.Config.Engine.MaxRetries,
		RetryBackoff: time.Duration(c.Config.Engine.RetryBackoffMS) * time.Millisecond,
		ChunkPause:   time.Duration(c.Config.Engine.ChunkPauseMS) * time.Millisecond,
	})
	c.EarningsService = service.NewEarningsService(c.UserRepo, c.AccrualRepo, c.CommissionRepo)
}
