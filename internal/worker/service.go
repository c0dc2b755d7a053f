package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cyclebit-next/internal/config"
	"github.com/cyclebit-next/internal/logger"
	"github.com/cyclebit-next/internal/queue"
	"github.com/cyclebit-next/internal/service"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	batchInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	interval := time.Duration(cfg.Engine.BatchIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	return &Service{
		name:          "worker",
		server:        server,
		mux:           mux,
		consumer:      consumer,
		batchInterval: interval,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.consumer != nil && s.consumer.BatchService != nil {
		go s.runBatchLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runBatchLoop 定时推进全部到期认购
func (s *Service) runBatchLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.BatchService == nil {
		return
	}
	runOnce := func() {
		runID := uuid.New().String()
		report, err := s.consumer.BatchService.Run(ctx, runID, false)
		if err != nil {
			if errors.Is(err, service.ErrDuplicateRun) {
				return
			}
			logger.Warnw("worker_scheduled_batch_failed", "run_id", runID, "error", err)
			return
		}
		logger.Infow("worker_scheduled_batch_done",
			"run_id", runID,
			"processed", report.Processed,
			"skipped", report.Skipped,
			"errors", report.Errors,
		)
	}
	runOnce()

	ticker := time.NewTicker(s.batchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
