package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/cyclebit-next/internal/logger"
	"github.com/cyclebit-next/internal/provider"
	"github.com/cyclebit-next/internal/queue"
	"github.com/cyclebit-next/internal/service"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskEngineBatchRun, c.handleEngineBatchRun)
	mux.HandleFunc(queue.TaskPurchaseProcess, c.handlePurchaseProcess)
}

func (c *Consumer) handleEngineBatchRun(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_batch_run_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.EngineBatchRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_batch_run_unmarshal_failed", "error", err)
		return err
	}
	runID := strings.TrimSpace(payload.RunID)
	if runID == "" {
		runID = uuid.New().String()
	}
	if c.BatchService == nil {
		logger.Warnw("worker_batch_run_skip_batch_service_nil", "run_id", runID)
		return nil
	}
	report, err := c.BatchService.Run(ctx, runID, payload.Force)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateRun) {
			logger.Debugw("worker_batch_run_skip_duplicate", "run_id", runID)
			return nil
		}
		logger.Warnw("worker_batch_run_failed", "run_id", runID, "error", err)
		return err
	}
	logger.Infow("worker_batch_run_done",
		"run_id", runID,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"errors", report.Errors,
	)
	return nil
}

func (c *Consumer) handlePurchaseProcess(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_purchase_process_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PurchaseProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_purchase_process_unmarshal_failed", "error", err)
		return err
	}
	if payload.PurchaseID == 0 {
		logger.Debugw("worker_purchase_process_skip_invalid_payload", "purchase_id", payload.PurchaseID)
		return nil
	}
	if c.CycleService == nil {
		logger.Warnw("worker_purchase_process_skip_cycle_service_nil", "purchase_id", payload.PurchaseID)
		return nil
	}
	runID := strings.TrimSpace(payload.RunID)
	if runID == "" {
		runID = uuid.New().String()
	}
	_, err := c.CycleService.ProcessPurchase(ctx, service.ProcessInput{
		PurchaseID: payload.PurchaseID,
		RunID:      runID,
		Force:      payload.Force,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_purchase_process_skip_not_found", "purchase_id", payload.PurchaseID)
			return nil
		case errors.Is(err, service.ErrRateMissing):
			logger.Warnw("worker_purchase_process_rate_missing", "purchase_id", payload.PurchaseID)
			return nil
		default:
			logger.Warnw("worker_purchase_process_failed", "purchase_id", payload.PurchaseID, "error", err)
			return err
		}
	}
	return nil
}
