package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cyclebit-next/internal/constants"
	"github.com/cyclebit-next/internal/logger"
	"github.com/cyclebit-next/internal/models"
	"github.com/cyclebit-next/internal/repository"
)

// 批次报告明细最多保留条数，防止异常批次撑爆存储
const batchReportDetailLimit = 200

// BatchOptions 批处理运行参数
type BatchOptions struct {
	ChunkSize    int
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
	ChunkPause   time.Duration
}

// NormalizeBatchOptions 归一化批处理参数
func NormalizeBatchOptions(opts BatchOptions) BatchOptions {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 50
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}
	if opts.ChunkPause < 0 {
		opts.ChunkPause = 0
	}
	return opts
}

// BatchItemError 批次内单笔失败明细
type BatchItemError struct {
	PurchaseID uint   `json:"purchase_id"`
	Message    string `json:"message"`
	Attempts   int    `json:"attempts"`
}

// BatchItemSuccess 批次内单笔成功明细
type BatchItemSuccess struct {
	PurchaseID  uint         `json:"purchase_id"`
	Outcome     string       `json:"outcome"`
	Amount      models.Money `json:"amount"`
	CycleNumber int          `json:"cycle_number"`
	DayInCycle  int          `json:"day_in_cycle"`
}

// BatchItemSkip 批次内单笔跳过明细
type BatchItemSkip struct {
	PurchaseID uint   `json:"purchase_id"`
	Reason     string `json:"reason"`
}

// BatchReport 批处理运行报告
type BatchReport struct {
	RunID          string             `json:"run_id"`
	Total          int                `json:"total"`
	Processed      int                `json:"processed"`
	Skipped        int                `json:"skipped"`
	Errors         int                `json:"errors"`
	StartedAt      time.Time          `json:"started_at"`
	FinishedAt     time.Time          `json:"finished_at"`
	SuccessDetails []BatchItemSuccess `json:"success_details,omitempty"`
	SkipReasons    []BatchItemSkip    `json:"skip_reasons,omitempty"`
	Details        []BatchItemError   `json:"details,omitempty"`
}

// BatchService 收益周期批处理服务
//
// 按分块+有界并发推进全部到期认购，单笔之间互不影响，
// 失败单笔按线性退避重试，最终失败只记入报告不拖垮整批。
type BatchService struct {
	purchaseRepo repository.PurchaseRepository
	batchRunRepo repository.BatchRunRepository
	cycleService *CycleService
	opts         BatchOptions
}

// NewBatchService 创建批处理服务
func NewBatchService(
	purchaseRepo repository.PurchaseRepository,
	batchRunRepo repository.BatchRunRepository,
	cycleService *CycleService,
	opts BatchOptions,
) *BatchService {
	return &BatchService{
		purchaseRepo: purchaseRepo,
		batchRunRepo: batchRunRepo,
		cycleService: cycleService,
		opts:         NormalizeBatchOptions(opts),
	}
}

// Run 执行一次批处理，runID 由调用方提供并贯穿全部落账记录
func (s *BatchService) Run(ctx context.Context, runID string, force bool) (*BatchReport, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, errors.New("run_id 不能为空")
	}

	startedAt := time.Now()
	run := &models.BatchRun{
		RunID:     runID,
		Status:    constants.BatchRunStatusRunning,
		StartedAt: startedAt,
	}
	if err := s.batchRunRepo.Create(run); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRun
		}
		return nil, err
	}

	ids, err := s.purchaseRepo.ListDueIDs(startedAt, force)
	if err != nil {
		s.finalizeRun(run, nil, constants.BatchRunStatusAborted)
		return nil, err
	}

	report := &BatchReport{
		RunID:     runID,
		Total:     len(ids),
		StartedAt: startedAt,
	}
	logger.Infow("batch_run_started",
		"run_id", runID,
		"total", len(ids),
		"force", force,
		"chunk_size", s.opts.ChunkSize,
		"concurrency", s.opts.Concurrency,
	)

	aborted := false
	for start := 0; start < len(ids); start += s.opts.ChunkSize {
		if ctx.Err() != nil {
			aborted = true
			break
		}
		end := start + s.opts.ChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		s.processChunk(ctx, ids[start:end], runID, force, report)

		if end < len(ids) && s.opts.ChunkPause > 0 {
			select {
			case <-ctx.Done():
				aborted = true
			case <-time.After(s.opts.ChunkPause):
			}
			if aborted {
				break
			}
		}
	}

	report.FinishedAt = time.Now()
	status := constants.BatchRunStatusFinished
	if aborted {
		status = constants.BatchRunStatusAborted
	}
	s.finalizeRun(run, report, status)
	logger.Infow("batch_run_finished",
		"run_id", runID,
		"status", status,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"errors", report.Errors,
		"duration_ms", report.FinishedAt.Sub(startedAt).Milliseconds(),
	)
	return report, nil
}

// processChunk 以有界并发处理一个分块
func (s *BatchService) processChunk(ctx context.Context, ids []uint, runID string, force bool, report *BatchReport) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, s.opts.Concurrency)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(purchaseID uint) {
			defer wg.Done()
			defer func() { <-sem }()

			result, attempts, err := s.processWithRetry(ctx, purchaseID, runID, force)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Errors++
				if len(report.Details) < batchReportDetailLimit {
					report.Details = append(report.Details, BatchItemError{
						PurchaseID: purchaseID,
						Message:    err.Error(),
						Attempts:   attempts,
					})
				}
			case result.Outcome == constants.ProcessOutcomeSkipped:
				report.Skipped++
				if len(report.SkipReasons) < batchReportDetailLimit {
					report.SkipReasons = append(report.SkipReasons, BatchItemSkip{
						PurchaseID: purchaseID,
						Reason:     result.SkipReason,
					})
				}
			default:
				report.Processed++
				if len(report.SuccessDetails) < batchReportDetailLimit {
					report.SuccessDetails = append(report.SuccessDetails, BatchItemSuccess{
						PurchaseID:  purchaseID,
						Outcome:     result.Outcome,
						Amount:      result.Amount,
						CycleNumber: result.CycleNumber,
						DayInCycle:  result.DayInCycle,
					})
				}
			}
		}(id)
	}
	wg.Wait()
}

// processWithRetry 处理单笔认购，仅对可重试错误做线性退避重试
func (s *BatchService) processWithRetry(ctx context.Context, purchaseID uint, runID string, force bool) (*ProcessResult, int, error) {
	var result *ProcessResult
	var err error

	attempts := 0
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		attempts = attempt + 1
		result, err = s.cycleService.ProcessPurchase(ctx, ProcessInput{
			PurchaseID: purchaseID,
			RunID:      runID,
			Force:      force,
		})
		if err == nil {
			return result, attempts, nil
		}
		if !isRetryableError(err) || attempt == s.opts.MaxRetries {
			break
		}
		backoff := s.opts.RetryBackoff * time.Duration(attempt+1)
		logger.Warnw("purchase_process_retry",
			"purchase_id", purchaseID,
			"run_id", runID,
			"attempt", attempts,
			"backoff_ms", backoff.Milliseconds(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return result, attempts, err
		case <-time.After(backoff):
		}
	}
	return result, attempts, err
}

// finalizeRun 回写批次运行记录
func (s *BatchService) finalizeRun(run *models.BatchRun, report *BatchReport, status string) {
	run.Status = status
	if report != nil {
		run.ProcessedCount = report.Processed
		run.SkippedCount = report.Skipped
		run.ErrorCount = report.Errors
		finishedAt := report.FinishedAt
		if finishedAt.IsZero() {
			finishedAt = time.Now()
		}
		run.FinishedAt = &finishedAt
		details := models.JSON{}
		if len(report.SuccessDetails) > 0 {
			successes := make([]interface{}, 0, len(report.SuccessDetails))
			for _, item := range report.SuccessDetails {
				successes = append(successes, map[string]interface{}{
					"purchase_id":  item.PurchaseID,
					"outcome":      item.Outcome,
					"amount":       item.Amount.String(),
					"cycle_number": item.CycleNumber,
					"day_in_cycle": item.DayInCycle,
				})
			}
			details["successes"] = successes
		}
		if len(report.SkipReasons) > 0 {
			skips := make([]interface{}, 0, len(report.SkipReasons))
			for _, item := range report.SkipReasons {
				skips = append(skips, map[string]interface{}{
					"purchase_id": item.PurchaseID,
					"reason":      item.Reason,
				})
			}
			details["skips"] = skips
		}
		if len(report.Details) > 0 {
			errs := make([]interface{}, 0, len(report.Details))
			for _, item := range report.Details {
				errs = append(errs, map[string]interface{}{
					"purchase_id": item.PurchaseID,
					"message":     item.Message,
					"attempts":    item.Attempts,
				})
			}
			details["errors"] = errs
		}
		if len(details) > 0 {
			run.Details = details
		}
	} else {
		finishedAt := time.Now()
		run.FinishedAt = &finishedAt
	}
	if err := s.batchRunRepo.Update(run); err != nil {
		logger.Errorw("batch_run_persist_failed", "run_id", run.RunID, "error", err)
	}
}

// ListRuns 查询批次运行记录
func (s *BatchService) ListRuns(filter repository.BatchRunListFilter) ([]models.BatchRun, int64, error) {
	return s.batchRunRepo.List(filter)
}

// GetRun 按运行ID查询批次记录
func (s *BatchService) GetRun(runID string) (*models.BatchRun, error) {
	run, err := s.batchRunRepo.GetByRunID(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNotFound
	}
	return run, nil
}

// isRetryableError 域内确定性失败不重试，仅持久化类错误可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrRateMissing) &&
		!errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrPurchaseNotActive) &&
		!errors.Is(err, ErrPurchaseCompleted)
}
