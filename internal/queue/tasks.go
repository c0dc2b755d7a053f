package queue

import (
	"encoding/json"

	"github.com/cyclebit-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskEngineBatchRun 收益周期批处理任务
	TaskEngineBatchRun = constants.TaskEngineBatchRun
	// TaskPurchaseProcess 单笔认购推进任务
	TaskPurchaseProcess = constants.TaskPurchaseProcess
)

// EngineBatchRunPayload 批处理任务载荷
type EngineBatchRunPayload struct {
	RunID string `json:"run_id"`
	Force bool   `json:"force"`
}

// PurchaseProcessPayload 单笔认购推进任务载荷
type PurchaseProcessPayload struct {
	PurchaseID uint   `json:"purchase_id"`
	RunID      string `json:"run_id"`
	Force      bool   `json:"force"`
}

// NewEngineBatchRunTask 创建批处理任务
func NewEngineBatchRunTask(payload EngineBatchRunPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEngineBatchRun, body), nil
}

// NewPurchaseProcessTask 创建单笔认购推进任务
func NewPurchaseProcessTask(payload PurchaseProcessPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurchaseProcess, body), nil
}
