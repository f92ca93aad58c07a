package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskWindowFire = "windows.fire"

// WindowFirePayload identifies the correlation item whose maintenance
// window opened.
type WindowFirePayload struct {
	OpsItemID  string `json:"opsItemId"`
	Deployment string `json:"deployment"`
}

func NewWindowFireTask(payload WindowFirePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWindowFire, data), nil
}

func ParseWindowFirePayload(task *asynq.Task) (WindowFirePayload, error) {
	var payload WindowFirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WindowFirePayload{}, err
	}
	return payload, nil
}
