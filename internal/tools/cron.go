package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tinyclaw-run/tinyclaw/internal/scheduler"
)

// CronTool exposes create/list/enable/disable/delete over a Scheduler
// as a single tool, dispatching on an "action" argument.
type CronTool struct {
	sched *scheduler.Scheduler
}

func NewCronTool(sched *scheduler.Scheduler) *CronTool {
	return &CronTool{sched: sched}
}

func (t *CronTool) Name() string        { return "cron" }
func (t *CronTool) Description() string {
	return "Create, list, enable, disable, or delete scheduled jobs."
}
func (t *CronTool) ParametersSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action":  map[string]interface{}{"type": "string", "enum": []string{"create", "list", "enable", "disable", "delete"}},
			"id":      map[string]interface{}{"type": "string", "description": "Job id (required for enable/disable/delete)."},
			"name":    map[string]interface{}{"type": "string", "description": "Job name (for create)."},
			"kind":    map[string]interface{}{"type": "string", "enum": []string{"CRON", "EVERY", "AT"}, "description": "Schedule kind (for create)."},
			"expr":    map[string]interface{}{"type": "string", "description": "Cron expression, when kind=CRON."},
			"everyMs": map[string]interface{}{"type": "integer", "description": "Interval in milliseconds, when kind=EVERY."},
			"atMs":    map[string]interface{}{"type": "integer", "description": "Unix ms timestamp, when kind=AT."},
			"message": map[string]interface{}{"type": "string", "description": "Synthetic user message to run on firing (for create)."},
			"deliver": map[string]interface{}{"type": "boolean", "description": "Whether to deliver the result to channel/chatId (for create)."},
			"channel": map[string]interface{}{"type": "string", "description": "Target channel (for create, optional)."},
			"chatId":  map[string]interface{}{"type": "string", "description": "Target chat id (for create, optional)."},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	action, _ := args["action"].(string)
	switch action {
	case "create":
		return t.create(args)
	case "list":
		return t.list()
	case "enable":
		return t.toggle(args, true)
	case "disable":
		return t.toggle(args, false)
	case "delete":
		return t.delete(args)
	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}

func (t *CronTool) create(args map[string]interface{}) (string, error) {
	name, _ := args["name"].(string)
	kind, _ := args["kind"].(string)
	expr, _ := args["expr"].(string)
	message, _ := args["message"].(string)
	deliver, _ := args["deliver"].(bool)
	channel, _ := args["channel"].(string)
	chatID, _ := args["chatId"].(string)

	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message is required")
	}

	sched := scheduler.Schedule{Kind: scheduler.ScheduleKind(kind), Expr: expr}
	if v, ok := args["everyMs"].(float64); ok {
		sched.EveryMs = int64(v)
	}
	if v, ok := args["atMs"].(float64); ok {
		sched.AtMs = int64(v)
	}

	job := &scheduler.CronJob{
		ID:       uuid.NewString(),
		Name:     name,
		Schedule: sched,
		Payload: scheduler.Payload{
			Message: message,
			Deliver: deliver,
			Channel: channel,
			ChatID:  chatID,
		},
		Enabled: true,
	}
	if err := t.sched.Add(job); err != nil {
		return "", fmt.Errorf("schedule error: %w", err)
	}
	return fmt.Sprintf("Created job %s", job.ID), nil
}

func (t *CronTool) list() (string, error) {
	jobs := t.sched.List()
	if len(jobs) == 0 {
		return "No scheduled jobs.", nil
	}
	var b strings.Builder
	for _, j := range jobs {
		status := "disabled"
		if j.Enabled {
			status = "enabled"
		}
		fmt.Fprintf(&b, "%s (%s) [%s] next=%d\n", j.ID, j.Name, status, j.State.NextRunAtMs)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (t *CronTool) toggle(args map[string]interface{}, enable bool) (string, error) {
	id, _ := args["id"].(string)
	if id == "" {
		return "", fmt.Errorf("id is required")
	}
	var err error
	if enable {
		err = t.sched.Enable(id)
	} else {
		err = t.sched.Disable(id)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Job %s updated", id), nil
}

func (t *CronTool) delete(args map[string]interface{}) (string, error) {
	id, _ := args["id"].(string)
	if id == "" {
		return "", fmt.Errorf("id is required")
	}
	if err := t.sched.Delete(id); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted job %s", id), nil
}
