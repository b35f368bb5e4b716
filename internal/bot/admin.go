package bot

import (
	"context"

	"tradeengine/internal/models"
)

// The methods in this file are the CLI/admin surface (§6): toggle
// kill, trigger bulk exit, save/list/delete alert configs. They are
// thin pass-throughs to the Shared Store scoped to
// this engine's user, exposed so an HTTP admin handler never needs
// direct store access.

func (e *Engine) SetKillSwitch(ctx context.Context, enabled bool) error {
	return e.store.SetKill(ctx, e.user, enabled)
}

func (e *Engine) IsKillSwitch(ctx context.Context) (bool, error) {
	return e.store.IsKill(ctx, e.user)
}

// TriggerBulkSquareOff runs BulkSquareOff synchronously; callers that
// want fire-and-forget semantics (the admin HTTP endpoint) should
// invoke it in their own goroutine.
func (e *Engine) TriggerBulkSquareOff(ctx context.Context) {
	e.BulkSquareOff(ctx)
}

func (e *Engine) SaveAlertConfig(ctx context.Context, name string, cfg *models.AlertConfig) error {
	return e.store.SaveAlertConfig(ctx, e.user, NormalizeAlertName(name), cfg)
}

func (e *Engine) ListAlertConfigs(ctx context.Context) (map[string]*models.AlertConfig, error) {
	return e.store.ListAlertConfigs(ctx, e.user)
}

func (e *Engine) DeleteAlertConfig(ctx context.Context, name string) error {
	return e.store.DeleteAlertConfig(ctx, e.user, NormalizeAlertName(name))
}
