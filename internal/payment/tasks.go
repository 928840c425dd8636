package payment

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/asheth-dev/backend-daan/internal/lock"
)

// TypeReconcile is the asynq task type for the pending-intent sweep.
const TypeReconcile = "payment:reconcile"

// reconcileLockName serialises sweeps across worker replicas.
const reconcileLockName = "payment-reconcile"

// NewReconcileTask builds the periodic reconciliation task. It carries no
// payload; the sweep derives everything it needs from the database.
func NewReconcileTask() *asynq.Task {
	return asynq.NewTask(TypeReconcile, nil)
}

// ReconcileTaskHandler runs the reconciler under a distributed lock so only
// one worker replica sweeps at a time.
type ReconcileTaskHandler struct {
	Reconciler *Reconciler
	Locker     *lock.Locker
	Logger     zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h *ReconcileTaskHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	lease, err := h.Locker.Acquire(ctx, reconcileLockName)
	if errors.Is(err, lock.ErrNotAcquired) {
		h.Logger.Debug().Msg("reconcile sweep already running elsewhere")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := lease.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			h.Logger.Warn().Err(releaseErr).Msg("reconcile lock release failed")
		}
	}()

	resolved, err := h.Reconciler.Run(ctx)
	if err != nil {
		h.Logger.Error().Err(err).Msg("reconcile sweep failed")
		return err
	}
	h.Logger.Info().Int("resolved", resolved).Msg("reconcile sweep finished")
	return nil
}
