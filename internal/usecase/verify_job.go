package usecase

import (
	"context"
	"time"

	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/queue"
)

// VerifyDueType is the queue message type that triggers a verification sweep.
const VerifyDueType = "verify.due"

// VerifyDuePayload asks the worker for one sweep, optionally followed by a
// retrain cycle.
type VerifyDuePayload struct {
	RequestedAt time.Time `json:"requested_at"`
	Retrain     bool      `json:"retrain"`
}

// VerifyDueJob runs verification sweeps off the shared queue so exactly one
// worker grades each batch even with several instances running.
type VerifyDueJob struct {
	uc  *VerificationUseCase
	log *applogger.Logger
}

func NewVerifyDueJob(uc *VerificationUseCase, log *applogger.Logger) *VerifyDueJob {
	return &VerifyDueJob{uc: uc, log: log}
}

func (j *VerifyDueJob) Name() string { return "prediction-verifier" }

func (j *VerifyDueJob) Type() string { return VerifyDueType }

func (j *VerifyDueJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[VerifyDuePayload](payload)
	if err != nil {
		return err
	}

	n, err := j.uc.RunDue(ctx)
	if err != nil {
		return err
	}
	if req.Retrain && n > 0 {
		if err := j.uc.RetrainCycle(ctx); err != nil {
			// retrain trouble must not requeue the sweep
			j.log.Warn("retrain cycle failed", applogger.Error(err))
		}
	}
	return nil
}

var _ queue.Job = (*VerifyDueJob)(nil)
