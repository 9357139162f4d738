package usecase

import (
	"context"

	"github.com/xavierca1/firm-backoffice/internal/entity"
)

// Mailer delivers the optional e-mails that follow a public submission.
// Failures are logged by the caller and never fail the submission.
type Mailer interface {
	SendContactNotification(ctx context.Context, kind entity.LeadKind, lead entity.Lead) error
	SendWhistleblowerReceipt(ctx context.Context, to, trackingCode string) error
}

// Recorder receives business events worth counting.
type Recorder interface {
	RateLimited(action string, failClosed bool)
	StuckReset(queue entity.QueueKind, n int)
	LeasesReclaimed(queue entity.QueueKind, n int)
}

type nopRecorder struct{}

func (nopRecorder) RateLimited(string, bool) {}
func (nopRecorder) StuckReset(entity.QueueKind, int) {}
func (nopRecorder) LeasesReclaimed(entity.QueueKind, int) {}
