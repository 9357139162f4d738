package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Transaction runs a sequence of single-table writes. When a step fails, the
// compensations of the steps that already succeeded run in reverse order.
type Transaction struct {
	steps []step
	log   logrus.FieldLogger
}

type step struct {
	name       string
	fn         func(context.Context) error
	compensate func(context.Context) error
}

func NewTransaction(log logrus.FieldLogger) *Transaction {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transaction{log: log}
}

// AddOperation appends a step. compensate may be nil for a step with nothing
// to undo.
func (t *Transaction) AddOperation(name string, fn, compensate func(context.Context) error) {
	t.steps = append(t.steps, step{name: name, fn: fn, compensate: compensate})
}

func (t *Transaction) Execute(ctx context.Context) error {
	for i, s := range t.steps {
		if err := s.fn(ctx); err != nil {
			t.rollback(ctx, i)
			return fmt.Errorf("operation '%s' failed: %w (rolled back %d operations)", s.name, err, i)
		}
	}
	return nil
}

func (t *Transaction) rollback(ctx context.Context, failedAt int) {
	for i := failedAt - 1; i >= 0; i-- {
		s := t.steps[i]
		if s.compensate == nil {
			continue
		}
		if err := s.compensate(ctx); err != nil {
			t.log.WithError(err).WithField("operation", s.name).Error("compensation failed, records may be inconsistent")
		}
	}
}
