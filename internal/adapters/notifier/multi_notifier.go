package notifier_adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
	"github.com/ivanychev/otodom-monitoring/internal/core/port"
)

// MultiNotifier размножает оповещения по нескольким каналам (Telegram +
// RabbitMQ). Ошибки каналов собираются, а не обрывают рассылку на первом
// отказе.
type MultiNotifier struct {
	notifiers []port.NotifierPort
}

func NewMultiNotifier(notifiers ...port.NotifierPort) (port.NotifierPort, error) {
	if len(notifiers) == 0 {
		return nil, fmt.Errorf("multinotifier: at least one notifier is required")
	}
	if len(notifiers) == 1 {
		return notifiers[0], nil
	}
	return &MultiNotifier{notifiers: notifiers}, nil
}

func (m *MultiNotifier) NotifyNew(ctx context.Context, flat domain.Flat, filterName string) error {
	var errs []error
	for _, n := range m.notifiers {
		errs = append(errs, n.NotifyNew(ctx, flat, filterName))
	}
	return errors.Join(errs...)
}

func (m *MultiNotifier) NotifyUpdated(ctx context.Context, flat domain.Flat, filterName string) error {
	var errs []error
	for _, n := range m.notifiers {
		errs = append(errs, n.NotifyUpdated(ctx, flat, filterName))
	}
	return errors.Join(errs...)
}

func (m *MultiNotifier) NotifySummary(ctx context.Context, report domain.CycleReport) error {
	var errs []error
	for _, n := range m.notifiers {
		errs = append(errs, n.NotifySummary(ctx, report))
	}
	return errors.Join(errs...)
}

func (m *MultiNotifier) NotifyError(ctx context.Context, runErr error) error {
	var errs []error
	for _, n := range m.notifiers {
		errs = append(errs, n.NotifyError(ctx, runErr))
	}
	return errors.Join(errs...)
}

func (m *MultiNotifier) NotifyText(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m.notifiers {
		errs = append(errs, n.NotifyText(ctx, text))
	}
	return errors.Join(errs...)
}
