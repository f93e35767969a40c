package notifier_adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
	"github.com/ivanychev/otodom-monitoring/internal/core/port"
)

type countingNotifier struct {
	calls int
	err   error
}

func (n *countingNotifier) NotifyNew(context.Context, domain.Flat, string) error {
	n.calls++
	return n.err
}
func (n *countingNotifier) NotifyUpdated(context.Context, domain.Flat, string) error {
	n.calls++
	return n.err
}
func (n *countingNotifier) NotifySummary(context.Context, domain.CycleReport) error {
	n.calls++
	return n.err
}
func (n *countingNotifier) NotifyError(context.Context, error) error {
	n.calls++
	return n.err
}
func (n *countingNotifier) NotifyText(context.Context, string) error {
	n.calls++
	return n.err
}

func TestNewMultiNotifierRequiresAtLeastOne(t *testing.T) {
	if _, err := NewMultiNotifier(); err == nil {
		t.Error("expected an error for zero notifiers")
	}
}

func TestNewMultiNotifierUnwrapsASingleNotifier(t *testing.T) {
	single := &countingNotifier{}
	got, err := NewMultiNotifier(single)
	if err != nil {
		t.Fatalf("NewMultiNotifier failed: %v", err)
	}
	if got != port.NotifierPort(single) {
		t.Error("a single notifier must be returned as is, without wrapping")
	}
}

func TestMultiNotifierFansOutToEveryChannel(t *testing.T) {
	first := &countingNotifier{}
	second := &countingNotifier{err: errors.New("rabbitmq is down")}
	multi, err := NewMultiNotifier(first, second)
	if err != nil {
		t.Fatalf("NewMultiNotifier failed: %v", err)
	}

	notifyErr := multi.NotifyNew(context.Background(), domain.Flat{URL: "https://x"}, "warsaw")
	if notifyErr == nil {
		t.Error("expected the failing channel error to surface")
	}
	// Отказ одного канала не мешает доставке в остальные.
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("expected both channels to be called, got %d and %d", first.calls, second.calls)
	}
}
