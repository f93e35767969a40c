package rabbitmq_adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ivanychev/otodom-monitoring/internal/contextkeys"
	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
	"github.com/ivanychev/otodom-monitoring/internal/core/port"
)

// Routing keys событий.
const (
	routingKeyNew     = "flats.new"
	routingKeyUpdated = "flats.updated"
	routingKeySummary = "flats.summary"
	routingKeyError   = "flats.error"
	routingKeyInfo    = "flats.info"
)

// FlatEventsPublisher реализует NotifierPort поверх RabbitMQ: каждое
// событие цикла публикуется персистентным JSON-сообщением в topic-обменник.
// Подписчики (аналитика, другие боты) разбирают их независимо от Telegram.
type FlatEventsPublisher struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	logger     port.LoggerPort
}

// flatEvent — формат сообщения в очереди.
type flatEvent struct {
	Event      string              `json:"event"`
	FilterName string              `json:"filter_name,omitempty"`
	Flat       *domain.Flat        `json:"flat,omitempty"`
	Report     *domain.CycleReport `json:"report,omitempty"`
	Error      string              `json:"error,omitempty"`
	Text       string              `json:"text,omitempty"`
	CycleID    string              `json:"cycle_id,omitempty"`
	EmittedAt  time.Time           `json:"emitted_at"`
}

// NewFlatEventsPublisher подключается к RabbitMQ и объявляет обменник.
func NewFlatEventsPublisher(url, exchange string, logger port.LoggerPort) (*FlatEventsPublisher, error) {
	if exchange == "" {
		return nil, fmt.Errorf("rabbitmq publisher: exchange name is required")
	}
	connection, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq publisher: failed to dial: %w", err)
	}
	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("rabbitmq publisher: failed to open a channel: %w", err)
	}
	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = channel.Close()
		_ = connection.Close()
		return nil, fmt.Errorf("rabbitmq publisher: failed to declare exchange %q: %w", exchange, err)
	}
	return &FlatEventsPublisher{
		connection: connection,
		channel:    channel,
		exchange:   exchange,
		logger:     logger.WithFields(port.Fields{"component": "FlatEventsPublisher"}),
	}, nil
}

func (p *FlatEventsPublisher) NotifyNew(ctx context.Context, flat domain.Flat, filterName string) error {
	return p.publish(ctx, routingKeyNew, flatEvent{Event: "new", FilterName: filterName, Flat: &flat})
}

func (p *FlatEventsPublisher) NotifyUpdated(ctx context.Context, flat domain.Flat, filterName string) error {
	return p.publish(ctx, routingKeyUpdated, flatEvent{Event: "updated", FilterName: filterName, Flat: &flat})
}

func (p *FlatEventsPublisher) NotifySummary(ctx context.Context, report domain.CycleReport) error {
	return p.publish(ctx, routingKeySummary, flatEvent{Event: "summary", FilterName: report.FilterName, Report: &report})
}

func (p *FlatEventsPublisher) NotifyError(ctx context.Context, runErr error) error {
	return p.publish(ctx, routingKeyError, flatEvent{Event: "error", Error: runErr.Error()})
}

func (p *FlatEventsPublisher) NotifyText(ctx context.Context, text string) error {
	return p.publish(ctx, routingKeyInfo, flatEvent{Event: "info", Text: text})
}

func (p *FlatEventsPublisher) publish(ctx context.Context, routingKey string, event flatEvent) error {
	event.EmittedAt = time.Now().UTC()
	event.CycleID = contextkeys.CycleIDFromContext(ctx)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("rabbitmq publisher: failed to marshal event: %w", err)
	}
	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.EmittedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq publisher: failed to publish %s: %w", routingKey, err)
	}
	p.logger.Debug("Published a flat event", port.Fields{"routing_key": routingKey})
	return nil
}

// Close закрывает канал и соединение.
func (p *FlatEventsPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		_ = p.connection.Close()
		return fmt.Errorf("rabbitmq publisher: failed to close channel: %w", err)
	}
	return p.connection.Close()
}
