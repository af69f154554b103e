package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"

	"contest-service/internal/domain"
)

// RoutingKeyWinner is the routing key the notification service binds on.
const RoutingKeyWinner = "contest.winner"

// WinnerPublisher emits winner signals to a RabbitMQ topic exchange. The
// notification fan-out is a separate consumer; a publish failure is reported
// to the caller but never affects the scoring transaction, which has already
// committed.
type WinnerPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewWinnerPublisher(url, exchange string) (*WinnerPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &WinnerPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *WinnerPublisher) PublishWinner(_ context.Context, signal domain.WinnerSignal) error {
	body, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal winner signal: %w", err)
	}
	return p.channel.Publish(
		p.exchange,
		RoutingKeyWinner,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   signal.EventID,
			Timestamp:   signal.OccurredAt,
			Body:        body,
		},
	)
}

func (p *WinnerPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
