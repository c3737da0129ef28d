// Package events 将收支记录变更发布到 RabbitMQ
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"moneytrack/config"
	"moneytrack/ledger"
	"moneytrack/logger"
	"moneytrack/models"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Event 变更事件消息体
type Event struct {
	ID          string             `json:"id"`
	Op          ledger.Op          `json:"op"`
	UserID      uint               `json:"user_id"`
	Transaction models.Transaction `json:"transaction"`
	Count       int                `json:"count"` // 变更后的记录数
	OccurredAt  time.Time          `json:"occurred_at"`
}

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher 未启用事件时使用
type NopPublisher struct{}

// Publish 实现 Publisher
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close 实现 Publisher
func (NopPublisher) Close() error { return nil }

// channel amqp091.Channel 中用到的部分
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPPublisher 发布到 direct 类型的 exchange
type AMQPPublisher struct {
	conn       *amqp091.Connection
	ch         channel
	exchange   string
	routingKey string
	timeout    time.Duration
}

// NewAMQPPublisher 连接 RabbitMQ 并声明 exchange
func NewAMQPPublisher(cfg config.EventsConfig) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := newPublisher(ch, cfg.Exchange, cfg.RoutingKey)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange, routingKey string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange, routingKey: routingKey, timeout: 5 * time.Second}
}

// Publish 以持久化消息发布事件
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    e.ID,
			Type:         string(e.Op),
			Timestamp:    e.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close 关闭 channel 与连接
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Listener 把账本变更转换为事件发布，发布失败只记录日志
type Listener struct {
	pub Publisher
	now func() time.Time
}

// NewListener 创建账本监听
func NewListener(pub Publisher) *Listener {
	return &Listener{pub: pub, now: time.Now}
}

// OnChange 实现 ledger.Listener
func (l *Listener) OnChange(ctx context.Context, change ledger.Change, snapshot []models.Transaction) {
	e := Event{
		ID:          uuid.NewString(),
		Op:          change.Op,
		UserID:      change.UserID,
		Transaction: change.Transaction,
		Count:       len(snapshot),
		OccurredAt:  l.now(),
	}
	log := logger.Component(logger.ComponentEvents)
	if err := l.pub.Publish(context.WithoutCancel(ctx), e); err != nil {
		log.Warn().Err(err).Str("op", string(e.Op)).Uint("user_id", e.UserID).Msg("publish transaction event failed")
		return
	}
	log.Debug().Str("event_id", e.ID).Str("op", string(e.Op)).Msg("transaction event published")
}
