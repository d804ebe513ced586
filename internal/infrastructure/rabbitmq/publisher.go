package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sanosuguru/place-seat-reservation/internal/config"
	"github.com/sanosuguru/place-seat-reservation/internal/domain/seat"
)

// Publisher は座席変更イベントを RabbitMQ のキューへ送信する
type Publisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher はブローカーに接続し、キューを宣言する
func NewPublisher(cfg *config.AMQPConfig) (*Publisher, error) {
	p := &Publisher{url: cfg.URL, queue: cfg.Queue}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect は mu を保持した状態で呼ぶこと
func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("RabbitMQ接続に失敗しました: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("チャネルのオープンに失敗しました: %w", err)
	}
	// durable: ブローカー再起動後もキューを残す
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("キュー宣言に失敗しました: %w", err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// Publish はイベントに ID を付与して送信する
func (p *Publisher) Publish(ctx context.Context, event seat.ChangedEvent) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.closeLocked()
		if err := p.connect(); err != nil {
			return err
		}
	}

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("イベント送信に失敗しました: %w", err)
	}
	return nil
}

// Close は接続を閉じる
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil && !p.conn.IsClosed() {
		err = p.conn.Close()
	}
	p.conn = nil
	return err
}

func newPublishing(event seat.ChangedEvent) (amqp.Publishing, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("イベントのシリアライズに失敗しました: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         string(event.Type),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}
