package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer drains the notification queue and stands in for email and push
// delivery by appending one line per event to dir/notifications.log.
type Consumer struct {
    URL   string
    Queue string
    Dir   string
}

// NewConsumer builds a Consumer writing under dir.
func NewConsumer(url, queue, dir string) *Consumer {
    return &Consumer{URL: url, Queue: queue, Dir: dir}
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) {
    backoff := time.Second
    for ctx.Err() == nil {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            log.Printf("notify-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleepCtx(ctx, backoff) {
                return
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return
        }
        log.Printf("notify-consumer: consume loop ended: %v; reconnecting", err)
        if !sleepCtx(ctx, 2*time.Second) {
            return
        }
    }
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("notify-consumer: set QoS failed: %v", err)
    }
    if _, err := declareQueue(ch, c.Queue); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handleMessage(d.Body); err != nil {
                log.Printf("notify-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false) // no requeue, avoids a poison-message loop
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *Consumer) handleMessage(body []byte) error {
    var ev Event
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Type == "" {
        return errors.New("event without type")
    }
    if err := os.MkdirAll(c.Dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", c.Dir, err)
    }
    f, err := os.OpenFile(filepath.Join(c.Dir, "notifications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func formatLine(ev Event) string {
    line := fmt.Sprintf("[%s] %s | event_id=%s | ride_id=%d",
        ev.OccurredAt.Format(time.RFC3339), ev.Type, ev.ID, ev.RideID)
    if ev.ReservationID != 0 {
        line += fmt.Sprintf(" | reservation_id=%d | passenger_id=%d", ev.ReservationID, ev.PassengerID)
    }
    if ev.DriverID != 0 {
        line += fmt.Sprintf(" | driver_id=%d", ev.DriverID)
    }
    if ev.AmountCents != 0 {
        line += fmt.Sprintf(" | amount=%d cents", ev.AmountCents)
    }
    if ev.Reason != "" {
        line += " | reason=" + ev.Reason
    }
    return line + fmt.Sprintf(" | seats_available=%d\n", ev.SeatsAvailable)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
