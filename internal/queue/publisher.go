package queue

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends events to a durable RabbitMQ queue on the default
// exchange.  A connection is dialled per publish, so a broker outage only
// costs the events published while it lasts.
type Publisher struct {
    URL   string
    Queue string
}

// NewPublisher returns a Publisher for the given broker URL and queue name.
func NewPublisher(url, queue string) *Publisher {
    return &Publisher{URL: url, Queue: queue}
}

// Publish marshals ev and sends it as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := declareQueue(ch, p.Queue); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    return ch.PublishWithContext(ctx, "", p.Queue, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        MessageId:    ev.ID,
        Type:         string(ev.Type),
        Timestamp:    time.Now().UTC(),
        Body:         body,
    })
}

// declareQueue makes sure the durable queue exists.  Publisher and consumer
// must agree on its arguments or the broker rejects the second declaration.
func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
    return ch.QueueDeclare(
        name,
        true,  // durable
        false, // autoDelete
        false, // exclusive
        false, // noWait
        nil,
    )
}
