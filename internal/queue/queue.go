package queue

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/motifs/internal/util"
)

const (
	BuildQueue = "graph_build_queue"
	MineQueue  = "motif_mine_queue"

	retryTTL = 10 * time.Second
)

// Queues are the job queues consumed by the worker.
var Queues = []string{BuildQueue, MineQueue}

type Config struct {
	User     string
	Password string
	Host     string
	Port     string
}

// ConfigFromEnv reads the RABBITMQ_* variables.
func ConfigFromEnv() Config {
	return Config{
		User:     util.GetEnvString("RABBITMQ_USER", "guest"),
		Password: util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
		Host:     util.GetEnvString("RABBITMQ_HOST", "localhost"),
		Port:     util.GetEnvString("RABBITMQ_PORT", "5672"),
	}
}

func (c Config) URL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   "/",
	}
	return u.String()
}

func Init(cfg Config) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ at %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	return conn, nil
}

// Declarer declares queues. *amqp091.Channel implements it.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

// Publisher publishes messages. *amqp091.Channel implements it.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func retryName(queueName string) string { return queueName + "_retry" }
func dlqName(queueName string) string   { return queueName + "_dlq" }

// SetupQueues declares every queue with its dead-letter queue and its retry
// queue. Messages in the retry queue return to the main queue after retryTTL.
func SetupQueues(ch Declarer, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		dlq := dlqName(name)
		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", dlq, err)
		}

		retry := retryName(name)
		_, err := ch.QueueDeclare(
			retry,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			amqp091.Table{
				"x-message-ttl":             int32(retryTTL.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", retry, err)
		}
	}
	return nil
}

// PublishFIFO publishes a persistent message to a queue on the default
// exchange.
func PublishFIFO(ctx context.Context, ch Publisher, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}
	return nil
}
