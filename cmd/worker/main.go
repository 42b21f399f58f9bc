package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/motifs/internal/pipeline"
	"github.com/OFFIS-RIT/motifs/internal/queue"
	"github.com/OFFIS-RIT/motifs/internal/storage"
	"github.com/OFFIS-RIT/motifs/internal/util"
	"github.com/OFFIS-RIT/motifs/pkg/leaselock"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/logger/console"
	pgstore "github.com/OFFIS-RIT/motifs/pkg/store/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		JSON:   util.GetEnvBool("LOG_JSON", false),
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	// snapshots are optional
	var bucket *storage.Bucket
	s3cfg := storage.S3ConfigFromEnv()
	if s3cfg.Bucket != "" {
		client, err := storage.NewS3Client(ctx, s3cfg)
		if err != nil {
			logger.Fatal("Could not create S3 client", "err", err)
		}
		bucket, err = storage.NewBucket(client, s3cfg.Bucket)
		if err != nil {
			logger.Fatal("Could not open bucket", "err", err)
		}
	}

	pool, err := pgstore.NewPool(ctx, util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pool.Close()

	p := pipeline.New(
		pgstore.NewGraphDBStorageWithConnection(pool),
		pipeline.WithParallelism(util.GetEnvInt("PARALLEL_SESSIONS", 8)),
		pipeline.WithRetries(util.GetEnvInt("MAX_RETRIES", 3), time.Second),
		pipeline.WithLocker(leaselock.New(pool)),
	)
	processor := queue.NewProcessor(p, bucket)

	// Init rabbitmq
	conn, err := queue.Init(queue.ConfigFromEnv())
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	// A single consumer channel with prefetch=1 delivers one message at a
	// time across all queues.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		msgs, err := consumerCh.Consume(
			queueName,
			fmt.Sprintf("%s_consumer", queueName),
			false, // autoAck
			false, // exclusive
			false, // noLocal
			false, // noWait
			nil,   // args
		)
		if err != nil {
			logger.Fatal("Failed to start consuming", "queue", queueName, "err", err)
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", queueName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", queueName)
						return
					}
					select {
					case messageChan <- queuedMessage{msg: msg, queueName: queueName}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	logger.Info("Listening for messages", "queues", queue.Queues)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received, exiting...")
			return
		case qm := <-messageChan:
			startTime := time.Now()
			logger.Info("Received message", "queue", qm.queueName)

			if err := processor.Process(ctx, qm.queueName, qm.msg.Body); err != nil {
				logger.Error("Error processing message", "queue", qm.queueName, "err", err)
				queue.HandleProcessingError(context.WithoutCancel(ctx), consumerCh, qm.msg, qm.queueName, err)
			} else {
				if err := qm.msg.Ack(false); err != nil {
					logger.Error("Failed to ack message", "err", err)
				}
				logger.Info("Message processed successfully", "queue", qm.queueName)
			}

			logger.Info("Processing time", "duration", formatDuration(time.Since(startTime)))
			logger.Info("Waiting for next message")
		}
	}
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
