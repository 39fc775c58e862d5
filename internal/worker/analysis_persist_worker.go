package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"pantrycam/internal/model"
	"pantrycam/internal/platform/rabbitmq"
)

type AnalysisStore interface {
	Create(ctx context.Context, record *model.AnalysisRecord) error
}

// AnalysisPersistWorker drains the history queue into the analysis store.
type AnalysisPersistWorker struct {
	conn      *amqp.Connection
	store     AnalysisStore
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAnalysisPersistWorker(conn *amqp.Connection, store AnalysisStore, queueName string, logger *zap.Logger) *AnalysisPersistWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisPersistWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		logger:    logger.Named("analysis_worker"),
	}
}

func (w *AnalysisPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()
		w.consume(workerCtx, deliveries)
	}()

	w.logger.Info("analysis worker started", zap.String("queue", w.queueName))
	return nil
}

func (w *AnalysisPersistWorker) consume(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.process(ctx, d.Body, d)
		}
	}
}

// acknowledger is the part of amqp.Delivery used to settle a message.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// process stores one payload. Undecodable or unstorable payloads are dropped
// rather than requeued.
func (w *AnalysisPersistWorker) process(ctx context.Context, body []byte, ack acknowledger) {
	var record model.AnalysisRecord
	if err := json.Unmarshal(body, &record); err != nil {
		w.logger.Error("decode analysis record failed", zap.Error(err))
		_ = ack.Nack(false, false)
		return
	}

	if err := w.store.Create(ctx, &record); err != nil {
		w.logger.Error("persist analysis record failed",
			zap.String("session_id", record.SessionID),
			zap.Error(err))
		_ = ack.Nack(false, false)
		return
	}

	_ = ack.Ack(false)
}

func (w *AnalysisPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
