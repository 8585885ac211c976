package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/lobby-service/internal/config"
	"github.com/lobby-service/internal/domain"
)

// Lobby event types
const (
	TypeLobbyCreated  = "lobby_created"
	TypePlayerJoined  = "player_joined"
	TypePlayerLeft    = "player_left"
	TypeStatusChanged = "status_changed"
	TypeLobbyClosed   = "lobby_closed"
	TypeLobbyExpired  = "lobby_expired"
)

// LobbyEvent is the lifecycle event published for downstream consumers
// (analytics, moderation tooling)
type LobbyEvent struct {
	Type         string             `json:"type"`
	LobbyID      uuid.UUID          `json:"lobby_id"`
	HostPlayerID string             `json:"host_player_id"`
	PlayerID     string             `json:"player_id,omitempty"`
	Status       domain.LobbyStatus `json:"status"`
	PlayerCount  int                `json:"player_count"`
	Timestamp    time.Time          `json:"timestamp"`
}

// Producer publishes lobby lifecycle events to Kafka. Publishing is
// best-effort and asynchronous: a slow or unreachable broker never blocks a
// lobby operation.
type Producer struct {
	producer sarama.AsyncProducer
	topic    string
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewProducer creates and starts an async Kafka producer
func NewProducer(cfg *config.KafkaConfig, logger *slog.Logger) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Flush.Frequency = 100 * time.Millisecond
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true

	asyncProducer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	p := &Producer{
		producer: asyncProducer,
		topic:    cfg.Topic,
		logger:   logger,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range asyncProducer.Errors() {
			p.logger.Error("failed to publish lobby event", "error", err)
		}
	}()

	return p, nil
}

// Publish enqueues a lobby event. Events for the same lobby share a partition
// key so consumers see them in order.
func (p *Producer) Publish(event LobbyEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal lobby event", "error", err)
		return
	}

	p.producer.Input() <- &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.LobbyID.String()),
		Value: sarama.ByteEncoder(data),
	}
}

// Close flushes pending events and shuts the producer down
func (p *Producer) Close() error {
	err := p.producer.Close()
	p.wg.Wait()
	return err
}
