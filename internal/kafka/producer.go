package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-scanner/internal/logger"
	"ms-scanner/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer, Logger: log}
}

// ActionRecordedEvent is the wire shape streamed for every recorded scanner
// action; downstream analytics consume it.
type ActionRecordedEvent struct {
	ActionID       int64             `json:"action_id"`
	Type           models.ActionType `json:"type"`
	RegistrationID int64             `json:"registration_id"`
	Numero         string            `json:"numero"`
	EventID        int64             `json:"event_id"`
	PointID        *int64            `json:"point_id,omitempty"`
	Person         string            `json:"person"`
	Canceled       bool              `json:"canceled"`
	Time           time.Time         `json:"time"`
}

// PublishActionRecorded streams a recorded scanner action to Kafka.
func (p *Producer) PublishActionRecorded(registration *models.Registration, action *models.ScannerAction) error {
	event := ActionRecordedEvent{
		ActionID:       action.ID,
		Type:           action.Type,
		RegistrationID: registration.ID,
		Numero:         registration.Numero,
		EventID:        registration.EventID,
		PointID:        action.PointID,
		Person:         action.Person,
		Canceled:       registration.Canceled,
		Time:           action.Time,
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if p.Logger != nil {
		p.Logger.LogKafka("publish", p.Writer.Topic, string(msgBytes))
	}

	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(strconv.FormatInt(registration.ID, 10)),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
