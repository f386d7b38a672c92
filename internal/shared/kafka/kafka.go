package kafka

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter cria o writer do tópico; brokers separados por vírgula.
// Hash na key mantém os eventos de uma aposta na mesma partição.
func NewWriter(brokers string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}
