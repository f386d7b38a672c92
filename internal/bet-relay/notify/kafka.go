package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/ethbet-relay/pkg/contracts/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher escreve no tópico de ciclo de vida com key = id da aposta,
// assim os eventos de uma aposta ficam na mesma partição e em ordem
type KafkaPublisher struct {
	Writer messageWriter
	Topic  string
}

func NewKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topic: topic}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Send(ctx context.Context, e events.BetLifecycle) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(strconv.FormatInt(e.BetID, 10)),
		Value:   b,
		Time:    time.UnixMilli(e.TsUnixMs),
		Headers: []kafka.Header{{Key: "event", Value: []byte(e.Name)}},
	})
}
