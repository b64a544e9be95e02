package status

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// wireEvent is Event's on-the-wire shape: plain, msgpack-friendly fields
// instead of the error interface ReasonErr carries in-process.
type wireEvent struct {
	Host      string `msgpack:"host"`
	Port      int    `msgpack:"port"`
	ClusterID []byte `msgpack:"cluster_id,omitempty"`
	Kind      string `msgpack:"kind"`
	Reason    string `msgpack:"reason,omitempty"`
	ReasonErr string `msgpack:"reason_err,omitempty"`
}

// KafkaSink publishes every status event to a Kafka topic, msgpack-
// encoded, for an off-box lifecycle feed (e.g. a fleet-wide dashboard
// aggregating many redisnode instances). Optional; off unless Options
// names brokers and a topic.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	log    *zap.Logger
}

// NewKafkaSink dials the given brokers and returns a sink publishing to
// topic. The client is left to franz-go's default producer behavior
// (async, batched) — this sink never blocks the core on a produce ack.
func NewKafkaSink(brokers []string, topic string, log *zap.Logger) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaSink{client: client, topic: topic, log: log}, nil
}

func (s *KafkaSink) Send(e Event) {
	w := wireEvent{
		Host:      e.Tag.Host,
		Port:      e.Tag.Port,
		ClusterID: e.Tag.ClusterID,
		Kind:      e.Kind.String(),
	}
	if e.Kind == ConnectionDown {
		w.Reason = e.Reason.String()
		if e.ReasonErr != nil {
			w.ReasonErr = e.ReasonErr.Error()
		}
	}

	payload, err := msgpack.Marshal(w)
	if err != nil {
		s.log.Warn("status: failed to encode event for kafka sink", zap.Error(err))
		return
	}

	rec := &kgo.Record{Topic: s.topic, Value: payload}
	s.client.Produce(context.Background(), rec, func(_ *kgo.Record, err error) {
		if err != nil {
			s.log.Warn("status: kafka produce failed", zap.Error(err))
		}
	})
}

// Close releases the underlying Kafka client.
func (s *KafkaSink) Close() {
	s.client.Close()
}
