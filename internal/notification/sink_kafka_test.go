package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "seriosity/pkg/domain"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		p.records = append(p.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: p.err})
	}
	return results
}

func TestKafkaSink(t *testing.T) {
	userID := id.UserID(id.NewTenantID())
	n := Notification{
		UserID:    userID,
		Kind:      KindMutualMatch,
		Payload:   map[string]string{"property_id": "p-1"},
		CreatedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("record is keyed by user and carries JSON", func(t *testing.T) {
		producer := &fakeProducer{}
		require.NoError(t, NewKafkaSink(producer, "notifications").Deliver(context.Background(), n))

		require.Len(t, producer.records, 1)
		record := producer.records[0]
		assert.Equal(t, "notifications", record.Topic)
		assert.Equal(t, userID.String(), string(record.Key))
		assert.Equal(t, "mutual_match", string(record.Headers[0].Value))

		var decoded Notification
		require.NoError(t, json.Unmarshal(record.Value, &decoded))
		assert.Equal(t, userID, decoded.UserID)
		assert.Equal(t, "p-1", decoded.Payload["property_id"])
	})

	t.Run("produce errors surface", func(t *testing.T) {
		producer := &fakeProducer{err: errors.New("not leader")}
		err := NewKafkaSink(producer, "notifications").Deliver(context.Background(), n)
		assert.ErrorContains(t, err, "not leader")
	})
}
