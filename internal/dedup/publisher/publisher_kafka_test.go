//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"outletdedup/internal/dedup/models"
	"outletdedup/pkg/testutil/containers"
)

func TestKafkaPublishesSummary(t *testing.T) {
	broker := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pub, err := NewKafka(broker.Brokers, "outletdedup.runs.test")
	require.NoError(t, err)
	defer pub.Close()
	require.NoError(t, pub.EnsureTopic(ctx))
	require.NoError(t, pub.EnsureTopic(ctx), "existing topic is not an error")

	summary := models.Summary{
		RunID:        models.NewRunID(),
		TotalRecords: 4,
		Groups:       2,
		LargestGroup: 3,
		Metric:       "ratio",
		Threshold:    85,
	}
	require.NoError(t, pub.Publish(ctx, summary))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics("outletdedup.runs.test"),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.NotEmpty(t, records)

	require.Equal(t, summary.RunID.String(), string(records[0].Key))
	var got map[string]any
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.EqualValues(t, 2, got["groups"])
	require.Equal(t, summary.RunID.String(), got["run_id"])
}
