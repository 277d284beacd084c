package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdmin struct {
	meta      *kafka.MetadataResponse
	offsets   *kafka.ListOffsetsResponse
	committed *kafka.OffsetFetchResponse
	err       error
}

func (f *fakeAdmin) Metadata(context.Context, *kafka.MetadataRequest) (*kafka.MetadataResponse, error) {
	return f.meta, f.err
}

func (f *fakeAdmin) ListOffsets(context.Context, *kafka.ListOffsetsRequest) (*kafka.ListOffsetsResponse, error) {
	return f.offsets, nil
}

func (f *fakeAdmin) OffsetFetch(context.Context, *kafka.OffsetFetchRequest) (*kafka.OffsetFetchResponse, error) {
	return f.committed, nil
}

func TestGroupLag(t *testing.T) {
	t.Parallel()

	admin := &fakeAdmin{
		meta: &kafka.MetadataResponse{Topics: []kafka.Topic{{
			Name:       "visit",
			Partitions: []kafka.Partition{{ID: 0}, {ID: 1}, {ID: 2}},
		}}},
		offsets: &kafka.ListOffsetsResponse{Topics: map[string][]kafka.PartitionOffsets{
			"visit": {
				{Partition: 0, FirstOffset: 0, LastOffset: 10},
				{Partition: 1, FirstOffset: 5, LastOffset: 8},
				{Partition: 2, FirstOffset: 0, LastOffset: 4},
			},
		}},
		committed: &kafka.OffsetFetchResponse{Topics: map[string][]kafka.OffsetFetchPartition{
			"visit": {
				{Partition: 0, CommittedOffset: 7},
				{Partition: 1, CommittedOffset: -1},
				{Partition: 2, CommittedOffset: 4},
			},
		}},
	}
	lag := &GroupLag{Client: admin, Topic: "visit", GroupID: "crawler"}
	n, err := lag.Lag(context.Background())
	require.NoError(t, err)
	// 3 on partition 0, 3 from the first offset on partition 1, none on 2.
	assert.Equal(t, int64(6), n)
}

func TestGroupLagEmptyAndErrors(t *testing.T) {
	t.Parallel()

	lag := &GroupLag{Client: &fakeAdmin{meta: &kafka.MetadataResponse{}}, Topic: "visit", GroupID: "g"}
	n, err := lag.Lag(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	lag = &GroupLag{Client: &fakeAdmin{err: errors.New("no brokers")}, Topic: "visit", GroupID: "g"}
	_, err = lag.Lag(context.Background())
	require.Error(t, err)

	lag = &GroupLag{Client: &fakeAdmin{meta: &kafka.MetadataResponse{Topics: []kafka.Topic{{
		Name:  "visit",
		Error: errors.New("unknown topic"),
	}}}}, Topic: "visit", GroupID: "g"}
	_, err = lag.Lag(context.Background())
	require.Error(t, err)
}
