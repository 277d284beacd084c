package kafka

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

type adminClient interface {
	Metadata(ctx context.Context, req *kafka.MetadataRequest) (*kafka.MetadataResponse, error)
	ListOffsets(ctx context.Context, req *kafka.ListOffsetsRequest) (*kafka.ListOffsetsResponse, error)
	OffsetFetch(ctx context.Context, req *kafka.OffsetFetchRequest) (*kafka.OffsetFetchResponse, error)
}

// GroupLag computes the lag of a consumer group as the sum over partitions of
// the log end offset minus the committed offset.
type GroupLag struct {
	Client  adminClient
	Topic   string
	GroupID string
}

// Lag implements LagReporter.
func (g *GroupLag) Lag(ctx context.Context) (int64, error) {
	meta, err := g.Client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{g.Topic}})
	if err != nil {
		return 0, fmt.Errorf("metadata: %w", err)
	}
	var partitions []int
	for _, topic := range meta.Topics {
		if topic.Name != g.Topic {
			continue
		}
		if topic.Error != nil {
			return 0, fmt.Errorf("metadata for %s: %w", g.Topic, topic.Error)
		}
		for _, p := range topic.Partitions {
			partitions = append(partitions, p.ID)
		}
	}
	if len(partitions) == 0 {
		return 0, nil
	}

	requests := make([]kafka.OffsetRequest, 0, 2*len(partitions))
	for _, p := range partitions {
		requests = append(requests, kafka.FirstOffsetOf(p), kafka.LastOffsetOf(p))
	}
	offsets, err := g.Client.ListOffsets(ctx, &kafka.ListOffsetsRequest{
		Topics: map[string][]kafka.OffsetRequest{g.Topic: requests},
	})
	if err != nil {
		return 0, fmt.Errorf("list offsets: %w", err)
	}
	first := make(map[int]int64, len(partitions))
	last := make(map[int]int64, len(partitions))
	for _, po := range offsets.Topics[g.Topic] {
		if po.Error != nil {
			return 0, fmt.Errorf("offsets of partition %d: %w", po.Partition, po.Error)
		}
		first[po.Partition] = po.FirstOffset
		last[po.Partition] = po.LastOffset
	}

	committed, err := g.Client.OffsetFetch(ctx, &kafka.OffsetFetchRequest{
		GroupID: g.GroupID,
		Topics:  map[string][]int{g.Topic: partitions},
	})
	if err != nil {
		return 0, fmt.Errorf("offset fetch: %w", err)
	}
	if committed.Error != nil {
		return 0, fmt.Errorf("offset fetch for %s: %w", g.GroupID, committed.Error)
	}
	done := make(map[int]int64, len(partitions))
	for _, p := range committed.Topics[g.Topic] {
		done[p.Partition] = p.CommittedOffset
	}

	var lag int64
	for _, p := range partitions {
		start, ok := done[p]
		if !ok || start < 0 {
			start = first[p]
		}
		if n := last[p] - start; n > 0 {
			lag += n
		}
	}
	return lag, nil
}
