// Package activitymap flattens auth activity events into audit records and
// writes them to the structured log.
package activitymap

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	auth "github.com/fenixedu/fenix-auth"
)

const (
	MetadataKeyActorType  = "actor_type"
	MetadataKeyFromStatus = "from_status"
	MetadataKeyToStatus   = "to_status"
)

const (
	defaultChannel    = "fenix.auth"
	defaultObjectType = "user"
	defaultActorID    = "system"
)

// Record is the audit shape of an activity event.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Normalize converts event into a Record. The actor falls back to the
// subject of the event, then to "system".
func Normalize(event auth.ActivityEvent) Record {
	actorID := firstNonEmpty(
		strings.TrimSpace(event.Actor.ID),
		strings.TrimSpace(event.UserID),
		defaultActorID,
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Record{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: defaultObjectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    defaultChannel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// LogSink writes every event to logger at info level.
type LogSink struct {
	logger *zap.Logger
}

var _ auth.ActivitySink = (*LogSink)(nil)

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r := Normalize(event)
	s.logger.Info(r.Verb,
		zap.String("actor_id", r.ActorID),
		zap.String("object_type", r.ObjectType),
		zap.String("object_id", r.ObjectID),
		zap.String("channel", r.Channel),
		zap.Any("metadata", r.Metadata),
		zap.Time("occurred_at", r.OccurredAt),
	)
	return nil
}

func normalizeMetadata(event auth.ActivityEvent) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+3)
	for k, v := range event.Metadata {
		metadata[k] = v
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, exists := metadata[MetadataKeyActorType]; !exists {
			metadata[MetadataKeyActorType] = actorType
		}
	}
	if event.FromStatus != "" {
		metadata[MetadataKeyFromStatus] = string(event.FromStatus)
	}
	if event.ToStatus != "" {
		metadata[MetadataKeyToStatus] = string(event.ToStatus)
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
