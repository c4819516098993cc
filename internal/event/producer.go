package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agenthub/wishlist-service/internal/domain"
	pkgkafka "github.com/agenthub/wishlist-service/pkg/kafka"
)

// Kafka topics for wishlist domain events.
var (
	TopicWishlistUpdated = pkgkafka.Topic("wishlist", "updated")
	TopicWishlistDeleted = pkgkafka.Topic("wishlist", "deleted")
)

// Aggregate type constant.
const AggregateTypeWishlist = "wishlist"

// Source identifier for events originating from the wishlist service.
const SourceWishlistService = "wishlist-service"

// WishlistUpdatedData is the payload for a wishlist.updated event. It carries
// the full post-mutation state so consumers never need a read-back.
type WishlistUpdatedData struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Items      []string `json:"items"`
	Visibility string   `json:"visibility"`
	Slug       string   `json:"slug,omitempty"`
	Owner      string   `json:"owner,omitempty"`
}

// WishlistDeletedData is the payload for a wishlist.deleted event.
type WishlistDeletedData struct {
	ID    string `json:"id"`
	Owner string `json:"owner,omitempty"`
}

// Producer publishes wishlist domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the wishlist service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishWishlistUpdated publishes a wishlist.updated event.
func (p *Producer) PublishWishlistUpdated(ctx context.Context, w *domain.Wishlist) error {
	data := WishlistUpdatedData{
		ID:         w.ID,
		Name:       w.Name,
		Items:      w.Items,
		Visibility: string(w.Visibility),
		Slug:       w.Slug,
		Owner:      w.Owner,
	}

	event, err := pkgkafka.NewEvent(TopicWishlistUpdated, w.ID, AggregateTypeWishlist, SourceWishlistService, data)
	if err != nil {
		return fmt.Errorf("create wishlist.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicWishlistUpdated, event); err != nil {
		return fmt.Errorf("publish wishlist.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published wishlist.updated event",
		slog.String("wishlist_id", w.ID),
		slog.Int("item_count", len(w.Items)),
	)

	return nil
}

// PublishWishlistDeleted publishes a wishlist.deleted event.
func (p *Producer) PublishWishlistDeleted(ctx context.Context, id, owner string) error {
	data := WishlistDeletedData{
		ID:    id,
		Owner: owner,
	}

	event, err := pkgkafka.NewEvent(TopicWishlistDeleted, id, AggregateTypeWishlist, SourceWishlistService, data)
	if err != nil {
		return fmt.Errorf("create wishlist.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicWishlistDeleted, event); err != nil {
		return fmt.Errorf("publish wishlist.deleted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published wishlist.deleted event",
		slog.String("wishlist_id", id),
	)

	return nil
}
