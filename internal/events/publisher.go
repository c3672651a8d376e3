package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"catalog-service/internal/models"
	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Summary subjects. They sit under product.> so the products stream captures them.
const (
	SubjectBulkUpdated        = "product.bulk_updated"
	SubjectBulkDeleted        = "product.bulk_deleted"
	SubjectVariantsReconciled = "product.variants_reconciled"
)

const publishTimeout = 10 * time.Second

// CatalogEvent summarises one committed bulk or variant change
type CatalogEvent struct {
	EventID       string    `json:"eventId"`
	EventType     string    `json:"eventType"`
	TenantID      string    `json:"tenantId"`
	ActorID       string    `json:"actorId,omitempty"`
	ProductIDs    []string  `json:"productIds"`
	ProductCount  int       `json:"productCount"`
	ChangedFields []string  `json:"changedFields,omitempty"`
	InsertedUPIDs []string  `json:"insertedUpids,omitempty"`
	DeletedIDs    []string  `json:"deletedVariantIds,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher sends product lifecycle events through the shared events publisher and
// catalog summaries straight to NATS. All publishing is fire-and-forget.
type Publisher struct {
	publisher *events.Publisher
	conn      *nats.Conn
	logger    *logrus.Entry
}

// NewPublisher connects both publishing paths to natsURL
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "catalog-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamProducts, []string{"product.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure products stream (may already exist)")
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("catalog-service-summaries"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		publisher: publisher,
		conn:      conn,
		logger:    logger.WithField("component", "catalog-events"),
	}, nil
}

// Close drains the summary connection and closes the shared publisher
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
	}
	if p.publisher != nil {
		p.publisher.Close()
	}
}

// PublishProductCreated publishes a product.created event
func (p *Publisher) PublishProductCreated(ctx context.Context, product *models.Product, actorID string) error {
	event := buildProductEvent(events.ProductCreated, product)
	event.ActorID = actorID
	event.ChangeType = "created"
	p.publishProduct(event)
	return nil
}

// PublishProductUpdated publishes a product.updated event
func (p *Publisher) PublishProductUpdated(ctx context.Context, product *models.Product, changedFields []string, actorID string) error {
	event := buildProductEvent(events.ProductUpdated, product)
	event.ActorID = actorID
	event.ChangeType = "updated"
	event.ChangedFields = changedFields
	event.NewValue = map[string]interface{}{
		"name":     product.Name,
		"status":   product.Status,
		"price":    product.Price,
		"variants": len(product.Variants),
	}
	p.publishProduct(event)
	return nil
}

func (p *Publisher) PublishBulkUpdated(ctx context.Context, tenantID string, productIDs []uuid.UUID, changedFields []string, actorID string) error {
	event := newCatalogEvent(SubjectBulkUpdated, tenantID, actorID, productIDs)
	event.ChangedFields = changedFields
	p.publishSummary(event)
	return nil
}

func (p *Publisher) PublishBulkDeleted(ctx context.Context, tenantID string, productIDs []uuid.UUID, actorID string) error {
	p.publishSummary(newCatalogEvent(SubjectBulkDeleted, tenantID, actorID, productIDs))
	return nil
}

func (p *Publisher) PublishVariantsReconciled(ctx context.Context, tenantID string, productID uuid.UUID, inserted []models.ProductVariant, deletedIDs []uuid.UUID, actorID string) error {
	event := newCatalogEvent(SubjectVariantsReconciled, tenantID, actorID, []uuid.UUID{productID})
	event.InsertedUPIDs = make([]string, len(inserted))
	for i, v := range inserted {
		event.InsertedUPIDs[i] = v.UPID
	}
	event.DeletedIDs = idStrings(deletedIDs)
	p.publishSummary(event)
	return nil
}

// buildProductEvent creates a ProductEvent from a product model
func buildProductEvent(eventType string, product *models.Product) *events.ProductEvent {
	event := events.NewProductEvent(eventType, product.TenantID)
	event.SourceID = uuid.New().String()
	event.ProductID = product.ID.String()
	event.ProductName = product.Name
	event.SKU = product.SKU
	event.Status = string(product.Status)

	if product.Price != nil {
		if price, err := strconv.ParseFloat(*product.Price, 64); err == nil {
			event.Price = price
		}
	}
	if product.CategoryID != nil {
		event.CategoryID = *product.CategoryID
	}
	return event
}

func newCatalogEvent(eventType, tenantID, actorID string, productIDs []uuid.UUID) *CatalogEvent {
	return &CatalogEvent{
		EventID:      uuid.New().String(),
		EventType:    eventType,
		TenantID:     tenantID,
		ActorID:      actorID,
		ProductIDs:   idStrings(productIDs),
		ProductCount: len(productIDs),
		Timestamp:    time.Now().UTC(),
	}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// publishProduct publishes through the shared publisher without blocking the caller
func (p *Publisher) publishProduct(event *events.ProductEvent) {
	if p == nil || p.publisher == nil {
		return
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := p.publisher.PublishProduct(pubCtx, event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"productID": event.ProductID,
				"tenantID":  event.TenantID,
			}).WithError(err).Error("Failed to publish product event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"eventType": event.EventType,
			"productID": event.ProductID,
			"tenantID":  event.TenantID,
		}).Info("Product event published successfully")
	}()
}

// publishSummary sends a CatalogEvent on its own subject without blocking the caller
func (p *Publisher) publishSummary(event *CatalogEvent) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).WithField("eventType", event.EventType).Error("Failed to marshal catalog event")
		return
	}
	go func() {
		fields := logrus.Fields{
			"eventType":    event.EventType,
			"tenantID":     event.TenantID,
			"productCount": event.ProductCount,
		}
		if err := p.conn.Publish(event.EventType, data); err != nil {
			p.logger.WithFields(fields).WithError(err).Error("Failed to publish catalog event")
			return
		}
		if err := p.conn.FlushTimeout(publishTimeout); err != nil {
			p.logger.WithFields(fields).WithError(err).Warn("Catalog event not confirmed by server")
			return
		}
		p.logger.WithFields(fields).Info("Catalog event published successfully")
	}()
}
