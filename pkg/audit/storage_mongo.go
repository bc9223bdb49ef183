package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Inserter is satisfied by *mongo.Collection.
type Inserter interface {
	InsertMany(ctx context.Context, documents any, opts ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error)
}

// MongoStorage writes batches into a collection, one document per event.
type MongoStorage struct {
	coll Inserter
}

func NewMongoStorage(coll Inserter) *MongoStorage {
	return &MongoStorage{coll: coll}
}

type mongoEvent struct {
	ID           string    `bson:"_id"`
	TenantID     string    `bson:"tenant_id"`
	CompanyID    string    `bson:"company_id"`
	ActorID      string    `bson:"actor_id,omitempty"`
	Action       string    `bson:"action"`
	ResourceType string    `bson:"resource_type"`
	ResourceID   string    `bson:"resource_id,omitempty"`
	Before       any       `bson:"before,omitempty"`
	After        any       `bson:"after,omitempty"`
	Status       string    `bson:"status"`
	Error        string    `bson:"error,omitempty"`
	RequestID    string    `bson:"request_id,omitempty"`
	IP           string    `bson:"ip,omitempty"`
	UserAgent    string    `bson:"user_agent,omitempty"`
	RequestedAt  time.Time `bson:"requested_at"`
	CreatedAt    time.Time `bson:"created_at"`
}

func toMongoEvent(ev Event) (mongoEvent, error) {
	doc := mongoEvent{
		ID:           ev.ID.String(),
		TenantID:     ev.TenantID.String(),
		CompanyID:    ev.CompanyID.String(),
		ActorID:      ev.ActorID,
		Action:       ev.Action,
		ResourceType: ev.ResourceType,
		ResourceID:   ev.ResourceID,
		Status:       string(ev.Status),
		Error:        ev.Error,
		RequestID:    ev.RequestID,
		IP:           ev.IP,
		UserAgent:    ev.UserAgent,
		RequestedAt:  ev.RequestedAt,
		CreatedAt:    ev.CreatedAt,
	}
	if len(ev.Before) > 0 {
		if err := json.Unmarshal(ev.Before, &doc.Before); err != nil {
			return doc, err
		}
	}
	if len(ev.After) > 0 {
		if err := json.Unmarshal(ev.After, &doc.After); err != nil {
			return doc, err
		}
	}
	return doc, nil
}

func (s *MongoStorage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]any, 0, len(events))
	for _, ev := range events {
		doc, err := toMongoEvent(ev)
		if err != nil {
			return fmt.Errorf("encode audit event %s: %w", ev.ID, err)
		}
		docs = append(docs, doc)
	}

	if _, err := s.coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert audit events: %w", err)
	}
	return nil
}
