package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"travel_server/core/domain"
	"travel_server/core/port/out"
)

// =============================================================================
// MongoDB Trip Adapter
// =============================================================================

const collectionTrips = "user_trips"

// tripDocument keys the item list by user id
type tripDocument struct {
	UserID    string              `bson:"_id"`
	Items     []domain.TravelItem `bson:"items"`
	UpdatedAt time.Time           `bson:"updated_at"`
}

// TripAdapter implements out.TripRepository using MongoDB.
type TripAdapter struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ out.TripRepository = (*TripAdapter)(nil)

// NewTripAdapter creates a new MongoDB trip adapter.
func NewTripAdapter(client *mongo.Client, database string) *TripAdapter {
	return &TripAdapter{
		client:     client,
		collection: client.Database(database).Collection(collectionTrips),
	}
}

// EnsureIndexes creates the secondary index used for housekeeping queries.
func (a *TripAdapter) EnsureIndexes(ctx context.Context) error {
	_, err := a.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: -1}},
	})
	return err
}

// LoadTrips returns nil when the user has no document
func (a *TripAdapter) LoadTrips(ctx context.Context, userID string) ([]domain.TravelItem, error) {
	var doc tripDocument
	err := a.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Items, nil
}

// SaveTrips replaces the user's document
func (a *TripAdapter) SaveTrips(ctx context.Context, userID string, items []domain.TravelItem) error {
	if items == nil {
		items = []domain.TravelItem{}
	}
	doc := tripDocument{UserID: userID, Items: items, UpdatedAt: time.Now().UTC()}
	_, err := a.collection.ReplaceOne(ctx, bson.M{"_id": userID}, doc, options.Replace().SetUpsert(true))
	return err
}

// ListUsers returns every document id
func (a *TripAdapter) ListUsers(ctx context.Context) ([]string, error) {
	ids, err := a.collection.Distinct(ctx, "_id", bson.M{})
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(ids))
	for _, id := range ids {
		if s, ok := id.(string); ok {
			users = append(users, s)
		}
	}
	return users, nil
}

func (a *TripAdapter) Ping(ctx context.Context) error {
	return a.client.Ping(ctx, nil)
}

func (a *TripAdapter) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.client.Disconnect(ctx)
}
