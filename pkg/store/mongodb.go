package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Protocol-Lattice/toolloop/pkg/conversation"
)

const mongoCloseTimeout = 5 * time.Second

// MongoStore keeps one document per session. BSON dates only hold
// milliseconds, so timestamps are stored as RFC 3339 strings.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type mongoSession struct {
	ID        string         `bson:"_id"`
	CreatedAt string         `bson:"created_at"`
	UpdatedAt string         `bson:"updated_at"`
	Config    mongoConfig    `bson:"config"`
	Messages  []mongoMessage `bson:"messages"`
}

type mongoConfig struct {
	Name          string            `bson:"name,omitempty"`
	Provider      string            `bson:"provider,omitempty"`
	Model         string            `bson:"model,omitempty"`
	Behavior      string            `bson:"behavior,omitempty"`
	Tools         []string          `bson:"tools,omitempty"`
	MaxIterations int               `bson:"max_iterations,omitempty"`
	Extra         map[string]string `bson:"extra,omitempty"`
}

type mongoMessage struct {
	Role      string `bson:"role"`
	Content   string `bson:"content"`
	Timestamp string `bson:"timestamp"`
	Reasoning string `bson:"reasoning,omitempty"`
	Name      string `bson:"name,omitempty"`
	CallID    string `bson:"call_id,omitempty"`
}

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database name is required")
	}
	if collection == "" {
		return nil, errors.New("mongo collection name is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (ms *MongoStore) Save(ctx context.Context, snap conversation.Snapshot) (string, error) {
	if err := ValidateSessionID(snap.SessionID); err != nil {
		return "", err
	}
	doc := toMongoSession(snap)
	_, err := ms.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return "", fmt.Errorf("save session %s: %w", snap.SessionID, err)
	}
	return fmt.Sprintf("mongodb://%s/%s", ms.collection.Name(), snap.SessionID), nil
}

func (ms *MongoStore) Load(ctx context.Context, sessionID string) (conversation.Snapshot, error) {
	var doc mongoSession
	err := ms.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return conversation.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return conversation.Snapshot{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	return fromMongoSession(doc)
}

func (ms *MongoStore) Close() error {
	if ms == nil || ms.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoCloseTimeout)
	defer cancel()
	return ms.client.Disconnect(ctx)
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func toMongoSession(s conversation.Snapshot) mongoSession {
	doc := mongoSession{
		ID:        s.SessionID,
		CreatedAt: formatTime(s.CreatedAt),
		UpdatedAt: formatTime(s.UpdatedAt),
		Config: mongoConfig{
			Name:          s.Config.Name,
			Provider:      s.Config.Provider,
			Model:         s.Config.Model,
			Behavior:      s.Config.Behavior,
			Tools:         s.Config.Tools,
			MaxIterations: s.Config.MaxIterations,
			Extra:         s.Config.Extra,
		},
		Messages: make([]mongoMessage, 0, len(s.Messages)),
	}
	for _, m := range s.Messages {
		doc.Messages = append(doc.Messages, mongoMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: formatTime(m.Timestamp),
			Reasoning: m.Reasoning,
			Name:      m.Name,
			CallID:    m.CallID,
		})
	}
	return doc
}

func fromMongoSession(doc mongoSession) (conversation.Snapshot, error) {
	created, err := parseTime(doc.CreatedAt)
	if err != nil {
		return conversation.Snapshot{}, fmt.Errorf("session %s: created_at: %w", doc.ID, err)
	}
	updated, err := parseTime(doc.UpdatedAt)
	if err != nil {
		return conversation.Snapshot{}, fmt.Errorf("session %s: updated_at: %w", doc.ID, err)
	}
	snap := conversation.Snapshot{
		SessionID: doc.ID,
		CreatedAt: created,
		UpdatedAt: updated,
		Config: conversation.Config{
			Name:          doc.Config.Name,
			Provider:      doc.Config.Provider,
			Model:         doc.Config.Model,
			Behavior:      doc.Config.Behavior,
			Tools:         doc.Config.Tools,
			MaxIterations: doc.Config.MaxIterations,
			Extra:         doc.Config.Extra,
		},
		Messages: make([]conversation.Message, 0, len(doc.Messages)),
	}
	for i, m := range doc.Messages {
		ts, err := parseTime(m.Timestamp)
		if err != nil {
			return conversation.Snapshot{}, fmt.Errorf("session %s: message %d: %w", doc.ID, i, err)
		}
		snap.Messages = append(snap.Messages, conversation.Message{
			Role:      conversation.Role(m.Role),
			Content:   m.Content,
			Timestamp: ts,
			Reasoning: m.Reasoning,
			Name:      m.Name,
			CallID:    m.CallID,
		})
	}
	return snap, nil
}
