// Package mongo implements the MongoDB-backed report store.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/finflow-ai/finflow/report"
)

const (
	defaultCollection = "reports"
	defaultTimeout    = 5 * time.Second
)

// Options configures the store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store persists reports in a MongoDB collection, one document per
// report, indexed by session_id.
type Store struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

var _ report.Store = (*Store)(nil)

type reportDocument struct {
	ID        bson.ObjectID   `bson:"_id,omitempty"`
	SessionID string          `bson:"session_id"`
	Title     string          `bson:"title"`
	Content   string          `bson:"content"`
	Metadata  report.Metadata `bson:"metadata"`
	CreatedAt time.Time       `bson:"created_at"`
}

// New returns a Store backed by the provided MongoDB client and
// ensures the session index exists.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongo: database name is required")
	}
	collection := opts.Collection
	if collection == "" {
		collection = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	s := &Store{
		coll:    opts.Client.Database(opts.Database).Collection(collection),
		timeout: timeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("mongo: ensure indexes: %w", err)
	}
	return s, nil
}

// Insert stores the report and returns the generated object id.
func (s *Store) Insert(ctx context.Context, r *report.Report) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := reportDocument{
		SessionID: r.SessionID,
		Title:     r.Title,
		Content:   r.Content,
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
	}
	result, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("mongo: insert report: %w", err)
	}

	id, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("mongo: unexpected inserted id type %T", result.InsertedID)
	}
	return id.Hex(), nil
}

// FindBySession returns the session's reports ordered by creation
// time.
func (s *Store) FindBySession(ctx context.Context, sessionID string) ([]report.Report, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cursor, err := s.coll.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo: find reports: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []report.Report
	for cursor.Next(ctx) {
		var doc reportDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode report: %w", err)
		}
		reports = append(reports, report.Report{
			ID:        doc.ID.Hex(),
			SessionID: doc.SessionID,
			Title:     doc.Title,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			CreatedAt: doc.CreatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo: iterate reports: %w", err)
	}
	return reports, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}},
	})
	return err
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
