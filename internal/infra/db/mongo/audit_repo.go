package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

const collectionName = "analysis_audit"

// Connect opens a pooled client and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}
	return client, nil
}

type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(client *mongo.Client, dbName string) *AuditRepository {
	return &AuditRepository{col: client.Database(dbName).Collection(collectionName)}
}

type auditDoc struct {
	ID            string    `bson:"_id"`
	TaskID        string    `bson:"task_id"`
	Attempt       int       `bson:"attempt"`
	Question      string    `bson:"question"`
	Files         []string  `bson:"files"`
	Status        string    `bson:"status"`
	ErrorDetail   string    `bson:"error_detail,omitempty"`
	GeneratedCode string    `bson:"generated_code,omitempty"`
	ArtifactURL   string    `bson:"artifact_url,omitempty"`
	ExecutionTime float64   `bson:"execution_time"`
	CreatedAt     time.Time `bson:"created_at"`
}

func (r *AuditRepository) Save(ctx context.Context, rec *domain.AuditRecord) error {
	doc := auditDoc{
		ID:            rec.ID,
		TaskID:        string(rec.TaskID),
		Attempt:       rec.Attempt,
		Question:      rec.Question,
		Files:         rec.Files,
		Status:        string(rec.Status),
		ErrorDetail:   rec.ErrorDetail,
		GeneratedCode: rec.GeneratedCode,
		ArtifactURL:   rec.ArtifactURL,
		ExecutionTime: rec.ExecutionTime,
		CreatedAt:     rec.CreatedAt,
	}
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}

func (r *AuditRepository) Get(ctx context.Context, id domain.TaskID) (*domain.AuditRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "attempt", Value: -1}})
	var doc auditDoc
	if err := r.col.FindOne(ctx, bson.M{"task_id": string(id)}, opts).Decode(&doc); err != nil {
		return nil, err
	}
	return fromDoc(&doc), nil
}

func (r *AuditRepository) Latest(ctx context.Context, limit int) ([]*domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "attempt", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*domain.AuditRecord
	for cursor.Next(ctx) {
		var doc auditDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, fromDoc(&doc))
	}
	return out, cursor.Err()
}

func fromDoc(doc *auditDoc) *domain.AuditRecord {
	return &domain.AuditRecord{
		ID:            doc.ID,
		TaskID:        domain.TaskID(doc.TaskID),
		Attempt:       doc.Attempt,
		Question:      doc.Question,
		Files:         doc.Files,
		Status:        domain.Status(doc.Status),
		ErrorDetail:   doc.ErrorDetail,
		GeneratedCode: doc.GeneratedCode,
		ArtifactURL:   doc.ArtifactURL,
		ExecutionTime: doc.ExecutionTime,
		CreatedAt:     doc.CreatedAt,
	}
}
