package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
	"github.com/dsl-grades/grade-hub/internal/domain/identity"
	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

var (
	_ grade.Repository       = (*RecordRepository)(nil)
	_ grade.MarkerRepository = (*MarkerRepository)(nil)
	_ identity.Repository    = (*IdentityRepository)(nil)
)

// ─────────────────────────────────────────────────────────────────────────────
// Records
// ─────────────────────────────────────────────────────────────────────────────

// RecordRepository implements grade.Repository on the student_grade collection.
type RecordRepository struct {
	coll *mongo.Collection
}

// NewRecordRepository creates a RecordRepository.
func NewRecordRepository(c *Client) *RecordRepository {
	return &RecordRepository{coll: c.db.Collection(RecordsCollection)}
}

func (r *RecordRepository) Get(ctx context.Context, internalID string) (*grade.Record, error) {
	var rec grade.Record
	err := r.coll.FindOne(ctx, bson.M{"_id": internalID}).Decode(&rec)
	if isNoDocuments(err) {
		return nil, shared.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: get record: %w", err)
	}
	return &rec, nil
}

func (r *RecordRepository) List(ctx context.Context) ([]*grade.Record, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: list records: %w", err)
	}
	var out []*grade.Record
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo: decode records: %w", err)
	}
	return out, nil
}

func (r *RecordRepository) Insert(ctx context.Context, rec *grade.Record) error {
	_, err := r.coll.InsertOne(ctx, rec)
	if mongo.IsDuplicateKeyError(err) {
		return shared.ErrRecordAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("mongo: insert record: %w", err)
	}
	return nil
}

func (r *RecordRepository) ReplaceField(ctx context.Context, internalID, field string, value any) error {
	if err := grade.CheckField(field, value); err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": internalID}, bson.M{"$set": bson.M{field: value}})
	if err != nil {
		return fmt.Errorf("mongo: update %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return shared.ErrRecordNotFound
	}
	return nil
}

func (r *RecordRepository) Delete(ctx context.Context, internalID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": internalID})
	if err != nil {
		return fmt.Errorf("mongo: delete record: %w", err)
	}
	if res.DeletedCount == 0 {
		return shared.ErrRecordNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Identity mapping
// ─────────────────────────────────────────────────────────────────────────────

// IdentityRepository implements identity.Repository. The internal id is
// the document _id; external_id carries a unique index.
type IdentityRepository struct {
	coll *mongo.Collection
}

// NewIdentityRepository creates an IdentityRepository.
func NewIdentityRepository(c *Client) *IdentityRepository {
	return &IdentityRepository{coll: c.db.Collection(IdentityCollection)}
}

func (r *IdentityRepository) find(ctx context.Context, filter bson.M, notFound error) (*identity.Entry, error) {
	var e identity.Entry
	err := r.coll.FindOne(ctx, filter).Decode(&e)
	if isNoDocuments(err) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: find student id: %w", err)
	}
	return &e, nil
}

func (r *IdentityRepository) FindByExternal(ctx context.Context, externalID string) (*identity.Entry, error) {
	return r.find(ctx, bson.M{"external_id": externalID}, shared.ErrStudentNotFound)
}

func (r *IdentityRepository) FindByInternal(ctx context.Context, internalID string) (*identity.Entry, error) {
	return r.find(ctx, bson.M{"_id": internalID}, shared.ErrInternalIDNotFound)
}

func (r *IdentityRepository) Create(ctx context.Context, e *identity.Entry) error {
	_, err := r.coll.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		return shared.ErrStudentAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("mongo: create student id: %w", err)
	}
	return nil
}

func (r *IdentityRepository) UpdateExternal(ctx context.Context, oldID, newID string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"external_id": oldID}, bson.M{"$set": bson.M{"external_id": newID}})
	if mongo.IsDuplicateKeyError(err) {
		return shared.ErrStudentAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("mongo: rename student id: %w", err)
	}
	if res.MatchedCount == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

func (r *IdentityRepository) Delete(ctx context.Context, externalID string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"external_id": externalID})
	if err != nil {
		return fmt.Errorf("mongo: delete student id: %w", err)
	}
	if res.DeletedCount == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

func (r *IdentityRepository) List(ctx context.Context) ([]*identity.Entry, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "external_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongo: list student ids: %w", err)
	}
	var out []*identity.Entry
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo: decode student ids: %w", err)
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Session markers
// ─────────────────────────────────────────────────────────────────────────────

// MarkerRepository implements grade.MarkerRepository with one document
// per stream, keyed by the stream name.
type MarkerRepository struct {
	coll *mongo.Collection
}

// NewMarkerRepository creates a MarkerRepository.
func NewMarkerRepository(c *Client) *MarkerRepository {
	return &MarkerRepository{coll: c.db.Collection(MarkersCollection)}
}

type markerDoc struct {
	Stream string `bson:"_id"`
	Key    string `bson:"session_key"`
}

func (r *MarkerRepository) CurrentSession(ctx context.Context) (grade.Session, error) {
	cur, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return grade.Session{}, fmt.Errorf("mongo: read markers: %w", err)
	}
	var docs []markerDoc
	if err := cur.All(ctx, &docs); err != nil {
		return grade.Session{}, fmt.Errorf("mongo: decode markers: %w", err)
	}

	var s grade.Session
	for _, d := range docs {
		if grade.Stream(d.Stream).IsValid() {
			s = s.With(grade.Stream(d.Stream), d.Key)
		}
	}
	return s, nil
}

func (r *MarkerRepository) SetMarker(ctx context.Context, stream grade.Stream, key string) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": string(stream)},
		bson.M{"$set": bson.M{"session_key": key}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo: set %s marker: %w", stream, err)
	}
	return nil
}
