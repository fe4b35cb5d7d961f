package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/repository"
)

var _ repository.IdentityRepository = (*MongoIdentityRepo)(nil)

type identityDoc struct {
	ID            int64      `bson:"_id"`
	DisplayName   string     `bson:"display_name"`
	Handle        string     `bson:"handle"`
	VerifiedUntil time.Time  `bson:"verified_until"`
	PremiumUntil  *time.Time `bson:"premium_until,omitempty"`
	ActiveToken   string     `bson:"active_token"`
	Role          string     `bson:"role"`
	CreatedAt     time.Time  `bson:"created_at"`
	LastSeenAt    time.Time  `bson:"last_seen_at"`
}

func (d *identityDoc) toModel() *model.Identity {
	i := &model.Identity{
		ID:            d.ID,
		DisplayName:   d.DisplayName,
		Handle:        d.Handle,
		VerifiedUntil: d.VerifiedUntil.UTC(),
		ActiveToken:   d.ActiveToken,
		Role:          model.Role(d.Role),
		CreatedAt:     d.CreatedAt,
		LastSeenAt:    d.LastSeenAt,
	}
	if i.Role == "" {
		i.Role = model.RoleStandard
	}
	if d.PremiumUntil != nil {
		t := d.PremiumUntil.UTC()
		i.PremiumUntil = &t
	}
	return i
}

type MongoIdentityRepo struct {
	db   *mongo.Database
	coll *mongo.Collection
}

func NewMongoIdentityRepo(db *mongo.Database) *MongoIdentityRepo {
	return &MongoIdentityRepo{db: db, coll: db.Collection(identitiesCollection)}
}

func (r *MongoIdentityRepo) FindOne(ctx context.Context, id int64) (*model.Identity, error) {
	var d identityDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return d.toModel(), nil
}

func (r *MongoIdentityRepo) Upsert(ctx context.Context, id int64, patch model.IdentityPatch) error {
	if id == 0 {
		return domain.ErrInvalidArgument
	}
	update := buildIdentityUpdate(patch, time.Now().UTC())
	opts := options.UpdateOne().SetUpsert(true)

	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// two concurrent inserts of the same key; the loser becomes an update
		_, err = r.coll.UpdateOne(ctx, bson.M{"_id": id}, update, opts)
	}
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}
	return nil
}

func (r *MongoIdentityRepo) Count(ctx context.Context) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return int(n), nil
}

func (r *MongoIdentityRepo) ListPage(ctx context.Context, skip, limit int) ([]*model.Identity, error) {
	if skip < 0 || limit <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	var docs []identityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	out := make([]*model.Identity, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

// Stats uses dbStats; storage plus index size is what hosted quotas count.
func (r *MongoIdentityRepo) Stats(ctx context.Context) (repository.StoreStats, error) {
	var st struct {
		StorageSize float64 `bson:"storageSize"`
		IndexSize   float64 `bson:"indexSize"`
	}
	if err := r.db.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&st); err != nil {
		return repository.StoreStats{}, fmt.Errorf("dbStats: %w", err)
	}
	return repository.StoreStats{UsedBytes: int64(st.StorageSize + st.IndexSize)}, nil
}

// buildIdentityUpdate sets the patched fields and fills every other field with its
// default only when the document is inserted.
func buildIdentityUpdate(p model.IdentityPatch, now time.Time) bson.M {
	set := bson.M{"last_seen_at": now}
	onInsert := bson.M{"created_at": now}

	pick := func(field string, v any, patched bool, def any) {
		if patched {
			set[field] = v
		} else if def != nil {
			onInsert[field] = def
		}
	}
	pick("display_name", deref(p.DisplayName), p.DisplayName != nil, "")
	pick("handle", deref(p.Handle), p.Handle != nil, "")
	pick("active_token", deref(p.ActiveToken), p.ActiveToken != nil, "")
	if p.Role != nil {
		set["role"] = string(*p.Role)
	} else {
		onInsert["role"] = string(model.RoleStandard)
	}
	if p.VerifiedUntil != nil {
		set["verified_until"] = p.VerifiedUntil.UTC()
	} else {
		onInsert["verified_until"] = model.EpochMin
	}
	if p.PremiumUntil != nil {
		set["premium_until"] = p.PremiumUntil.UTC()
	}
	return bson.M{"$set": set, "$setOnInsert": onInsert}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
