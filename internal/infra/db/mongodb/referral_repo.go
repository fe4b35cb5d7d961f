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

var _ repository.ReferralRepository = (*MongoReferralRepo)(nil)

type referralDoc struct {
	Code       string    `bson:"_id"`
	ReferrerID int64     `bson:"referrer_id"`
	Referred   []int64   `bson:"referred"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d *referralDoc) toModel() *model.ReferralRecord {
	return &model.ReferralRecord{
		Code:       d.Code,
		ReferrerID: d.ReferrerID,
		Referred:   d.Referred,
		CreatedAt:  d.CreatedAt,
	}
}

type MongoReferralRepo struct {
	coll *mongo.Collection
}

func NewMongoReferralRepo(db *mongo.Database) *MongoReferralRepo {
	return &MongoReferralRepo{coll: db.Collection(referralsCollection)}
}

func (r *MongoReferralRepo) Create(ctx context.Context, rec *model.ReferralRecord) error {
	if rec == nil || rec.Code == "" || rec.ReferrerID == 0 {
		return domain.ErrInvalidArgument
	}
	doc := referralDoc{Code: rec.Code, ReferrerID: rec.ReferrerID, Referred: rec.Referred, CreatedAt: rec.CreatedAt.UTC()}
	if doc.Referred == nil {
		// $push needs an array to append to
		doc.Referred = []int64{}
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("referral code %q taken: %w", rec.Code, domain.ErrInvalidArgument)
		}
		return fmt.Errorf("create referral: %w", err)
	}
	return nil
}

func (r *MongoReferralRepo) FindByCode(ctx context.Context, code string) (*model.ReferralRecord, error) {
	var d referralDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": code}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, fmt.Errorf("find referral: %w", err)
	}
	return d.toModel(), nil
}

func (r *MongoReferralRepo) ExistsForReferrer(ctx context.Context, referrerID int64) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"referrer_id": referrerID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("referral exists: %w", err)
	}
	return n > 0, nil
}

func (r *MongoReferralRepo) AppendReferral(ctx context.Context, code string, identityID int64) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": code}, bson.M{"$push": bson.M{"referred": identityID}})
	if err != nil {
		return fmt.Errorf("append referral: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrCodeNotFound
	}
	return nil
}

func (r *MongoReferralRepo) ListByReferrer(ctx context.Context, referrerID int64) ([]*model.ReferralRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"referrer_id": referrerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	var docs []referralDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	out := make([]*model.ReferralRecord, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}
