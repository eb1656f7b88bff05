package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roamly/tour-booking/internal/model"
)

// ActiveFilter excludes soft-deleted accounts from every lookup.
var ActiveFilter = bson.M{"active": bson.M{"$ne": false}}

// UserRepo persists users in the `users` collection.
type UserRepo struct{ Coll *mongo.Collection }

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{Coll: db.Collection("users")}
}

// Create inserts a prepared user document (password already hashed) and
// fills in its generated id.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = model.NormalizeEmail(u.Email)
	u.CreatedAt = time.Now().UTC()
	u.Active = true
	res, err := r.Coll.InsertOne(ctx, u)
	if err != nil {
		return err
	}
	u.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// GetByID fetches an active user by id.
func (r *UserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (model.User, error) {
	return r.findOne(ctx, withActive(bson.M{"_id": id}))
}

// GetByEmail fetches an active user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.findOne(ctx, withActive(bson.M{"email": model.NormalizeEmail(email)}))
}

// GetByResetToken fetches the user holding the given reset token hash with
// an unexpired expiry. Lookup is only ever by hash.
func (r *UserRepo) GetByResetToken(ctx context.Context, tokenHash string) (model.User, error) {
	return r.findOne(ctx, withActive(bson.M{
		"passwordResetToken":   tokenHash,
		"passwordResetExpires": bson.M{"$gt": time.Now().UTC()},
	}))
}

// UpdatePassword stores a new password hash and stamps passwordChangedAt.
// The stamp is backdated by one second so the token issued in the same
// request is not immediately considered stale. Reset fields are always
// cleared; a password change consumes any outstanding reset token.
func (r *UserRepo) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	res, err := r.Coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"password": hash, "passwordChangedAt": time.Now().UTC().Add(-time.Second)},
		"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetToken stores a reset token hash and its expiry on the user.
func (r *UserRepo) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	res, err := r.Coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"passwordResetToken": tokenHash, "passwordResetExpires": expires},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearResetTokenIf removes the reset fields only while they still hold the
// given hash. A concurrent forgot-password request that stored a newer
// token is left untouched.
func (r *UserRepo) ClearResetTokenIf(ctx context.Context, id primitive.ObjectID, tokenHash string) error {
	_, err := r.Coll.UpdateOne(ctx,
		bson.M{"_id": id, "passwordResetToken": tokenHash},
		bson.M{"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""}})
	return err
}

// UpdateProfile applies a partial update of non-sensitive fields and
// returns the updated document. An email field is normalized like on
// Create; the case-sensitive unique index and GetByEmail both rely on the
// stored form being lowercase.
func (r *UserRepo) UpdateProfile(ctx context.Context, id primitive.ObjectID, fields bson.M) (model.User, error) {
	if email, ok := fields["email"].(string); ok {
		fields["email"] = model.NormalizeEmail(email)
	}
	var u model.User
	err := r.Coll.FindOneAndUpdate(ctx, withActive(bson.M{"_id": id}),
		bson.M{"$set": fields},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// Deactivate soft-deletes the account. The document stays in the
// collection but no default query will return it again.
func (r *UserRepo) Deactivate(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.Coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SummariesByIDs loads the public shape of the given users, used to
// populate guide references on tours.
func (r *UserRepo) SummariesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Summary, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := r.Coll.Find(ctx, withActive(bson.M{"_id": bson.M{"$in": ids}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []model.Summary
	return out, cur.All(ctx, &out)
}

// EnsureIndexes declares the unique email index.
func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.Coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (model.User, error) {
	var u model.User
	err := r.Coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

func withActive(filter bson.M) bson.M {
	for k, v := range ActiveFilter {
		filter[k] = v
	}
	return filter
}
