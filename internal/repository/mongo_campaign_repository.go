package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appErrors "github.com/unclebandit/crowdfund-backend/internal/errors"
	"github.com/unclebandit/crowdfund-backend/internal/model"
	"github.com/unclebandit/crowdfund-backend/internal/query"
)

const CampaignsCollection = "campaigns"

// MongoCampaignRepository stores campaigns as documents keyed by their
// hex identifier.
type MongoCampaignRepository struct {
	Coll *mongo.Collection
}

func NewMongoCampaignRepository(db *mongo.Database) *MongoCampaignRepository {
	return &MongoCampaignRepository{Coll: db.Collection(CampaignsCollection)}
}

// EnsureIndexes creates the slug uniqueness index and the indexes list
// queries lean on.
func (r *MongoCampaignRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.Coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	})
	if err != nil {
		return appErrors.Unexpected("create campaign indexes", err)
	}
	return nil
}

func (r *MongoCampaignRepository) Find(ctx context.Context, filter query.Node, opts FindOptions) ([]*model.Campaign, error) {
	if err := opts.check(); err != nil {
		return nil, err
	}
	doc, err := mongoFilter(filter)
	if err != nil {
		return nil, appErrors.NewValidation("filter", err.Error())
	}
	sort, err := mongoSort(opts.Sort)
	if err != nil {
		return nil, appErrors.NewValidation("sort", err.Error())
	}
	fo := options.Find().SetSort(sort)
	if opts.Skip > 0 {
		fo.SetSkip(int64(opts.Skip))
	}
	if opts.Limit > 0 {
		fo.SetLimit(int64(opts.Limit))
	}

	cur, err := r.Coll.Find(ctx, doc, fo)
	if err != nil {
		return nil, appErrors.Unexpected("find campaigns", err)
	}
	defer cur.Close(ctx)

	campaigns := []*model.Campaign{}
	if err := cur.All(ctx, &campaigns); err != nil {
		return nil, appErrors.Unexpected("decode campaigns", err)
	}
	return campaigns, nil
}

func (r *MongoCampaignRepository) FindOne(ctx context.Context, filter query.Node) (*model.Campaign, error) {
	found, err := r.Find(ctx, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, appErrors.NewCampaignNotFound("")
	}
	return found[0], nil
}

func (r *MongoCampaignRepository) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := r.Coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	if err != nil {
		return nil, appErrors.Unexpected("get campaign", err)
	}
	return &c, nil
}

func (r *MongoCampaignRepository) Count(ctx context.Context, filter query.Node) (int, error) {
	doc, err := mongoFilter(filter)
	if err != nil {
		return 0, appErrors.NewValidation("filter", err.Error())
	}
	n, err := r.Coll.CountDocuments(ctx, doc)
	if err != nil {
		return 0, appErrors.Unexpected("count campaigns", err)
	}
	return int(n), nil
}

func (r *MongoCampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if _, err := r.Coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &appErrors.ConflictError{ID: c.ID, Reason: "slug already exists"}
		}
		return appErrors.Unexpected("create campaign", err)
	}
	return nil
}

func stateFilter(id string, s model.State) bson.M {
	return bson.M{"_id": id, "status": s.Status, "release_status": s.ReleaseStatus}
}

func (r *MongoCampaignRepository) Update(ctx context.Context, id string, expected model.State, u model.CampaignUpdate) (*model.Campaign, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.GoalAmount != nil {
		set["goal_amount"] = *u.GoalAmount
	}
	if u.StartDate != nil {
		set["start_date"] = *u.StartDate
	}
	if u.EndDate != nil {
		set["end_date"] = *u.EndDate
	}
	if len(u.Image) > 0 {
		set["attachments.image"] = u.Image
	}
	if len(u.Video) > 0 {
		set["attachments.video"] = u.Video
	}
	if len(u.Document) > 0 {
		set["attachments.document"] = u.Document
	}
	if u.Links != nil {
		set["links"] = nonNil(*u.Links)
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	return r.findAndSet(ctx, id, expected, set, "update campaign")
}

func (r *MongoCampaignRepository) CompareAndSwapState(ctx context.Context, id string, expected, next model.State) (*model.Campaign, error) {
	set := bson.M{
		"status":         next.Status,
		"release_status": next.ReleaseStatus,
		"updated_at":     time.Now().UTC(),
	}
	return r.findAndSet(ctx, id, expected, set, "update campaign state")
}

func (r *MongoCampaignRepository) findAndSet(ctx context.Context, id string, expected model.State, set bson.M, op string) (*model.Campaign, error) {
	var c model.Campaign
	err := r.Coll.FindOneAndUpdate(ctx, stateFilter(id, expected), bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, r.missOrConflict(ctx, id)
	}
	if err != nil {
		return nil, appErrors.Unexpected(op, err)
	}
	return &c, nil
}

func (r *MongoCampaignRepository) Delete(ctx context.Context, snapshot *model.Campaign) error {
	f := stateFilter(snapshot.ID, snapshot.State())
	f["raised_amount"] = snapshot.RaisedAmount
	res, err := r.Coll.DeleteOne(ctx, f)
	if err != nil {
		return appErrors.Unexpected("delete campaign", err)
	}
	if res.DeletedCount == 0 {
		return r.missOrConflict(ctx, snapshot.ID)
	}
	return nil
}

func (r *MongoCampaignRepository) missOrConflict(ctx context.Context, id string) error {
	n, err := r.Coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return appErrors.Unexpected("check campaign", err)
	}
	if n == 0 {
		return appErrors.NewCampaignNotFound(id)
	}
	return appErrors.NewConflict(id)
}

var _ CampaignRepositoryInterface = (*MongoCampaignRepository)(nil)
