package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/showtime/portal/core/announcement"
	"github.com/showtime/portal/storage/database"
)

type announcementRepository struct {
	coll *mongo.Collection
}

func NewAnnouncementRepository(db *mongo.Database) announcement.Repository {
	return &announcementRepository{coll: db.Collection(database.Announcements)}
}

func (repo *announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	if _, err := repo.coll.InsertOne(ctx, a); err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return a, nil
}

func (repo *announcementRepository) QueryAnnouncements(ctx context.Context, limit int) ([]announcement.Announcement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := repo.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	list := make([]announcement.Announcement, 0)
	if err = cur.All(ctx, &list); err != nil {
		return nil, errors.Wrap(err, "decoding announcements")
	}
	return list, nil
}

func (repo *announcementRepository) DeleteAnnouncement(ctx context.Context, id string) error {
	res, err := repo.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	if res.DeletedCount == 0 {
		return announcement.ErrNotFound
	}
	return nil
}
