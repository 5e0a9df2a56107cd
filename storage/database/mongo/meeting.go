package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/meeting"
	"github.com/showtime/portal/storage/database"
)

type meetingRepository struct {
	coll *mongo.Collection
}

func NewMeetingRepository(db *mongo.Database) meeting.Repository {
	return &meetingRepository{coll: db.Collection(database.Meetings)}
}

func (repo *meetingRepository) CreateMeeting(ctx context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	if _, err := repo.coll.InsertOne(ctx, m); err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "inserting meeting")
	}
	return m, nil
}

func (repo *meetingRepository) GetMeetingByID(ctx context.Context, id string) (meeting.Meeting, error) {
	var m meeting.Meeting
	if err := repo.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return meeting.Meeting{}, meeting.ErrNotFound
		}
		return meeting.Meeting{}, errors.Wrap(err, "finding meeting")
	}
	return m, nil
}

func (repo *meetingRepository) QueryMeetings(ctx context.Context, p meeting.Participant, limit int) ([]meeting.Meeting, error) {
	or := bson.A{}
	if p.ID != "" {
		or = append(or, bson.M{"creator_id": p.ID})
	}
	if email := core.CleanString(p.Email, true /* lower */); email != "" {
		or = append(or, bson.M{"attendees": email})
	}
	meetings := make([]meeting.Meeting, 0)
	if len(or) == 0 {
		return meetings, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := repo.coll.Find(ctx, bson.D{{Key: "$or", Value: or}}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	if err = cur.All(ctx, &meetings); err != nil {
		return nil, errors.Wrap(err, "decoding meetings")
	}
	return meetings, nil
}

func (repo *meetingRepository) DeleteMeeting(ctx context.Context, id string) error {
	res, err := repo.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return errors.Wrap(err, "deleting meeting")
	}
	if res.DeletedCount == 0 {
		return meeting.ErrNotFound
	}
	return nil
}
