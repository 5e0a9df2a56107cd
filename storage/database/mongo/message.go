package mongodb

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/showtime/portal/core/message"
	"github.com/showtime/portal/storage/database"
)

type messageRepository struct {
	coll *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) message.Repository {
	return &messageRepository{coll: db.Collection(database.Messages)}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	if _, err := repo.coll.InsertOne(ctx, msg); err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func conversationFilter(q message.Query) bson.D {
	if q.RecipientID == "" {
		return bson.D{
			{Key: "channel_id", Value: q.ChannelID},
			{Key: "recipient_id", Value: bson.M{"$exists": false}},
		}
	}
	return bson.D{{Key: "$or", Value: bson.A{
		bson.M{"sender_id": q.EmployeeID, "recipient_id": q.RecipientID},
		bson.M{"sender_id": q.RecipientID, "recipient_id": q.EmployeeID},
	}}}
}

func (repo *messageRepository) QueryMessages(ctx context.Context, q message.Query) ([]message.Message, error) {
	// newest first to apply the limit, then back to chronological order
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	cur, err := repo.coll.Find(ctx, conversationFilter(q), opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]message.Message, 0)
	if err = cur.All(ctx, &msgs); err != nil {
		return nil, errors.Wrap(err, "decoding messages")
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func (repo *messageRepository) GetFileMessage(ctx context.Context, fileID string) (message.Message, error) {
	var msg message.Message
	if err := repo.coll.FindOne(ctx, bson.D{{Key: "file.id", Value: fileID}}).Decode(&msg); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return message.Message{}, message.ErrFileNotFound
		}
		return message.Message{}, errors.Wrap(err, "finding file message")
	}
	return msg, nil
}
