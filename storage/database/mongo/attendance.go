package mongodb

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/showtime/portal/core/attendance"
	"github.com/showtime/portal/storage/database"
)

type attendanceRepository struct {
	coll *mongo.Collection
}

func NewAttendanceRepository(db *mongo.Database) attendance.Repository {
	return &attendanceRepository{coll: db.Collection(database.Attendance)}
}

// UpsertRecords upserts one record at a time on the unique (employee_id, date) index.
func (repo *attendanceRepository) UpsertRecords(ctx context.Context, records []attendance.Record) ([]attendance.Record, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	stored := make([]attendance.Record, 0, len(records))
	for _, rec := range records {
		filter := bson.D{{Key: "employee_id", Value: rec.EmployeeID}, {Key: "date", Value: rec.Date}}
		update := bson.D{
			{Key: "$set", Value: bson.M{
				"check_in":    rec.CheckIn,
				"check_out":   rec.CheckOut,
				"status":      rec.Status,
				"note":        rec.Note,
				"uploaded_by": rec.UploadedBy,
				"updated_at":  rec.UpdatedAt,
			}},
			{Key: "$setOnInsert", Value: bson.M{
				"_id":        rec.ID,
				"created_at": rec.CreatedAt,
			}},
		}
		var out attendance.Record
		if err := repo.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out); err != nil {
			return nil, errors.Wrapf(err, "upserting attendance %s/%s", rec.EmployeeID, rec.Date)
		}
		stored = append(stored, out)
	}
	return stored, nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Record, error) {
	q := bson.D{}
	if filter.EmployeeID != "" {
		q = append(q, bson.E{Key: "employee_id", Value: filter.EmployeeID})
	}
	// YYYY-MM-DD dates compare lexically
	dates := bson.M{}
	if filter.From != "" {
		dates["$gte"] = filter.From
	}
	if filter.To != "" {
		dates["$lte"] = filter.To
	}
	if len(dates) > 0 {
		q = append(q, bson.E{Key: "date", Value: dates})
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "employee_id", Value: 1}})
	cur, err := repo.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	recs := make([]attendance.Record, 0)
	if err = cur.All(ctx, &recs); err != nil {
		return nil, errors.Wrap(err, "decoding attendance")
	}
	return recs, nil
}
