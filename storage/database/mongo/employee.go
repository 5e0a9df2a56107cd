// Package mongodb implements the repositories on MongoDB collections.
package mongodb

import (
	"context"
	"regexp"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/employee"
	"github.com/showtime/portal/storage/database"
)

// caseInsensitive sorts strings the way people expect names to be sorted.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

var employeeOrderFields = map[string]bool{
	"name":        true,
	"email":       true,
	"department":  true,
	"designation": true,
	"role":        true,
	"is_active":   true,
	"created_at":  true,
	"last_login":  true,
}

type employeeRepository struct {
	coll *mongo.Collection
}

func NewEmployeeRepository(db *mongo.Database) employee.Repository {
	return &employeeRepository{coll: db.Collection(database.Employees)}
}

func (repo *employeeRepository) CreateEmployee(ctx context.Context, emp employee.Employee) (employee.Employee, error) {
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	if _, err := repo.coll.InsertOne(ctx, emp); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return employee.Employee{}, employee.ErrEmailExists
		}
		return employee.Employee{}, errors.Wrap(err, "inserting employee")
	}
	return emp, nil
}

func (repo *employeeRepository) findOne(ctx context.Context, filter bson.D) (employee.Employee, error) {
	var emp employee.Employee
	if err := repo.coll.FindOne(ctx, filter).Decode(&emp); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return employee.Employee{}, employee.ErrNotFound
		}
		return employee.Employee{}, errors.Wrap(err, "finding employee")
	}
	return emp, nil
}

func (repo *employeeRepository) GetEmployeeByID(ctx context.Context, id string) (employee.Employee, error) {
	return repo.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (repo *employeeRepository) GetEmployeeByEmail(ctx context.Context, email string) (employee.Employee, error) {
	return repo.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (repo *employeeRepository) QueryEmployees(
	ctx context.Context,
	filter employee.QueryFilter,
	ordering ...core.DBOrdering,
) ([]employee.Employee, error) {
	q := bson.D{}
	if filter.Search != "" {
		rx := bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
		q = append(q, bson.E{Key: "$or", Value: bson.A{
			bson.M{"name": rx},
			bson.M{"email": rx},
			bson.M{"department": rx},
		}})
	}
	if filter.Department != "" {
		q = append(q, bson.E{Key: "department", Value: bson.M{
			"$regex": "^" + regexp.QuoteMeta(filter.Department) + "$", "$options": "i",
		}})
	}
	if filter.Role != "" {
		q = append(q, bson.E{Key: "role", Value: filter.Role})
	}
	if filter.IsActive != nil {
		q = append(q, bson.E{Key: "is_active", Value: *filter.IsActive})
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort := bson.D{}
	for _, ord := range ordering {
		if !employeeOrderFields[ord.Field] {
			continue
		}
		sort = append(sort, bson.E{Key: ord.Field, Value: ord.Direction()})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})

	cur, err := repo.coll.Find(ctx, q, options.Find().SetSort(sort).SetCollation(caseInsensitive))
	if err != nil {
		return nil, errors.Wrap(err, "querying employees")
	}
	emps := make([]employee.Employee, 0)
	if err = cur.All(ctx, &emps); err != nil {
		return nil, errors.Wrap(err, "decoding employees")
	}
	return emps, nil
}

func (repo *employeeRepository) UpdateEmployee(ctx context.Context, emp employee.Employee) (employee.Employee, error) {
	res, err := repo.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: emp.ID}}, emp)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return employee.Employee{}, employee.ErrEmailExists
		}
		return employee.Employee{}, errors.Wrap(err, "updating employee")
	}
	if res.MatchedCount == 0 {
		return employee.Employee{}, employee.ErrNotFound
	}
	return emp, nil
}

func (repo *employeeRepository) DeleteEmployeesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.coll.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.M{"$in": ids}}}); err != nil {
		return errors.Wrap(err, "deleting employees")
	}
	return nil
}
