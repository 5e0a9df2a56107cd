package inmemdb

import (
	"context"
	"sort"

	"github.com/showtime/portal/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) UpsertRecords(_ context.Context, records []attendance.Record) ([]attendance.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := make([]attendance.Record, 0, len(records))
	for _, rec := range records {
		key := rec.EmployeeID + "/" + rec.Date
		if orig, ok := repo.db.table[key]; ok {
			rec.ID = orig.ID
			rec.CreatedAt = orig.CreatedAt
		}
		repo.db.table[key] = &rec
		stored = append(stored, rec)
	}
	return stored, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter attendance.QueryFilter) ([]attendance.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]attendance.Record, 0)
	for _, rec := range repo.db.table {
		// YYYY-MM-DD dates compare lexically
		if filter.EmployeeID != "" && rec.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.From != "" && rec.Date < filter.From {
			continue
		}
		if filter.To != "" && rec.Date > filter.To {
			continue
		}
		recs = append(recs, *rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Date != recs[j].Date {
			return recs[i].Date > recs[j].Date
		}
		return recs[i].EmployeeID < recs[j].EmployeeID
	})
	return recs, nil
}
