// Package attendance stores daily attendance records uploaded in batches by admins.
package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	EventUploaded = "attendance.uploaded"
)

// Status of an employee on a given day.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLeave   Status = "leave"
	StatusRemote  Status = "remote"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLeave, StatusRemote:
		return true
	}
	return false
}

var ErrNoRecords = errors.New("no attendance records")

type (
	Record struct {
		ID         string    `json:"id" bson:"_id"`
		EmployeeID string    `json:"employee_id" bson:"employee_id"`
		Date       string    `json:"date" bson:"date"` // YYYY-MM-DD
		CheckIn    string    `json:"check_in,omitempty" bson:"check_in,omitempty"`
		CheckOut   string    `json:"check_out,omitempty" bson:"check_out,omitempty"`
		Status     Status    `json:"status" bson:"status"`
		Note       string    `json:"note,omitempty" bson:"note,omitempty"`
		UploadedBy string    `json:"uploaded_by" bson:"uploaded_by"`
		CreatedAt  time.Time `json:"created_at" bson:"created_at"` // UTC
		UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"` // UTC
	}

	// NewRecord is one entry of an uploaded batch.
	NewRecord struct {
		EmployeeID string `json:"employee_id"`
		Date       string `json:"date"`
		CheckIn    string `json:"check_in"`
		CheckOut   string `json:"check_out"`
		Status     Status `json:"status"`
		Note       string `json:"note"`
	}

	QueryFilter struct {
		EmployeeID string `query:"employee_id"`
		From       string `query:"from"` // YYYY-MM-DD, inclusive
		To         string `query:"to"`   // YYYY-MM-DD, inclusive
	}

	UploadResult struct {
		Upserted int      `json:"upserted"`
		Records  []Record `json:"records"`
	}

	Repository interface {
		// UpsertRecords inserts or replaces records by (EmployeeID, Date), keeping ID and CreatedAt of replaced ones.
		UpsertRecords(ctx context.Context, records []Record) ([]Record, error)
		// QueryRecords returns records ordered by date descending, then employee.
		QueryRecords(ctx context.Context, filter QueryFilter) ([]Record, error)
	}

	// EmployeeChecker tells whether an employee exists.
	EmployeeChecker interface {
		Exists(ctx context.Context, id string) (bool, error)
	}

	Service struct {
		repo      Repository
		employees EmployeeChecker
		events    core.EventPublisher
		logger    core.Logger
	}
)

func (nr *NewRecord) Clean() {
	nr.EmployeeID = core.CleanString(nr.EmployeeID)
	nr.Date = core.CleanString(nr.Date)
	nr.CheckIn = core.CleanString(nr.CheckIn)
	nr.CheckOut = core.CleanString(nr.CheckOut)
	nr.Status = Status(core.CleanString(string(nr.Status), true /* lower */))
	nr.Note = core.CleanString(nr.Note)
	if nr.Status == "" {
		nr.Status = StatusPresent
	}
}

func (qf *QueryFilter) Clean() {
	qf.EmployeeID = core.CleanString(qf.EmployeeID)
	qf.From = core.CleanString(qf.From)
	qf.To = core.CleanString(qf.To)
}

func NewService(repo Repository, employees EmployeeChecker, events core.EventPublisher, logger core.Logger) *Service {
	return &Service{repo: repo, employees: employees, events: events, logger: logger}
}

// Upload validates the whole batch, then upserts it. Field errors are keyed by record
// index, e.g. "records[2].date"; nothing is stored if any record is invalid.
func (svc *Service) Upload(ctx context.Context, uploaderID string, batch []NewRecord) (UploadResult, error) {
	if len(batch) == 0 {
		return UploadResult{}, core.NewValidationError(ErrNoRecords, core.FieldError{Field: "records", Error: ErrNoRecords.Error()})
	}

	var fldErrs []core.FieldError
	known := make(map[string]bool)
	now := core.NowFunc()
	records := make([]Record, 0, len(batch))

	for i := range batch {
		nr := batch[i]
		nr.Clean()
		errs := validateRecord(nr)

		if nr.EmployeeID != "" {
			exists, ok := known[nr.EmployeeID]
			if !ok {
				var err error
				if exists, err = svc.employees.Exists(ctx, nr.EmployeeID); err != nil {
					return UploadResult{}, errors.Wrap(err, "checking employee")
				}
				known[nr.EmployeeID] = exists
			}
			if !exists {
				errs = append(errs, core.FieldError{Field: "employee_id", Error: "unknown employee"})
			}
		}

		for _, e := range errs {
			fldErrs = append(fldErrs, core.FieldError{Field: fmt.Sprintf("records[%d].%s", i, e.Field), Error: e.Error})
		}
		records = append(records, Record{
			ID:         uuid.NewString(),
			EmployeeID: nr.EmployeeID,
			Date:       nr.Date,
			CheckIn:    nr.CheckIn,
			CheckOut:   nr.CheckOut,
			Status:     nr.Status,
			Note:       nr.Note,
			UploadedBy: uploaderID,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if len(fldErrs) > 0 {
		return UploadResult{}, core.NewValidationError(nil, fldErrs...)
	}

	stored, err := svc.repo.UpsertRecords(ctx, records)
	if err != nil {
		return UploadResult{}, errors.Wrap(err, "upserting attendance records")
	}

	if svc.events != nil {
		if err = svc.events.Publish(EventUploaded, map[string]interface{}{"uploaded_by": uploaderID, "count": len(stored)}); err != nil {
			svc.logger.Error(fmt.Sprintf("publishing %s", EventUploaded), err)
		}
	}
	return UploadResult{Upserted: len(stored), Records: stored}, nil
}

// Query returns the records matching the filter. Non admin requesters only see their own records.
func (svc *Service) Query(ctx context.Context, requesterID string, isAdmin bool, filter QueryFilter) ([]Record, error) {
	filter.Clean()
	if !isAdmin {
		if filter.EmployeeID != "" && filter.EmployeeID != requesterID {
			return nil, core.ErrForbidden
		}
		filter.EmployeeID = requesterID
	}

	var fldErrs []core.FieldError
	if filter.From != "" && !isDate(filter.From) {
		fldErrs = append(fldErrs, core.FieldError{Field: "from", Error: "must be a date (YYYY-MM-DD)"})
	}
	if filter.To != "" && !isDate(filter.To) {
		fldErrs = append(fldErrs, core.FieldError{Field: "to", Error: "must be a date (YYYY-MM-DD)"})
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}

	recs, err := svc.repo.QueryRecords(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	return recs, nil
}

func validateRecord(nr NewRecord) []core.FieldError {
	var errs []core.FieldError
	if nr.EmployeeID == "" {
		errs = append(errs, core.FieldError{Field: "employee_id", Error: "employee_id is required"})
	}
	if nr.Date == "" {
		errs = append(errs, core.FieldError{Field: "date", Error: "date is required"})
	} else if !isDate(nr.Date) {
		errs = append(errs, core.FieldError{Field: "date", Error: "must be a date (YYYY-MM-DD)"})
	}
	if !nr.Status.IsValid() {
		errs = append(errs, core.FieldError{Field: "status", Error: "must be one of present, absent, leave, remote"})
	}

	var in, out time.Time
	var err error
	if nr.CheckIn != "" {
		if in, err = time.Parse(TimeLayout, nr.CheckIn); err != nil {
			errs = append(errs, core.FieldError{Field: "check_in", Error: "must be a time (HH:MM)"})
		}
	}
	if nr.CheckOut != "" {
		if out, err = time.Parse(TimeLayout, nr.CheckOut); err != nil {
			errs = append(errs, core.FieldError{Field: "check_out", Error: "must be a time (HH:MM)"})
		}
	}
	if !in.IsZero() && !out.IsZero() && out.Before(in) {
		errs = append(errs, core.FieldError{Field: "check_out", Error: "must not be before check_in"})
	}
	return errs
}

func isDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}
