package attendance_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/attendance"
	inmemdb "github.com/showtime/portal/storage/database/inmem"
	"github.com/showtime/portal/tests"
)

type knownEmployees map[string]bool

func (k knownEmployees) Exists(_ context.Context, id string) (bool, error) { return k[id], nil }

func setup() *attendance.Service {
	repo := inmemdb.NewAttendanceRepository(inmemdb.Open())
	return attendance.NewService(repo, knownEmployees{"ada": true, "bob": true}, new(testutil.EventRecorder), testutil.NopLogger{})
}

func TestService_Upload(t *testing.T) {
	svc := setup()
	ctx := context.Background()

	_, err := svc.Upload(ctx, "admin", nil)
	assert.ErrorIs(t, err, attendance.ErrNoRecords)

	_, err = svc.Upload(ctx, "admin", []attendance.NewRecord{
		{EmployeeID: "ada", Date: "2025-03-01"},
		{EmployeeID: "ghost", Date: "2025-03-01"},
		{EmployeeID: "bob", Date: "03/01/2025", Status: "sick"},
		{EmployeeID: "bob", Date: "2025-03-02", CheckIn: "18:00", CheckOut: "09:00"},
	})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	fields := make([]string, len(vErr.Fields))
	for i, fe := range vErr.Fields {
		fields[i] = fe.Field
	}
	assert.Equal(t, []string{
		"records[1].employee_id",
		"records[2].date",
		"records[2].status",
		"records[3].check_out",
	}, fields)

	recs, err := svc.Query(ctx, "admin", true, attendance.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, recs, "an invalid batch stores nothing")

	res, err := svc.Upload(ctx, "admin", []attendance.NewRecord{
		{EmployeeID: "ada", Date: "2025-03-01", CheckIn: "09:00", CheckOut: "17:30"},
		{EmployeeID: "bob", Date: "2025-03-01", Status: "Remote"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Upserted)
	assert.Equal(t, attendance.StatusPresent, res.Records[0].Status)
	assert.Equal(t, attendance.StatusRemote, res.Records[1].Status)

	// re-uploading a day replaces the record
	res2, err := svc.Upload(ctx, "admin", []attendance.NewRecord{
		{EmployeeID: "ada", Date: "2025-03-01", Status: attendance.StatusLeave},
	})
	require.NoError(t, err)
	assert.Equal(t, res.Records[0].ID, res2.Records[0].ID)

	recs, err = svc.Query(ctx, "admin", true, attendance.QueryFilter{EmployeeID: "ada"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, attendance.StatusLeave, recs[0].Status)
}

func TestService_Query(t *testing.T) {
	svc := setup()
	ctx := context.Background()

	_, err := svc.Upload(ctx, "admin", []attendance.NewRecord{
		{EmployeeID: "ada", Date: "2025-03-01"},
		{EmployeeID: "ada", Date: "2025-03-02"},
		{EmployeeID: "ada", Date: "2025-03-03"},
		{EmployeeID: "bob", Date: "2025-03-02"},
	})
	require.NoError(t, err)

	dates := func(recs []attendance.Record) []string {
		out := make([]string, len(recs))
		for i, r := range recs {
			out[i] = r.EmployeeID + "@" + r.Date
		}
		return out
	}

	tests := []struct {
		name      string
		requester string
		isAdmin   bool
		filter    attendance.QueryFilter
		want      []string
		wantErr   error
	}{
		{name: "admin sees all", requester: "admin", isAdmin: true, want: []string{"ada@2025-03-03", "ada@2025-03-02", "bob@2025-03-02", "ada@2025-03-01"}},
		{name: "range", requester: "admin", isAdmin: true, filter: attendance.QueryFilter{From: "2025-03-02", To: "2025-03-02"}, want: []string{"ada@2025-03-02", "bob@2025-03-02"}},
		{name: "member sees own", requester: "bob", want: []string{"bob@2025-03-02"}},
		{name: "member asks own", requester: "bob", filter: attendance.QueryFilter{EmployeeID: "bob"}, want: []string{"bob@2025-03-02"}},
		{name: "member asks other", requester: "bob", filter: attendance.QueryFilter{EmployeeID: "ada"}, wantErr: core.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := svc.Query(ctx, tt.requester, tt.isAdmin, tt.filter)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dates(recs))
		})
	}

	_, err = svc.Query(ctx, "admin", true, attendance.QueryFilter{From: "yesterday"})
	var vErr *core.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
