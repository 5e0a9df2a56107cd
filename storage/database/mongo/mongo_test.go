package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/attendance"
	"github.com/showtime/portal/core/employee"
	"github.com/showtime/portal/core/meeting"
	"github.com/showtime/portal/core/message"
	"github.com/showtime/portal/storage/database"
)

// openTestDB connects to the server named by TEST_MONGO_URI and skips the test when it is unset.
func openTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	conf := &core.Config{AppName: "portal-test", Database: core.DatabaseConfig{
		URI:            uri,
		Name:           "portal_test_" + uuid.NewString()[:8],
		ConnectTimeout: 5 * time.Second,
	}}
	db, err := database.Open(ctx, conf)
	require.NoError(t, err)
	require.NoError(t, database.EnsureIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = database.Close(context.Background(), db)
	})
	return db
}

func TestEmployeeRepository(t *testing.T) {
	repo := NewEmployeeRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	alice, err := repo.CreateEmployee(ctx, employee.Employee{
		ID: uuid.NewString(), Name: "alice", Email: "alice@showtime.io", Department: "Engineering",
		Role: employee.RoleAdmin, IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	_, err = repo.CreateEmployee(ctx, employee.Employee{
		ID: uuid.NewString(), Name: "Bob", Email: "bob@showtime.io", Department: "Sales",
		Role: employee.RoleMember, IsActive: true, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	_, err = repo.CreateEmployee(ctx, employee.Employee{ID: uuid.NewString(), Email: "alice@showtime.io"})
	assert.ErrorIs(t, err, employee.ErrEmailExists)

	got, err := repo.GetEmployeeByEmail(ctx, "alice@showtime.io")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = repo.GetEmployeeByID(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	emps, err := repo.QueryEmployees(ctx, employee.QueryFilter{})
	require.NoError(t, err)
	if assert.Len(t, emps, 2) {
		assert.Equal(t, "alice", emps[0].Name)
		assert.Equal(t, "Bob", emps[1].Name)
	}

	emps, err = repo.QueryEmployees(ctx, employee.QueryFilter{}, core.DBOrdering{Field: "name"})
	require.NoError(t, err)
	if assert.Len(t, emps, 2) {
		assert.Equal(t, "Bob", emps[0].Name)
	}

	emps, err = repo.QueryEmployees(ctx, employee.QueryFilter{Search: "SALES"})
	require.NoError(t, err)
	assert.Len(t, emps, 1)

	alice.Name = "Alice"
	_, err = repo.UpdateEmployee(ctx, alice)
	require.NoError(t, err)
	alice.Email = "bob@showtime.io"
	_, err = repo.UpdateEmployee(ctx, alice)
	assert.ErrorIs(t, err, employee.ErrEmailExists)

	require.NoError(t, repo.DeleteEmployeesByID(ctx, alice.ID))
	_, err = repo.GetEmployeeByID(ctx, alice.ID)
	assert.ErrorIs(t, err, employee.ErrNotFound)
}

func TestMeetingRepository(t *testing.T) {
	repo := NewMeetingRepository(openTestDB(t))
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Millisecond)

	later, err := repo.CreateMeeting(ctx, meeting.Meeting{
		ID: uuid.NewString(), Title: "later", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour),
		CreatorID: "c1", Attendees: []string{"bob@showtime.io"},
	})
	require.NoError(t, err)
	sooner, err := repo.CreateMeeting(ctx, meeting.Meeting{
		ID: uuid.NewString(), Title: "sooner", Start: start, End: start.Add(time.Hour), CreatorID: "c2",
	})
	require.NoError(t, err)

	list, err := repo.QueryMeetings(ctx, meeting.Participant{ID: "c2", Email: "BOB@showtime.io"}, 10)
	require.NoError(t, err)
	if assert.Len(t, list, 2) {
		assert.Equal(t, sooner.ID, list[0].ID)
		assert.Equal(t, later.ID, list[1].ID)
	}

	require.NoError(t, repo.DeleteMeeting(ctx, later.ID))
	assert.ErrorIs(t, repo.DeleteMeeting(ctx, later.ID), meeting.ErrNotFound)
}

func TestMessageRepository(t *testing.T) {
	repo := NewMessageRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for i, msg := range []message.Message{
		{ChannelID: message.GeneralChannel, SenderID: "a", Content: "one"},
		{RecipientID: "b", SenderID: "a", Content: "two"},
		{ChannelID: message.GeneralChannel, SenderID: "b", Content: "three"},
		{RecipientID: "a", SenderID: "b", Content: "four", Kind: message.KindFile, File: &message.File{ID: "f1"}},
	} {
		msg.ID = uuid.NewString()
		msg.CreatedAt = now.Add(time.Duration(i) * time.Second)
		_, err := repo.CreateMessage(ctx, msg)
		require.NoError(t, err)
	}

	msgs, err := repo.QueryMessages(ctx, message.Query{ChannelID: message.GeneralChannel, Limit: 10})
	require.NoError(t, err)
	if assert.Len(t, msgs, 2) {
		assert.Equal(t, "one", msgs[0].Content)
		assert.Equal(t, "three", msgs[1].Content)
	}

	msgs, err = repo.QueryMessages(ctx, message.Query{EmployeeID: "b", RecipientID: "a", Limit: 1})
	require.NoError(t, err)
	if assert.Len(t, msgs, 1) {
		assert.Equal(t, "four", msgs[0].Content)
	}

	msg, err := repo.GetFileMessage(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "four", msg.Content)
	_, err = repo.GetFileMessage(ctx, "f2")
	assert.ErrorIs(t, err, message.ErrFileNotFound)
}

func TestAttendanceRepository(t *testing.T) {
	repo := NewAttendanceRepository(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first, err := repo.UpsertRecords(ctx, []attendance.Record{
		{ID: "r1", EmployeeID: "e1", Date: "2025-03-01", Status: attendance.StatusPresent, CreatedAt: now, UpdatedAt: now},
		{ID: "r2", EmployeeID: "e1", Date: "2025-03-02", Status: attendance.StatusRemote, CreatedAt: now, UpdatedAt: now},
	})
	require.NoError(t, err)
	require.Len(t, first, 2)

	later := now.Add(time.Hour)
	second, err := repo.UpsertRecords(ctx, []attendance.Record{
		{ID: "r3", EmployeeID: "e1", Date: "2025-03-01", Status: attendance.StatusLeave, CreatedAt: later, UpdatedAt: later},
	})
	require.NoError(t, err)
	if assert.Len(t, second, 1) {
		assert.Equal(t, "r1", second[0].ID)
		assert.Equal(t, attendance.StatusLeave, second[0].Status)
		assert.True(t, now.Equal(second[0].CreatedAt))
	}

	recs, err := repo.QueryRecords(ctx, attendance.QueryFilter{EmployeeID: "e1", From: "2025-03-01", To: "2025-03-31"})
	require.NoError(t, err)
	if assert.Len(t, recs, 2) {
		assert.Equal(t, "2025-03-02", recs[0].Date)
	}
}
