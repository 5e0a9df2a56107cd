package inmemdb

import (
	"context"
	"sort"

	"github.com/showtime/portal/core/meeting"
)

type meetingRepository struct {
	db *meetingTable
}

func NewMeetingRepository(db *DB) meeting.Repository {
	return &meetingRepository{db: db.meeting}
}

func (repo *meetingRepository) CreateMeeting(_ context.Context, m meeting.Meeting) (meeting.Meeting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m.Attendees = append([]string{}, m.Attendees...)
	repo.db.table[m.ID] = &m
	return m, nil
}

func (repo *meetingRepository) GetMeetingByID(_ context.Context, id string) (meeting.Meeting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.table[id]; ok {
		return *m, nil
	}
	return meeting.Meeting{}, meeting.ErrNotFound
}

func (repo *meetingRepository) QueryMeetings(_ context.Context, p meeting.Participant, limit int) ([]meeting.Meeting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	meetings := make([]meeting.Meeting, 0)
	for _, m := range repo.db.table {
		if m.IsParticipant(p) {
			meetings = append(meetings, *m)
		}
	}
	sort.Slice(meetings, func(i, j int) bool {
		if !meetings[i].Start.Equal(meetings[j].Start) {
			return meetings[i].Start.Before(meetings[j].Start)
		}
		return meetings[i].ID < meetings[j].ID
	})
	if limit > 0 && len(meetings) > limit {
		meetings = meetings[:limit]
	}
	return meetings, nil
}

func (repo *meetingRepository) DeleteMeeting(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return meeting.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
