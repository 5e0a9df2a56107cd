package inmemdb

import (
	"context"
	"sort"

	"github.com/showtime/portal/core/announcement"
)

type announcementRepository struct {
	db *announcementTable
}

func NewAnnouncementRepository(db *DB) announcement.Repository {
	return &announcementRepository{db: db.announcement}
}

func (repo *announcementRepository) CreateAnnouncement(_ context.Context, a announcement.Announcement) (announcement.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *announcementRepository) QueryAnnouncements(_ context.Context, limit int) ([]announcement.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	list := make([]announcement.Announcement, 0, len(repo.db.table))
	for _, a := range repo.db.table {
		list = append(list, *a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (repo *announcementRepository) DeleteAnnouncement(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return announcement.ErrNotFound
	}
	delete(repo.db.table, id)
	return nil
}
