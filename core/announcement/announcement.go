// Package announcement handles company wide announcements posted by admins.
package announcement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
)

const (
	// TypeAnnouncement is the wire type pushed to live connections.
	TypeAnnouncement = "announcement"

	EventCreated = "announcement.created"
	EventDeleted = "announcement.deleted"

	DefaultListLimit = 50
)

var ErrNotFound = fmt.Errorf("announcement %w", core.ErrNotFound)

type (
	Announcement struct {
		ID         string    `json:"id" bson:"_id"`
		Title      string    `json:"title" bson:"title"`
		Content    string    `json:"content" bson:"content"`
		AuthorID   string    `json:"author_id" bson:"author_id"`
		AuthorName string    `json:"author_name" bson:"author_name"`
		CreatedAt  time.Time `json:"created_at" bson:"created_at"` // UTC
	}

	NewAnnouncement struct {
		Title   string `json:"title" validate:"required"`
		Content string `json:"content" validate:"required"`
	}

	Repository interface {
		CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error)
		// QueryAnnouncements returns up to limit announcements, newest first.
		QueryAnnouncements(ctx context.Context, limit int) ([]Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string) error
	}

	Broadcaster interface {
		Broadcast(payload []byte, exceptID string)
	}

	Service struct {
		repo        Repository
		broadcaster Broadcaster
		events      core.EventPublisher
		logger      core.Logger
	}

	pushMessage struct {
		Type         string       `json:"type"`
		Announcement Announcement `json:"announcement"`
	}
)

func (na *NewAnnouncement) Clean() {
	na.Title = core.CleanString(na.Title)
	na.Content = core.CleanString(na.Content)
}

func NewService(repo Repository, broadcaster Broadcaster, events core.EventPublisher, logger core.Logger) *Service {
	return &Service{repo: repo, broadcaster: broadcaster, events: events, logger: logger}
}

// Create stores the announcement and pushes it to every live connection.
func (svc *Service) Create(ctx context.Context, authorID, authorName string, na NewAnnouncement) (Announcement, error) {
	na.Clean()
	var missing []core.FieldError
	if na.Title == "" {
		missing = append(missing, core.FieldError{Field: "title", Error: "title is required"})
	}
	if na.Content == "" {
		missing = append(missing, core.FieldError{Field: "content", Error: "content is required"})
	}
	if len(missing) > 0 {
		return Announcement{}, core.NewValidationError(core.ErrMissingRequiredField, missing...)
	}

	a, err := svc.repo.CreateAnnouncement(ctx, Announcement{
		ID:         uuid.NewString(),
		Title:      na.Title,
		Content:    na.Content,
		AuthorID:   authorID,
		AuthorName: authorName,
		CreatedAt:  core.NowFunc(),
	})
	if err != nil {
		return Announcement{}, errors.Wrap(err, "creating announcement")
	}

	if svc.broadcaster != nil {
		if payload, err := json.Marshal(pushMessage{Type: TypeAnnouncement, Announcement: a}); err == nil {
			svc.broadcaster.Broadcast(payload, "")
		}
	}
	svc.publish(EventCreated, a)
	return a, nil
}

func (svc *Service) List(ctx context.Context, limit int) ([]Announcement, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return svc.repo.QueryAnnouncements(ctx, limit)
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	if err := svc.repo.DeleteAnnouncement(ctx, id); err != nil {
		return err
	}
	svc.publish(EventDeleted, Announcement{ID: id})
	return nil
}

func (svc *Service) publish(key string, a Announcement) {
	if svc.events == nil {
		return
	}
	if err := svc.events.Publish(key, a); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s", key), err)
	}
}
