// Package message handles chat messages and file sharing between employees.
package message

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/showtime/portal/core"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500

	// TypeChatMessage is the wire type of a chat message, both client -> server and server -> clients.
	TypeChatMessage = "chat_message"

	EventFileShared = "file.shared"
)

var (
	// errors
	ErrNotFound     = fmt.Errorf("message %w", core.ErrNotFound)
	ErrFileNotFound = fmt.Errorf("file %w", core.ErrNotFound)
	ErrEmptyMessage = errors.New("message content is required")
)

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		// QueryMessages returns the last q.Limit messages of the conversation in chronological order.
		QueryMessages(ctx context.Context, q Query) ([]Message, error)
		GetFileMessage(ctx context.Context, fileID string) (Message, error)
	}

	// FileStorage is the external file-storage collaborator.
	FileStorage interface {
		Store(ctx context.Context, r io.Reader, meta FileMeta) (StoredFile, error)
		Open(ctx context.Context, id string) (io.ReadCloser, error)
	}

	// Deliverer pushes payloads to live connections.
	Deliverer interface {
		SendTo(id string, payload []byte) error
		Broadcast(payload []byte, exceptID string)
	}

	Service struct {
		repo    Repository
		files   FileStorage
		deliver Deliverer
		events  core.EventPublisher
		logger  core.Logger
	}
)

func NewService(
	repo Repository,
	files FileStorage,
	deliver Deliverer,
	events core.EventPublisher,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		files:   files,
		deliver: deliver,
		events:  events,
		logger:  logger,
	}
}

// Send stores a text Message and delivers it.
func (svc *Service) Send(ctx context.Context, from Sender, nm NewMessage) (Message, error) {
	nm.Clean()
	if nm.Content == "" {
		return Message{}, core.NewValidationError(ErrEmptyMessage, core.FieldError{Field: "content", Error: ErrEmptyMessage.Error()})
	}

	msg, err := svc.repo.CreateMessage(ctx, svc.newMessage(from, nm, KindText))
	if err != nil {
		return Message{}, errors.Wrap(err, "creating message")
	}
	svc.Deliver(msg)
	return msg, nil
}

// History returns the last messages of a conversation in chronological order.
func (svc *Service) History(ctx context.Context, q Query) ([]Message, error) {
	q.Clean()
	msgs, err := svc.repo.QueryMessages(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	return msgs, nil
}

// ShareFile hands the file to the file-storage collaborator, then stores and delivers a file
// Message describing it. The collaborator failing fails the whole operation with core.ErrUpstream.
func (svc *Service) ShareFile(ctx context.Context, from Sender, nm NewMessage, r io.Reader, meta FileMeta) (Message, error) {
	nm.Clean()
	meta.Name = filepath.Base(core.CleanString(meta.Name))
	if meta.Name == "" || meta.Name == "." || meta.Name == string(filepath.Separator) {
		return Message{}, core.NewValidationError(core.ErrMissingRequiredField, core.FieldError{Field: "file", Error: "file is required"})
	}
	if meta.ContentType == "" {
		meta.ContentType = "application/octet-stream"
	}

	stored, err := svc.files.Store(ctx, r, meta)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("storing file %q", meta.Name), err)
		return Message{}, errors.Wrap(core.ErrUpstream, err.Error())
	}

	msg := svc.newMessage(from, nm, KindFile)
	if msg.Content == "" {
		msg.Content = meta.Name
	}
	msg.File = &File{
		ID:          stored.ID,
		Name:        meta.Name,
		Size:        meta.Size,
		ContentType: meta.ContentType,
		URL:         stored.URL,
	}

	msg, err = svc.repo.CreateMessage(ctx, msg)
	if err != nil {
		return Message{}, errors.Wrap(err, "creating file message")
	}
	svc.Deliver(msg)
	if svc.events != nil {
		if err = svc.events.Publish(EventFileShared, msg); err != nil {
			svc.logger.Error(fmt.Sprintf("publishing %s", EventFileShared), err)
		}
	}
	return msg, nil
}

// OpenFile returns the descriptor and content of a shared file. Only the participants of
// a direct conversation may open its files.
func (svc *Service) OpenFile(ctx context.Context, fileID, requesterID string) (File, io.ReadCloser, error) {
	msg, err := svc.repo.GetFileMessage(ctx, fileID)
	if err != nil {
		return File{}, nil, err
	}
	if msg.IsDirect() && requesterID != msg.SenderID && requesterID != msg.RecipientID {
		return File{}, nil, core.ErrForbidden
	}

	rc, err := svc.files.Open(ctx, fileID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return File{}, nil, ErrFileNotFound
		}
		return File{}, nil, errors.Wrap(core.ErrUpstream, err.Error())
	}
	return *msg.File, rc, nil
}

// Deliver pushes msg to the live connections concerned: both ends of a direct conversation,
// everyone for a channel. Offline recipients read it from History later.
func (svc *Service) Deliver(msg Message) {
	if svc.deliver == nil {
		return
	}
	payload, err := json.Marshal(ChatMessage{Type: TypeChatMessage, Message: msg})
	if err != nil {
		svc.logger.Error("marshalling chat message", err)
		return
	}

	if !msg.IsDirect() {
		svc.deliver.Broadcast(payload, "")
		return
	}
	_ = svc.deliver.SendTo(msg.RecipientID, payload)
	if msg.SenderID != msg.RecipientID {
		_ = svc.deliver.SendTo(msg.SenderID, payload)
	}
}

func (svc *Service) newMessage(from Sender, nm NewMessage, kind Kind) Message {
	return Message{
		ID:          uuid.NewString(),
		ChannelID:   nm.ChannelID,
		RecipientID: nm.RecipientID,
		SenderID:    from.ID,
		SenderName:  from.Name,
		Content:     nm.Content,
		Kind:        kind,
		CreatedAt:   core.NowFunc(),
	}
}
