package inmemdb

import (
	"context"

	"github.com/showtime/portal/core/message"
)

type messageRepository struct {
	db *messageTable
}

func NewMessageRepository(db *DB) message.Repository {
	return &messageRepository{db: db.message}
}

func (repo *messageRepository) CreateMessage(_ context.Context, msg message.Message) (message.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.rows = append(repo.db.rows, msg)
	return msg, nil
}

func (repo *messageRepository) QueryMessages(_ context.Context, q message.Query) ([]message.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	msgs := make([]message.Message, 0)
	for _, msg := range repo.db.rows {
		if inConversation(msg, q) {
			msgs = append(msgs, msg)
		}
	}
	if q.Limit > 0 && len(msgs) > q.Limit {
		msgs = msgs[len(msgs)-q.Limit:]
	}
	return msgs, nil
}

func (repo *messageRepository) GetFileMessage(_ context.Context, fileID string) (message.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, msg := range repo.db.rows {
		if msg.File != nil && msg.File.ID == fileID {
			return msg, nil
		}
	}
	return message.Message{}, message.ErrFileNotFound
}

func inConversation(msg message.Message, q message.Query) bool {
	if q.RecipientID == "" {
		return msg.RecipientID == "" && msg.ChannelID == q.ChannelID
	}
	return (msg.SenderID == q.EmployeeID && msg.RecipientID == q.RecipientID) ||
		(msg.SenderID == q.RecipientID && msg.RecipientID == q.EmployeeID)
}
