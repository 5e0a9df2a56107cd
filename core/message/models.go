package message

import (
	"time"

	"github.com/showtime/portal/core"
)

// GeneralChannel is the channel every employee is part of.
const GeneralChannel = "general"

// Kind of a Message.
type Kind string

const (
	KindText Kind = "text"
	KindFile Kind = "file"
)

// File describes a file stored with the file-storage collaborator.
type File struct {
	ID          string `json:"id" bson:"id"`
	Name        string `json:"name" bson:"name"`
	Size        int64  `json:"size" bson:"size"`
	ContentType string `json:"content_type" bson:"content_type"`
	URL         string `json:"url" bson:"url"`
}

// Message is either posted to a channel or sent directly to a recipient.
type Message struct {
	ID          string    `json:"id" bson:"_id"`
	ChannelID   string    `json:"channel_id,omitempty" bson:"channel_id,omitempty"`
	RecipientID string    `json:"recipient_id,omitempty" bson:"recipient_id,omitempty"`
	SenderID    string    `json:"sender_id" bson:"sender_id"`
	SenderName  string    `json:"sender_name" bson:"sender_name"`
	Content     string    `json:"content" bson:"content"`
	Kind        Kind      `json:"type" bson:"kind"`
	File        *File     `json:"file,omitempty" bson:"file,omitempty"`
	CreatedAt   time.Time `json:"timestamp" bson:"created_at"` // UTC
}

func (m Message) IsDirect() bool {
	return m.RecipientID != ""
}

// Sender identifies the employee posting a message.
type Sender struct {
	ID   string
	Name string
}

// NewMessage contains information needed to post a Message. Without a RecipientID the
// message goes to ChannelID, or to the general channel when that is blank too.
type NewMessage struct {
	Content     string `json:"content"`
	ChannelID   string `json:"channel_id"`
	RecipientID string `json:"recipient_id"`
}

func (nm *NewMessage) Clean() {
	nm.Content = core.CleanString(nm.Content)
	nm.ChannelID = core.CleanString(nm.ChannelID)
	nm.RecipientID = core.CleanString(nm.RecipientID)
	if nm.RecipientID != "" {
		nm.ChannelID = ""
	} else if nm.ChannelID == "" {
		nm.ChannelID = GeneralChannel
	}
}

// Query selects a conversation: a channel, or the direct messages between EmployeeID and RecipientID.
type Query struct {
	EmployeeID  string `query:"-"`
	ChannelID   string `query:"channel_id"`
	RecipientID string `query:"recipient_id"`
	Limit       int    `query:"limit"`
}

func (q *Query) Clean() {
	q.ChannelID = core.CleanString(q.ChannelID)
	q.RecipientID = core.CleanString(q.RecipientID)
	if q.RecipientID != "" {
		q.ChannelID = ""
	} else if q.ChannelID == "" {
		q.ChannelID = GeneralChannel
	}
	if q.Limit <= 0 {
		q.Limit = DefaultHistoryLimit
	}
	if q.Limit > MaxHistoryLimit {
		q.Limit = MaxHistoryLimit
	}
}

// FileMeta is handed to the file-storage collaborator along with the bytes.
type FileMeta struct {
	Name        string
	Size        int64
	ContentType string
}

// StoredFile is the file-storage collaborator's handle on a stored file.
type StoredFile struct {
	ID  string
	URL string
}

// ChatMessage is the wire representation of a delivered Message.
type ChatMessage struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}
