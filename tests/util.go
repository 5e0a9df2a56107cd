// Package testutil holds fixtures and fake collaborators shared by the test suites.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/employee"
	"github.com/showtime/portal/core/meeting"
	"github.com/showtime/portal/core/message"
)

// DefaultPassword satisfies the employee password policy.
const DefaultPassword = "Sh0wT!me-2025"

func NewConfig() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		TestMode:                  true,
		AppName:                   "ShowTime Portal",
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:3000",
		AllowedOrigins:            []string{"http://localhost:3000"},
		PasswordResetTimeoutDelta: 24 * time.Hour,
		Server: core.ServerConfig{
			PublicURL:                 "http://localhost:8000",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Presence: core.PresenceConfig{
			WriteWait:  time.Second,
			PongWait:   2 * time.Second,
			PingPeriod: time.Second,
			SendBuffer: 16,
		},
	}
}

func CreateEmployee(
	t *testing.T,
	repo employee.Repository,
	name, email, pwd string,
	role employee.Role,
	isActive bool,
	createdAt ...time.Time,
) employee.Employee {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if role == "" {
		role = employee.RoleMember
	}
	emp := employee.Employee{
		ID:          uuid.NewString(),
		Name:        name,
		Email:       email,
		Designation: "Engineer",
		Department:  "Engineering",
		Role:        role,
		IsActive:    isActive,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	if pwd != "" {
		if err := emp.SetPassword(pwd); err != nil {
			t.Fatalf("CreateEmployee() failed: %v", err)
		}
	}
	emp, err := repo.CreateEmployee(context.Background(), emp)
	if err != nil {
		t.Fatalf("CreateEmployee() failed: %v", err)
	}
	return emp
}

// NopLogger discards every log.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// MailRecorder is a synchronous core.EmailService keeping every message it is handed.
type MailRecorder struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (r *MailRecorder) SendMessages(messages ...*core.EmailMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, messages...)
}

func (r *MailRecorder) Messages() []*core.EmailMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*core.EmailMessage(nil), r.messages...)
}

type Event struct {
	Key     string
	Payload interface{}
}

// EventRecorder is a core.EventPublisher keeping every published event.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *EventRecorder) Publish(key string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Key: key, Payload: payload})
	return nil
}

func (r *EventRecorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.events))
	for i, e := range r.events {
		keys[i] = e.Key
	}
	return keys
}

// FakeCalendar is a meeting.Calendar failing on demand.
type FakeCalendar struct {
	mu      sync.Mutex
	Fail    bool
	Created []meeting.EventRequest
	Deleted []string
}

func (c *FakeCalendar) CreateEvent(_ context.Context, req meeting.EventRequest) (meeting.CalendarEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail {
		return meeting.CalendarEvent{}, fmt.Errorf("calendar unavailable")
	}
	c.Created = append(c.Created, req)
	id := fmt.Sprintf("evt-%d", len(c.Created))
	return meeting.CalendarEvent{ID: id, Link: "https://meet.example.com/" + id}, nil
}

func (c *FakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail {
		return fmt.Errorf("calendar unavailable")
	}
	c.Deleted = append(c.Deleted, eventID)
	return nil
}

// FakeFileStorage is a message.FileStorage keeping files in memory.
type FakeFileStorage struct {
	mu    sync.Mutex
	Fail  bool
	files map[string][]byte
}

func (s *FakeFileStorage) Store(_ context.Context, r io.Reader, _ message.FileMeta) (message.StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail {
		return message.StoredFile{}, fmt.Errorf("storage unavailable")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return message.StoredFile{}, err
	}
	if s.files == nil {
		s.files = make(map[string][]byte)
	}
	id := uuid.NewString()
	s.files[id] = data
	return message.StoredFile{ID: id, URL: "https://files.example.com/" + id}, nil
}

func (s *FakeFileStorage) Open(_ context.Context, id string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[id]
	if !ok {
		return nil, message.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
