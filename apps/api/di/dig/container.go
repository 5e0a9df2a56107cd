package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/dig"

	echoapi "github.com/showtime/portal/apps/api/echo"
	"github.com/showtime/portal/core"
	"github.com/showtime/portal/core/announcement"
	"github.com/showtime/portal/core/attendance"
	"github.com/showtime/portal/core/auth"
	"github.com/showtime/portal/core/employee"
	"github.com/showtime/portal/core/meeting"
	"github.com/showtime/portal/core/message"
	"github.com/showtime/portal/core/presence"
	calendarsvc "github.com/showtime/portal/services/calendar"
	emailsvc "github.com/showtime/portal/services/email"
	eventsvc "github.com/showtime/portal/services/events"
	filestoresvc "github.com/showtime/portal/services/filestore"
	logsvc "github.com/showtime/portal/services/logger"
	"github.com/showtime/portal/storage/cache"
	"github.com/showtime/portal/storage/database"
	inmemdb "github.com/showtime/portal/storage/database/inmem"
	mongodb "github.com/showtime/portal/storage/database/mongo"
)

// MemoryURI selects the in-process database instead of MongoDB.
const MemoryURI = "memory://"

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Repositories is provided by whichever database backend the config selects.
	Repositories struct {
		dig.Out

		DB            echoapi.Pinger
		Employees     employee.Repository
		Meetings      meeting.Repository
		Messages      message.Repository
		Announcements announcement.Repository
		Attendance    attendance.Repository
	}

	// Closers collects what has to be released on shutdown, in order.
	Closers struct {
		funcs []func(ctx context.Context) error
	}
)

func (c *Closers) add(f func(ctx context.Context) error) {
	c.funcs = append(c.funcs, f)
}

// Close releases every resource, reporting the first failure.
func (c *Closers) Close(ctx context.Context) error {
	var first error
	for i := len(c.funcs) - 1; i >= 0; i-- {
		if err := c.funcs[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newLogger(prefix string, flags int) func(conf *core.Config) core.Logger {
	return func(conf *core.Config) core.Logger {
		logger := logsvc.NewRollbarLogger(log.New(os.Stdout, prefix, flags), conf)
		logger.Enable(!conf.Debug)
		return logger
	}
}

func newRepositories(conf *core.Config, closers *Closers, loggerParam DBLoggerParam) Repositories {
	if conf.Database.URI == "" || conf.Database.URI == MemoryURI {
		loggerParam.Logger.Warn("using the in-memory database, data will not survive a restart")
		db := inmemdb.Open()
		return Repositories{
			DB:            db,
			Employees:     inmemdb.NewEmployeeRepository(db),
			Meetings:      inmemdb.NewMeetingRepository(db),
			Messages:      inmemdb.NewMessageRepository(db),
			Announcements: inmemdb.NewAnnouncementRepository(db),
			Attendance:    inmemdb.NewAttendanceRepository(db),
		}
	}

	setUp := func() (*mongo.Database, error) {
		ctx := context.Background()
		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err = database.EnsureIndexes(ctx, db); err != nil {
			_ = database.Close(ctx, db)
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	closers.add(func(ctx context.Context) error { return database.Close(ctx, db) })

	return Repositories{
		DB:            database.Pinger{DB: db},
		Employees:     mongodb.NewEmployeeRepository(db),
		Meetings:      mongodb.NewMeetingRepository(db),
		Messages:      mongodb.NewMessageRepository(db),
		Announcements: mongodb.NewAnnouncementRepository(db),
		Attendance:    mongodb.NewAttendanceRepository(db),
	}
}

func newRevocationStore(conf *core.Config, closers *Closers, logger core.Logger) auth.RevocationStore {
	if conf.Redis.URL == "" {
		return auth.NewMemoryRevocationStore()
	}
	client, err := cache.Open(context.Background(), conf.Redis.URL)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	closers.add(func(context.Context) error { return client.Close() })
	return cache.NewRevocationStore(client)
}

func newEventPublisher(conf *core.Config, closers *Closers, logger core.Logger) core.EventPublisher {
	if conf.RabbitMQ.URL == "" {
		return eventsvc.NoopPublisher{}
	}
	pub, err := eventsvc.NewRabbitMQPublisher(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to rabbitmq: %v", err), err)
	}
	closers.add(func(context.Context) error { return pub.Close() })
	return pub
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newCalendar(conf *core.Config, logger core.Logger) meeting.Calendar {
	if conf.Google.CalendarCredentialsFile == "" {
		return calendarsvc.Noop{}
	}
	cal, err := calendarsvc.NewGoogleCalendar(context.Background(), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up google calendar: %v", err), err)
	}
	return cal
}

func newFileStorage(conf *core.Config, logger core.Logger) message.FileStorage {
	var (
		files message.FileStorage
		err   error
	)
	switch conf.Storage.Backend {
	case "gdrive":
		files, err = filestoresvc.NewGoogleDrive(context.Background(), conf, logger)
	case "disk":
		files, err = filestoresvc.NewDisk(conf)
	default:
		err = errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}
	return files
}

func newHub(events core.EventPublisher, logger core.Logger) *presence.Hub {
	return presence.NewHub(presence.NewRegistry(), presence.NewStore(), events, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(func() *Closers { return new(Closers) }))
	must(c.Provide(newLogger("API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)))
	must(c.Provide(newLogger("DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), dig.Name("dbLogger")))
	must(c.Provide(newLogger("WS : ", log.LstdFlags|log.Lmicroseconds), dig.Name("wsLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newRevocationStore))
	must(c.Provide(newEventPublisher))
	must(c.Provide(newEmailService))
	must(c.Provide(newCalendar))
	must(c.Provide(newFileStorage))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newHub))

	// the hub is the live view every service reports through
	must(c.Provide(func(h *presence.Hub) employee.StatusSource { return h }))
	must(c.Provide(func(h *presence.Hub) message.Deliverer { return h }))
	must(c.Provide(func(h *presence.Hub) announcement.Broadcaster { return h }))

	must(c.Provide(employee.NewService))
	must(c.Provide(func(svc *employee.Service) auth.Employees { return svc }))
	must(c.Provide(func(svc *employee.Service) attendance.EmployeeChecker { return svc }))
	must(c.Provide(auth.NewGate))
	must(c.Provide(meeting.NewService))
	must(c.Provide(message.NewService))
	must(c.Provide(announcement.NewService))
	must(c.Provide(attendance.NewService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
