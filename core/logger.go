package core

// Logger logs messages along with optional args: errors, maps of extras or the
// employee.Employee on whose behalf the work was done.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// EventPublisher publishes domain events to interested third parties (other services, analytics).
// Publishing is best-effort: callers log failures and carry on.
type EventPublisher interface {
	Publish(routingKey string, payload interface{}) error
}
