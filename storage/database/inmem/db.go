// Package inmemdb keeps every collection in process memory. It backs the tests and
// local runs without a database server.
package inmemdb

import (
	"context"
	"sync"

	"github.com/showtime/portal/core/announcement"
	"github.com/showtime/portal/core/attendance"
	"github.com/showtime/portal/core/employee"
	"github.com/showtime/portal/core/meeting"
	"github.com/showtime/portal/core/message"
)

type (
	DB struct {
		employee     *employeeTable
		meeting      *meetingTable
		message      *messageTable
		announcement *announcementTable
		attendance   *attendanceTable
	}

	employeeTable struct {
		sync.RWMutex
		table map[string]*employee.Employee
	}

	meetingTable struct {
		sync.RWMutex
		table map[string]*meeting.Meeting
	}

	messageTable struct {
		sync.RWMutex
		rows []message.Message // insertion order
	}

	announcementTable struct {
		sync.RWMutex
		table map[string]*announcement.Announcement
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Record // by employee_id/date
	}
)

func Open() *DB {
	return &DB{
		employee:     &employeeTable{table: make(map[string]*employee.Employee)},
		meeting:      &meetingTable{table: make(map[string]*meeting.Meeting)},
		message:      &messageTable{},
		announcement: &announcementTable{table: make(map[string]*announcement.Announcement)},
		attendance:   &attendanceTable{table: make(map[string]*attendance.Record)},
	}
}

// Reset empties every collection. Repositories opened on db stay usable.
func (db *DB) Reset() {
	db.employee.Lock()
	db.employee.table = make(map[string]*employee.Employee)
	db.employee.Unlock()

	db.meeting.Lock()
	db.meeting.table = make(map[string]*meeting.Meeting)
	db.meeting.Unlock()

	db.message.Lock()
	db.message.rows = nil
	db.message.Unlock()

	db.announcement.Lock()
	db.announcement.table = make(map[string]*announcement.Announcement)
	db.announcement.Unlock()

	db.attendance.Lock()
	db.attendance.table = make(map[string]*attendance.Record)
	db.attendance.Unlock()
}

// Ping always succeeds.
func (db *DB) Ping(context.Context) error { return nil }
