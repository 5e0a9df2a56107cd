package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/showtime/portal/core/employee"
	"github.com/showtime/portal/tests"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "TEST : ", 0), testutil.NewConfig())
	logger.Enable(false)

	emp := employee.Employee{ID: "emp-1", Name: "Ada", Email: "ada@showtime.io"}
	logger.Error("saving meeting", errors.New("boom"), emp)

	out := buf.String()
	assert.Contains(t, out, "TEST : saving meeting")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "employee: emp-1")
	assert.NotContains(t, out, "ada@showtime.io")

	args := logger.prepare("msg", []interface{}{emp, emp, "extra"})
	assert.Equal(t, []interface{}{"msg", "extra"}, args)
}
