package notify

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rx3lixir/expense-dashboard/internal/logger"
)

func TestToasterPrintsAndRemembers(t *testing.T) {
	var buf bytes.Buffer
	toaster := NewToaster(&buf, logger.NewNop())

	toaster.Success("Login Successful")
	toaster.Error("Login Failed")
	toaster.Info("Logged Out")

	out := buf.String()
	assert.Contains(t, out, "Login Successful")
	assert.Contains(t, out, "Login Failed")
	assert.Contains(t, out, "Logged Out")

	assert.Equal(t, []Toast{
		{Kind: KindSuccess, Message: "Login Successful"},
		{Kind: KindError, Message: "Login Failed"},
		{Kind: KindInfo, Message: "Logged Out"},
	}, toaster.Recent())
}

func TestToasterKeepsOnlyRecent(t *testing.T) {
	toaster := NewToaster(nil, nil)

	for i := range 25 {
		toaster.Info(fmt.Sprintf("msg %d", i))
	}

	recent := toaster.Recent()
	assert.Len(t, recent, 20)
	assert.Equal(t, "msg 5", recent[0].Message)
	assert.Equal(t, "msg 24", recent[19].Message)
}

func TestRedirector(t *testing.T) {
	var buf bytes.Buffer
	r := NewRedirector(&buf, nil)

	last, count := r.Last()
	assert.Empty(t, last)
	assert.Zero(t, count)

	r.Navigate("/login")
	r.Navigate("/dashboard")

	last, count = r.Last()
	assert.Equal(t, "/dashboard", last)
	assert.Equal(t, 2, count)
	assert.Contains(t, buf.String(), "/login")
}
