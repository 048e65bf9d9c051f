package euid

import (
	"io/ioutil"
	"testing"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(ioutil.Discard)
	return l
}

func TestSwapToSelfAndRestore(t *testing.T) {
	uid, gid := unix.Geteuid(), unix.Getegid()

	s := Swap(uid, gid, quietLogger())
	assert.Equal(t, uid, unix.Geteuid())
	assert.Equal(t, gid, unix.Getegid())

	s.Restore()
	assert.Equal(t, uid, unix.Geteuid())
	assert.Equal(t, gid, unix.Getegid())
}

// An unprivileged process cannot switch to another uid; the swap must
// degrade to a no-op rather than fail hard.
func TestSwapFailureIsNonFatal(t *testing.T) {
	if unix.Geteuid() == 0 {
		t.Skip("running as root; the switch would succeed")
	}
	uid, gid := unix.Geteuid(), unix.Getegid()

	s := Swap(0, 0, quietLogger())
	assert.Equal(t, uid, unix.Geteuid())
	assert.Equal(t, gid, unix.Getegid())
	s.Restore()
}
