// Package otpw authenticates logins against a printed list of one-time
// passwords.
//
// A user generates a finite list of passwords, keeps it on paper, and
// memorises a prefix password that never appears on the list. At login
// the library issues a challenge naming which password(s) from the list
// to type next; each challenge-response consumes the passwords it used,
// so a keylogger or shoulder-surfer on the terminal learns nothing that
// can be replayed.
//
// The caller resolves the login name to a User, shows the challenge
// from Prepare, collects the typed response with echo disabled, and
// passes it to Verify. A lock symlink next to the password file keeps
// concurrent sessions from being issued the same entry; while the lock
// is held by another session, Prepare falls back to requesting several
// passwords at once.
package otpw

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/scode/otpw/pwfile"
)

// Configuration. All variables must be set before the first Prepare
// call and are read-only during authentication. The recognised magic
// line is pwfile.Magic.
var (
	// File is the password file name relative to the home directory of
	// the user who tries to log in. Ignored when Pseudouser is set.
	File = ".otpw"

	// LockSuffix is appended to the password file name to form the name
	// of the lock symlink.
	LockSuffix = ".lock"

	// Multi is the number of passwords requested while another session
	// holds the lock.
	Multi = 3

	// LockTimeout is the age after which a lock is considered stale and
	// reclaimed. Zero or negative disables reclaiming.
	LockTimeout = 24 * time.Hour

	// HashLen is the stored hash length in characters, each encoding
	// six bits. Files whose hlen header field differs are rejected.
	HashLen = 12

	// Pseudouser, when set, owns all password files: the file for a
	// user is <Pseudouser.Home>/<name>, accessed with the pseudouser's
	// ids, instead of <home>/File with the user's own. This lets OTPW
	// work when home directories are unreadable to the login process.
	Pseudouser *User
)

// Flags adjust the behavior of one Prepare/Verify exchange.
type Flags int

const (
	// Debug enables diagnostic logging to standard error.
	Debug Flags = 1 << iota

	// NoLock skips the lock symlink interlock. For test harnesses.
	NoLock
)

// Result is the verdict of a Verify call.
type Result int

const (
	// Error means the handle or call was invalid; nothing was checked.
	Error Result = iota

	// OK means every requested one-time password matched.
	OK

	// Wrong means the response was too short or did not match.
	Wrong
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case Wrong:
		return "WRONG"
	default:
		return "ERROR"
	}
}

// Challenge is the handle for one login attempt. It is created by
// Prepare, owned by the caller, and consumed by exactly one Verify
// call.
type Challenge struct {
	// Challenge is the string shown to the user: one or more entry
	// labels separated by "/".
	Challenge string

	// Entries and Remaining count the total and the still unused lines
	// of the password file; Passwords is how many one-time passwords
	// the user must type for this challenge. Remaining is updated when
	// Verify consumes entries.
	Entries   int
	Remaining int
	Passwords int

	// ChalLen, HashLen and PwLen echo the file's header parameters.
	ChalLen int
	HashLen int
	PwLen   int

	uid, gid  int
	filename  string
	lockfile  string
	locked    bool
	flags     Flags
	selection []int
	hashes    []string
	log       *logrus.Logger
}

func newLogger(flags Flags) *logrus.Logger {
	l := logrus.New()
	if flags&Debug != 0 {
		l.SetOutput(os.Stderr)
		l.SetLevel(logrus.DebugLevel)
	} else {
		l.SetOutput(ioutil.Discard)
	}
	return l
}

func (ch *Challenge) logger() *logrus.Logger {
	if ch.log == nil {
		ch.log = newLogger(ch.flags)
	}
	return ch.log
}

func (ch *Challenge) header() pwfile.Header {
	return pwfile.Header{
		Entries: ch.Entries,
		ChalLen: ch.ChalLen,
		HashLen: ch.HashLen,
		PwLen:   ch.PwLen,
	}
}
