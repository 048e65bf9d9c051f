// Package euid switches the effective user and group id around file
// accesses and restores them afterwards.
//
// Failure to switch is not fatal: the enclosed file operations then run
// with the caller's own ids and fail with ordinary permission errors,
// which the caller already handles.
package euid

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Saved holds the effective ids that were in force before a Swap.
type Saved struct {
	uid, gid int
	log      *logrus.Logger
}

// Swap sets the effective gid and then the effective uid, returning the
// previous pair for Restore.
func Swap(uid, gid int, log *logrus.Logger) *Saved {
	s := &Saved{uid: unix.Geteuid(), gid: unix.Getegid(), log: log}
	if err := unix.Setresgid(-1, gid, -1); err != nil {
		log.Debugf("failed to change egid %d -> %d: %s", s.gid, gid, err)
	}
	if err := unix.Setresuid(-1, uid, -1); err != nil {
		log.Debugf("failed to change euid %d -> %d: %s", s.uid, uid, err)
	}
	return s
}

// Restore reverses a Swap: euid first, then egid. It is meant to run on
// every exit path, typically via defer.
func (s *Saved) Restore() {
	if err := unix.Setresuid(-1, s.uid, -1); err != nil {
		s.log.Debugf("failed to change euid back to %d: %s", s.uid, err)
	}
	if err := unix.Setresgid(-1, s.gid, -1); err != nil {
		s.log.Debugf("failed to change egid back to %d: %s", s.gid, err)
	}
}
