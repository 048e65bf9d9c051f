package otpw

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scode/otpw/euid"
	"github.com/scode/otpw/pwfile"
	"github.com/scode/otpw/rbg"
)

// maxChallengeLen bounds the challenge string handed to the user.
const maxChallengeLen = 80

// Prepare selects the next one-time password(s) for user and acquires
// the lock that keeps concurrent sessions from being issued the same
// entry. On success the returned handle carries a non-empty Challenge
// to show the user and must be passed to exactly one Verify call. On
// failure no handle is returned and the caller must treat one-time
// password login as unavailable.
//
// While another session holds a fresh lock, Prepare issues a
// multi-challenge instead: Multi labels disjoint from the locked entry,
// without taking the lock itself.
func Prepare(user *User, flags Flags) (*Challenge, error) {
	log := newLogger(flags)
	if user == nil {
		log.Debug("no password database entry provided")
		return nil, errors.New("no password database entry provided")
	}

	ch := &Challenge{flags: flags, log: log}
	if Pseudouser != nil {
		ch.filename = filepath.Join(Pseudouser.Home, user.Name)
		ch.uid = Pseudouser.UID
		ch.gid = Pseudouser.GID
	} else {
		ch.filename = filepath.Join(user.Home, File)
		ch.uid = user.UID
		ch.gid = user.GID
	}
	ch.lockfile = ch.filename + LockSuffix

	ids := euid.Swap(ch.uid, ch.gid, log)
	defer ids.Restore()

	f, err := pwfile.Read(ch.filename, HashLen, Multi)
	if err != nil {
		log.Debugf("reading %s: %s", ch.filename, err)
		return nil, fmt.Errorf("reading %s: %s", ch.filename, err)
	}
	ch.Entries = f.Entries
	ch.Remaining = f.Remaining
	ch.ChalLen = f.ChalLen
	ch.HashLen = f.HashLen
	ch.PwLen = f.PwLen

	if f.Remaining < 1 {
		log.Debug("no passwords left")
		return nil, fmt.Errorf("no passwords left in %s", ch.filename)
	}

	j := f.FirstLive()
	ch.Challenge = f.Label(j)
	ch.selection = []int{j}
	ch.hashes = []string{f.Hash(j)}

	if flags&NoLock != 0 {
		ch.Passwords = 1
		return ch, nil
	}

	locked, err := ch.acquireLock()
	if err != nil {
		return nil, err
	}
	if locked {
		ch.locked = true
		ch.Passwords = 1
		return ch, nil
	}

	// A fresh lock is in place: someone is logging in right now.
	if err := ch.multiChallenge(f); err != nil {
		return nil, err
	}
	return ch, nil
}

// acquireLock tries to symlink the primary label into place, retrying
// up to five times after reclaiming stale or vanished locks. It returns
// (true, nil) when the lock was taken and (false, nil) when a fresh
// lock belonging to another session remains in the way.
func (ch *Challenge) acquireLock() (bool, error) {
	for i := 0; i < 5; i++ {
		err := os.Symlink(ch.Challenge, ch.lockfile)
		if err == nil {
			return true, nil
		}
		if !os.IsExist(err) {
			ch.log.Debugf("symlink(%q, %q): %s", ch.Challenge, ch.lockfile, err)
			return false, fmt.Errorf("creating lock %s: %s", ch.lockfile, err)
		}

		st, err := os.Lstat(ch.lockfile)
		if err != nil {
			if os.IsNotExist(err) {
				// The lock vanished between symlink and lstat.
				continue
			}
			ch.log.Debugf("lstat(%q): %s", ch.lockfile, err)
			return false, fmt.Errorf("checking lock %s: %s", ch.lockfile, err)
		}
		if LockTimeout > 0 && time.Since(st.ModTime()) > LockTimeout {
			ch.log.Debugf("removing stale lock %s", ch.lockfile)
			os.Remove(ch.lockfile)
			continue
		}
		return false, nil
	}
	return false, nil
}

// multiChallenge issues several passwords at once while another session
// holds the lock, excluding the entry the lock names so that the two
// sessions never overlap. No lock is taken in this mode.
func (ch *Challenge) multiChallenge(f *pwfile.File) error {
	held, err := os.Readlink(ch.lockfile)
	if err != nil || len(held) != f.ChalLen {
		// An unreadable or mis-sized target can only obstruct every
		// future login, so take the lock out.
		ch.log.Debugf("removing corrupt lock %s -> %q", ch.lockfile, held)
		os.Remove(ch.lockfile)
		return fmt.Errorf("corrupt lock %s", ch.lockfile)
	}

	min := Multi + 1
	if min < 10 {
		min = 10
	}
	if f.Remaining < min {
		ch.log.Debugf("%d remaining passwords are not enough for a multi challenge", f.Remaining)
		return fmt.Errorf("only %d passwords left in %s, not enough for a multi challenge",
			f.Remaining, ch.filename)
	}

	g := rbg.New()
	ch.Challenge = ""
	ch.selection = ch.selection[:0]
	ch.hashes = ch.hashes[:0]
	for ch.Passwords < Multi && len(ch.Challenge)+f.ChalLen+2 <= maxChallengeLen {
		j := g.Intn(f.Entries)
		for try := 0; (!f.Live(j) || f.Label(j) == held) && try < 2*f.Entries; try++ {
			j = g.Intn(f.Entries)
		}
		// The random scan can come up dry; walk on to the next
		// acceptable entry.
		for !f.Live(j) || f.Label(j) == held {
			j = (j + 1) % f.Entries
		}

		if ch.Passwords > 0 {
			ch.Challenge += "/"
		}
		ch.Challenge += f.Label(j)
		ch.selection = append(ch.selection, j)
		ch.hashes = append(ch.hashes, f.Hash(j))
		ch.Passwords++
		// Cross out locally so one challenge never holds the same
		// entry twice.
		f.MarkConsumed(j)
	}
	return nil
}
