package otpw

import (
	"os"

	"golang.org/x/crypto/ripemd160"

	"github.com/scode/otpw/confb64"
	"github.com/scode/otpw/euid"
	"github.com/scode/otpw/pwfile"
)

// Verify checks the response typed for this challenge and, on success,
// crosses the used passwords out of the file. The response is the
// memorised prefix password immediately followed by the requested
// one-time password(s); stray whitespace, control characters and
// uncorrected backspaces anywhere in the typed string are tolerated.
//
// The handle is dead afterwards: a second Verify call returns Error.
func (ch *Challenge) Verify(response string) Result {
	if ch == nil {
		return Error
	}
	log := ch.logger()
	if ch.Passwords < 1 || ch.Passwords > Multi {
		log.Debug("no challenge issued or handle already spent")
		ch.Passwords = 0
		return Error
	}
	defer func() { ch.Passwords = 0 }()

	ids := euid.Swap(ch.uid, ch.gid, log)
	defer ids.Restore()
	defer ch.releaseLock()

	otps, prefix, ok := ch.splitResponse(response)
	if !ok {
		log.Debug("entered password was too short")
		return Wrong
	}
	log.Debugf("prefix = %q", prefix)

	for i, otp := range otps {
		md := ripemd160.New()
		md.Write([]byte(prefix))
		md.Write(otp)
		h := confb64.Encode(md.Sum(nil), ch.HashLen)
		log.Debugf("hash(password %d): %q, hash from file: %q", i, h, ch.hashes[i])
		if h != ch.hashes[i] {
			log.Debug("entered password did not match")
			return Wrong
		}
	}
	log.Debug("entered passwords are ok")

	if err := pwfile.Consume(ch.filename, ch.header(), ch.selection); err != nil {
		log.Debugf("failed to cross out used passwords in %s: %s", ch.filename, err)
		if ch.Passwords == 1 {
			// Keep the lock in place so the same password cannot be
			// served to the next session.
			log.Debug("keeping lock on password")
			ch.locked = false
		} else {
			log.Warnf("passwords for %s verified but not consumed", ch.filename)
		}
		return OK
	}
	ch.Remaining -= len(ch.selection)
	return OK
}

// splitResponse recovers the typed one-time passwords and the prefix
// password from the raw response. The scan runs right to left so that
// spurious characters and backspace runs anywhere in the input leave
// the fixed-width passwords at its end intact; whatever remains to the
// left of them is the prefix.
func (ch *Challenge) splitResponse(response string) (otps [][]byte, prefix string, ok bool) {
	otps = make([][]byte, ch.Passwords)
	for i := range otps {
		otps[i] = make([]byte, ch.PwLen)
	}

	l := len(response) - 1
	var i int
	j := 0
	for i = ch.Passwords - 1; i >= 0 && l >= 0; i-- {
		for j = ch.PwLen - 1; j >= 0 && l >= 0; j-- {
			for otps[i][j] == 0 && l >= 0 {
				// Resolve a run of BS/DEL corrections together with the
				// characters they deleted.
				deleted := 0
				for l >= 0 && (response[l] == 8 || response[l] == 127 || deleted > 0) {
					if response[l] == 8 || response[l] == 127 {
						deleted++
					} else {
						deleted--
					}
					l--
				}
				if l < 0 {
					break
				}
				if c, valid := confb64.Canonical(response[l]); valid {
					otps[i][j] = c
				}
				l--
			}
		}
		ch.log.Debugf("password %d = %q", i, otps[i])
	}
	if i >= 0 || j >= 0 {
		return nil, "", false
	}
	return otps, response[:l+1], true
}

func (ch *Challenge) releaseLock() {
	if !ch.locked {
		return
	}
	ch.log.Debug("removing lock file")
	if err := os.Remove(ch.lockfile); err != nil {
		ch.log.Debugf("failed to unlink lock file: %s", err)
	}
	ch.locked = false
}
