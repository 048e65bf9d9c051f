// Package pwfile reads and updates on-disk one-time password files.
//
// A password file is plain text: a magic line, an optional # comment, a
// header of four decimal integers (entries, challen, hlen, pwlen), and
// exactly entries password lines of challen+hlen characters each. A
// line is live while it holds a challenge label followed by a hash; a
// consumed line is all hyphens. Every line has the same length, which
// is what makes the in-place rewrite in Consume safe.
package pwfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"strings"
)

// Magic is the first line of a recognised password file. Sites running
// a modified list generator may change it, but the hash identity is
// baked into the format: a different digest needs a different magic.
var Magic = "OTPW1\n"

const (
	// MaxEntries bounds the entries header field.
	MaxEntries = 9999
	// MinPwLen and MaxPwLen bound the pwlen header field.
	MinPwLen = 4
	MaxPwLen = 999

	// maxChallenge is the room available for a challenge string; the
	// header is rejected when a full multi-challenge could not fit.
	maxChallenge = 80
)

// Header holds the four layout parameters of a password file.
type Header struct {
	Entries int // number of password lines
	ChalLen int // challenge label length in bytes
	HashLen int // stored hash length in bytes
	PwLen   int // one-time password length in characters
}

func (h Header) rowWidth() int { return h.ChalLen + h.HashLen }

// File is the parsed form of a password file: its header plus a flat
// table of entries x (challen+hlen) row bytes.
type File struct {
	Header
	Remaining int // number of live rows

	rows []byte
}

// Label returns the challenge label of row i.
func (f *File) Label(i int) string {
	w := f.rowWidth()
	return string(f.rows[i*w : i*w+f.ChalLen])
}

// Hash returns the stored hash of row i.
func (f *File) Hash(i int) string {
	w := f.rowWidth()
	return string(f.rows[i*w+f.ChalLen : (i+1)*w])
}

// Live reports whether row i still holds an unused password.
func (f *File) Live(i int) bool {
	return f.rows[i*f.rowWidth()] != '-'
}

// FirstLive returns the index of the first live row, or -1 when the
// file is exhausted.
func (f *File) FirstLive() int {
	for i := 0; i < f.Entries; i++ {
		if f.Live(i) {
			return i
		}
	}
	return -1
}

// MarkConsumed crosses out row i in the in-memory table only. The
// challenge preparer uses it to keep one challenge from selecting the
// same row twice; the file on disk is untouched.
func (f *File) MarkConsumed(i int) {
	w := f.rowWidth()
	for j := i * w; j < (i+1)*w; j++ {
		f.rows[j] = '-'
	}
}

// Read parses the password file at path. hashLen is the hash width this
// build of the library expects in the hlen header field; multi is the
// configured multi-challenge fan-out, needed to check that a full
// challenge string will fit.
func Read(path string, hashLen, multi int) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return parse(bufio.NewReader(fh), hashLen, multi)
}

func parse(r *bufio.Reader, hashLen, multi int) (*File, error) {
	line, err := r.ReadString('\n')
	if err != nil || line != Magic {
		return nil, errors.New("bad magic line; not a password file")
	}
	line, err = r.ReadString('\n')
	if err == nil && strings.HasPrefix(line, "#") {
		line, err = r.ReadString('\n')
	}
	if err != nil {
		return nil, errors.New("password file truncated in header")
	}

	f := new(File)
	n, _ := fmt.Sscanf(line, "%d%d%d%d", &f.Entries, &f.ChalLen, &f.HashLen, &f.PwLen)
	if n != 4 {
		return nil, fmt.Errorf("malformed header line %q", line)
	}
	if f.Entries < 1 || f.Entries > MaxEntries ||
		f.ChalLen < 1 || (f.ChalLen+1)*multi > maxChallenge ||
		f.PwLen < MinPwLen || f.PwLen > MaxPwLen ||
		f.HashLen != hashLen {
		return nil, fmt.Errorf("header parameters (%d %d %d %d) out of allowed range",
			f.Entries, f.ChalLen, f.HashLen, f.PwLen)
	}

	w := f.rowWidth()
	f.rows = make([]byte, 0, f.Entries*w)
	buf := make([]byte, w+1)
	for i := 0; i < f.Entries; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("password file truncated at entry %d", i)
		}
		if buf[w] != '\n' || bytes.IndexByte(buf[:w], '\n') >= 0 {
			return nil, fmt.Errorf("entry %d has wrong length", i)
		}
		f.rows = append(f.rows, buf[:w]...)
		if buf[0] != '-' {
			f.Remaining++
		}
	}
	return f, nil
}

// Consume overwrites the selected rows of the file at path with
// hyphens, in place and at their exact byte offsets, after checking
// that the on-disk header still matches hdr. Line lengths are never
// changed. The rewrite is synced to stable storage before returning.
func Consume(path string, hdr Header, selection []int) (err error) {
	fh, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := fh.Close(); err == nil {
			err = cerr
		}
	}()

	data, err := ioutil.ReadAll(fh)
	if err != nil {
		return fmt.Errorf("failed to read %s back: %s", path, err)
	}

	off := 0
	line, ok := nextLine(data, &off)
	if !ok || line != Magic {
		return errors.New("bad magic line; password file replaced")
	}
	line, ok = nextLine(data, &off)
	if ok && strings.HasPrefix(line, "#") {
		line, ok = nextLine(data, &off)
	}
	if !ok {
		return errors.New("password file truncated in header")
	}
	var got Header
	n, _ := fmt.Sscanf(line, "%d%d%d%d", &got.Entries, &got.ChalLen, &got.HashLen, &got.PwLen)
	if n != 4 || got != hdr {
		return errors.New("password file header changed since challenge was issued")
	}

	w := hdr.rowWidth()
	if len(data) < off+hdr.Entries*(w+1) {
		return errors.New("password file truncated")
	}

	blank := append(bytes.Repeat([]byte{'-'}, w), '\n')
	for _, i := range selection {
		if i < 0 || i >= hdr.Entries {
			return fmt.Errorf("selection index %d out of range", i)
		}
		if _, err := fh.WriteAt(blank, int64(off+i*(w+1))); err != nil {
			return fmt.Errorf("failed to overwrite entry %d: %s", i, err)
		}
	}
	return fh.Sync()
}

func nextLine(data []byte, off *int) (string, bool) {
	i := bytes.IndexByte(data[*off:], '\n')
	if i < 0 {
		return "", false
	}
	line := string(data[*off : *off+i+1])
	*off += i + 1
	return line, true
}
