// Package rbg provides the random bit generator used to pick password
// entries for multi-challenges.
//
// It hashes together some quick sources of entropy to provide a
// reasonable random seed. High entropy is not security critical here:
// the generator only decides which entries are issued, never any secret
// material.
package rbg

import (
	"encoding/binary"
	"os"
	"time"

	"golang.org/x/crypto/ripemd160"
)

// siteKey is mixed into every iteration; sites may change it freely.
const siteKey = "AutomaGic"

var processStart = time.Now()

// Generator is an iterable stream of unpredictable bytes. It is not
// safe for concurrent use; each login attempt seeds its own.
type Generator struct {
	state [ripemd160.Size]byte
}

// New seeds a generator from the kernel random device (absence is
// tolerated), the clocks, and process identifiers.
func New() *Generator {
	g := new(Generator)
	md := ripemd160.New()

	if f, err := os.Open("/dev/urandom"); err == nil {
		buf := make([]byte, ripemd160.Size)
		if n, rerr := f.Read(buf); rerr == nil {
			md.Write(buf[:n])
		}
		f.Close()
	}

	now := time.Now()
	var quick [40]byte
	binary.LittleEndian.PutUint64(quick[0:], uint64(now.UnixNano()))
	binary.LittleEndian.PutUint64(quick[8:], uint64(now.Sub(processStart)))
	binary.LittleEndian.PutUint64(quick[16:], uint64(os.Getpid()))
	binary.LittleEndian.PutUint64(quick[24:], uint64(os.Getppid()))
	binary.LittleEndian.PutUint64(quick[32:], uint64(os.Getuid()))
	md.Write(quick[:])

	md.Sum(g.state[:0])
	return g
}

// Intn advances the generator and reduces the new state to an integer
// in [0, n). The modulo bias is negligible for the n <= 9999 entry
// counts this library deals in.
func (g *Generator) Intn(n int) int {
	md := ripemd160.New()
	var t [8]byte
	binary.LittleEndian.PutUint64(t[:], uint64(time.Now().UnixNano()))
	md.Write(g.state[:])
	md.Write(t[:])
	md.Write([]byte(siteKey))
	md.Sum(g.state[:0])
	return int(binary.LittleEndian.Uint32(g.state[:4]) % uint32(n))
}
