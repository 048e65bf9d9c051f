// Package preader reads the response a user types at a login prompt.
package preader

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"

	"golang.org/x/term"
)

// ResponseReader obtains the string typed in response to a login
// prompt. The string may still contain whitespace, control characters
// and unapplied backspaces; the verifier tolerates those.
type ResponseReader interface {
	ReadResponse(prompt string) (string, error)
}

// Stdin reads the response from file descriptor 0, with echo disabled
// while it is a terminal.
type Stdin struct{}

func (r *Stdin) ReadResponse(prompt string) (string, error) {
	if term.IsTerminal(0) {
		if _, err := fmt.Fprint(os.Stderr, prompt); err != nil {
			return "", err
		}
		resp, err := term.ReadPassword(0)
		if err != nil {
			return "", fmt.Errorf("failure reading response: %s", err)
		}
		fmt.Fprintln(os.Stderr)
		return string(resp), nil
	}

	// When stdin is a pipe, read it all. This keeps the demo scriptable
	// and testable without a pty.
	data, err := ioutil.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return "", fmt.Errorf("failure reading response from stdin: %s", err)
	}
	return string(data), nil
}
