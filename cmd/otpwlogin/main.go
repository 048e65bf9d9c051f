// Command otpwlogin is a demonstration login that authenticates against
// a printed one-time password list.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli"

	"github.com/scode/otpw"
	"github.com/scode/otpw/preader"
)

func main() {
	app := cli.NewApp()
	app.Name = "otpwlogin"
	app.Version = "master"
	app.Usage = "demonstration login with one-time passwords"
	app.ArgsUsage = "[username/]"

	var debugArg bool
	var nolockArg bool

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:        "debug, d",
			Usage:       "log library diagnostics to stderr",
			Destination: &debugArg,
		},
		cli.BoolFlag{
			Name:        "nolock, n",
			Usage:       "skip the lock symlink interlock (test harnesses only)",
			Destination: &nolockArg,
		},
	}
	app.Action = func(c *cli.Context) error {
		return login(c.Args().First(), debugArg, nolockArg, &preader.Stdin{})
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func login(username string, debug, nolock bool, rr preader.ResponseReader) error {
	if username == "" {
		fmt.Print("Append a slash (/) to your user name to activate OTPW.\n\n")
		fmt.Print("login: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read user name: %s", err)
		}
		username = strings.TrimRight(line, "\n")
	}

	name, useOTPW := splitLoginName(username)
	if !useOTPW {
		return errors.New("only one-time password logins are supported; append / to the user name")
	}

	u, err := otpw.LookupUser(name)
	if err != nil {
		return fmt.Errorf("unknown user %q: %s", name, err)
	}

	var flags otpw.Flags
	if debug {
		flags |= otpw.Debug
	}
	if nolock {
		flags |= otpw.NoLock
	}

	ch, err := otpw.Prepare(u, flags)
	if err != nil {
		fmt.Println("Sorry, one-time password entry not possible at the moment.")
		return err
	}

	response, err := rr.ReadResponse(fmt.Sprintf("Password %s: ", ch.Challenge))
	if err != nil {
		// Run the verification anyway so the lock is released and the
		// handle is spent.
		ch.Verify("")
		return err
	}

	switch ch.Verify(response) {
	case otpw.OK:
		fmt.Println("Login correct")
		if ch.Entries > 2*ch.Remaining {
			fmt.Printf("Only %d one-time passwords left (%d%%), please generate new list.\n",
				ch.Remaining, ch.Remaining*100/ch.Entries)
		}
		return nil
	case otpw.Wrong:
		fmt.Println("Login incorrect")
		return cli.NewExitError("", 1)
	default:
		fmt.Println("Login failed")
		return cli.NewExitError("", 2)
	}
}

// splitLoginName strips the trailing slash with which a user requests
// one-time password mode.
func splitLoginName(s string) (name string, otpwMode bool) {
	if strings.HasSuffix(s, "/") {
		return strings.TrimSuffix(s, "/"), true
	}
	return s, false
}
