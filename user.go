package otpw

import (
	"fmt"
	"os/user"
	"strconv"
)

// User identifies the account whose password file is consulted.
type User struct {
	Name string
	UID  int
	GID  int
	Home string
}

// Pseudouser automation. When the login system cannot read home
// directories, a low-uid service account can own the password files
// instead; SetPseudouser detects and installs it.
var (
	// AutoPseudouser is the account name SetPseudouser looks for.
	AutoPseudouser = "otpw"

	// AutoPseudouserMaxUID rejects candidate accounts above this uid,
	// so an ordinary user cannot pose as the pseudouser. Negative
	// disables the check.
	AutoPseudouserMaxUID = 999
)

// LookupUser resolves a login name through the system user database.
func LookupUser(name string) (*User, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return nil, err
	}
	return fromOS(u)
}

// LookupUID resolves a numeric user id through the system user
// database.
func LookupUID(uid int) (*User, error) {
	u, err := user.LookupId(strconv.Itoa(uid))
	if err != nil {
		return nil, err
	}
	return fromOS(u)
}

func fromOS(u *user.User) (*User, error) {
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("non-numeric uid %q for user %s", u.Uid, u.Username)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, fmt.Errorf("non-numeric gid %q for user %s", u.Gid, u.Username)
	}
	return &User{Name: u.Username, UID: uid, GID: gid, Home: u.HomeDir}, nil
}

// SetPseudouser installs AutoPseudouser as the owner of all password
// files, provided such an account exists and its uid does not exceed
// AutoPseudouserMaxUID.
func SetPseudouser() error {
	u, err := LookupUser(AutoPseudouser)
	if err != nil {
		return err
	}
	if AutoPseudouserMaxUID >= 0 && u.UID > AutoPseudouserMaxUID {
		return fmt.Errorf("pseudouser %s has uid %d above limit %d",
			u.Name, u.UID, AutoPseudouserMaxUID)
	}
	Pseudouser = u
	return nil
}
