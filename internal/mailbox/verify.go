// Package mailbox verifies manually entered IMAP credentials before the
// account row is saved, so a typo'd password fails at entry time rather
// than on the first poll.
package mailbox

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
)

const dialTimeout = 10 * time.Second

// Credentials describe one IMAP mailbox to verify.
type Credentials struct {
	Host     string
	Port     int
	UseSSL   bool
	Email    string
	Password string
	Folder   string
}

// VerifyError reports which step of the check failed.
type VerifyError struct {
	Step string // "connect", "login", "select"
	Err  error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("imap %s: %v", e.Step, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Verify dials the server, logs in, and opens the folder read-only. Any
// step failing comes back as *VerifyError; success leaves no state behind.
func Verify(creds Credentials) error {
	addr := net.JoinHostPort(creds.Host, fmt.Sprintf("%d", creds.Port))
	dialer := &net.Dialer{Timeout: dialTimeout}

	var c *client.Client
	var err error
	if creds.UseSSL {
		c, err = client.DialWithDialerTLS(dialer, addr, nil)
	} else {
		c, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return &VerifyError{Step: "connect", Err: err}
	}
	defer c.Logout()

	if err := c.Login(creds.Email, creds.Password); err != nil {
		return &VerifyError{Step: "login", Err: err}
	}

	folder := creds.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := c.Select(folder, true); err != nil {
		return &VerifyError{Step: "select", Err: err}
	}
	return nil
}
