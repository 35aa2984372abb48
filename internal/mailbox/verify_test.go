package mailbox

import (
	"errors"
	"net"
	"testing"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
)

// startIMAPServer runs a memory-backed IMAP server on a random port. The
// memory backend ships one user: username/password with an INBOX.
func startIMAPServer(t *testing.T) int {
	t.Helper()
	s := server.New(memory.New())
	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go s.Serve(l)
	t.Cleanup(func() { s.Close() })

	return l.Addr().(*net.TCPAddr).Port
}

func TestVerify_Success(t *testing.T) {
	port := startIMAPServer(t)

	err := Verify(Credentials{
		Host:     "127.0.0.1",
		Port:     port,
		Email:    "username",
		Password: "password",
		Folder:   "INBOX",
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_DefaultsToInbox(t *testing.T) {
	port := startIMAPServer(t)

	err := Verify(Credentials{
		Host:     "127.0.0.1",
		Port:     port,
		Email:    "username",
		Password: "password",
	})
	if err != nil {
		t.Fatalf("Verify with empty folder: %v", err)
	}
}

func TestVerify_BadPassword(t *testing.T) {
	port := startIMAPServer(t)

	err := Verify(Credentials{
		Host:     "127.0.0.1",
		Port:     port,
		Email:    "username",
		Password: "wrong",
	})
	var verr *VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *VerifyError, got %v", err)
	}
	if verr.Step != "login" {
		t.Errorf("failed step = %q, want login", verr.Step)
	}
}

func TestVerify_MissingFolder(t *testing.T) {
	port := startIMAPServer(t)

	err := Verify(Credentials{
		Host:     "127.0.0.1",
		Port:     port,
		Email:    "username",
		Password: "password",
		Folder:   "Archive",
	})
	var verr *VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *VerifyError, got %v", err)
	}
	if verr.Step != "select" {
		t.Errorf("failed step = %q, want select", verr.Step)
	}
}

func TestVerify_ConnectionRefused(t *testing.T) {
	err := Verify(Credentials{Host: "127.0.0.1", Port: 1, Email: "u", Password: "p"})
	var verr *VerifyError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *VerifyError, got %v", err)
	}
	if verr.Step != "connect" {
		t.Errorf("failed step = %q, want connect", verr.Step)
	}
}
