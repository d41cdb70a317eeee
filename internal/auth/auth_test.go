package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestStaticProvider(t *testing.T) {
	uid, err := Static{UID: "teacher-1"}.CurrentPrincipal()
	if err != nil {
		t.Fatalf("CurrentPrincipal failed: %v", err)
	}
	if uid != "teacher-1" {
		t.Errorf("got principal %q, want teacher-1", uid)
	}

	if _, err := (Static{}).CurrentPrincipal(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("empty Static returned %v, want ErrNotAuthenticated", err)
	}
}

func TestNoneProvider(t *testing.T) {
	if _, err := (None{}).CurrentPrincipal(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("None returned %v, want ErrNotAuthenticated", err)
	}
}

func TestSessionLoginLogout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := OpenSession(path)
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	if _, err := s.CurrentPrincipal(); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("fresh session returned %v, want ErrNotAuthenticated", err)
	}

	if err := s.Login("teacher-1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if uid, err := s.CurrentPrincipal(); err != nil || uid != "teacher-1" {
		t.Fatalf("got %q/%v after login, want teacher-1", uid, err)
	}

	// A second open sees the persisted session, like an app relaunch.
	reopened, err := OpenSession(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if uid, _ := reopened.CurrentPrincipal(); uid != "teacher-1" {
		t.Errorf("got %q after reopen, want teacher-1", uid)
	}

	if err := s.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := s.CurrentPrincipal(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("got %v after logout, want ErrNotAuthenticated", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("session file survived logout: %v", err)
	}

	// Logging out twice is harmless.
	if err := s.Logout(); err != nil {
		t.Errorf("repeat Logout failed: %v", err)
	}
}

func TestSessionRejectsEmptyUID(t *testing.T) {
	s, err := OpenSession(filepath.Join(t.TempDir(), "session.json"))
	if err != nil {
		t.Fatalf("OpenSession failed: %v", err)
	}
	if err := s.Login(""); err == nil {
		t.Error("Login with empty uid succeeded, want error")
	}
}

func TestSessionCorruptFileMeansSignedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{garbage"), 0600); err != nil {
		t.Fatalf("failed to write corrupt session: %v", err)
	}

	s, err := OpenSession(path)
	if err != nil {
		t.Fatalf("OpenSession over corrupt file failed: %v", err)
	}
	if _, err := s.CurrentPrincipal(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("got %v from corrupt session, want ErrNotAuthenticated", err)
	}
}
