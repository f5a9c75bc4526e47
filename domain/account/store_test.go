package account

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/soocke/study-buddy-go/domain/alerting"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", WithHashCost(bcrypt.MinCost))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func alice() NewAccount {
	return NewAccount{
		Username:      "alice",
		Password:      "hunter22",
		Name:          "Alice",
		Phone:         "5551234567",
		GuardianName:  "Carol",
		GuardianPhone: "5557654321",
	}
}

func TestStore_RegisterAndAuthenticate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Register(ctx, alice()); err != nil {
		t.Fatalf("register: %v", err)
	}
	a, err := s.Authenticate(ctx, "alice", "hunter22")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if a.Name != "Alice" || a.GuardianPhone != "5557654321" {
		t.Fatalf("unexpected account %+v", a)
	}
	if _, err := s.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := s.Authenticate(ctx, "mallory", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v", err)
	}
}

func TestStore_RegisterRejectsDuplicatesAndMissingFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Register(ctx, alice()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Register(ctx, alice()); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate: got %v", err)
	}
	incomplete := alice()
	incomplete.Username = "bob"
	incomplete.GuardianPhone = ""
	if err := s.Register(ctx, incomplete); !errors.Is(err, ErrInvalid) {
		t.Fatalf("missing field: got %v", err)
	}
}

func TestStore_UpdateProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Register(ctx, alice()); err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name string
		u    ProfileUpdate
		msg  string
	}{
		{"short phone", ProfileUpdate{Phone: "12345", GuardianName: "C", GuardianPhone: "5557654321"}, "phone number must be 10 digits"},
		{"signed guardian phone", ProfileUpdate{Phone: "5551234567", GuardianName: "C", GuardianPhone: "+555765432"}, "guardian phone must be 10 digits"},
		{"no guardian name", ProfileUpdate{Phone: "5551234567", GuardianPhone: "5557654321"}, "guardianname is required"},
		{"mismatch", ProfileUpdate{Phone: "5551234567", GuardianName: "C", GuardianPhone: "5557654321", NewPassword: "abcdef", ConfirmPassword: "abcdeg"}, "passwords do not match"},
		{"short password", ProfileUpdate{Phone: "5551234567", GuardianName: "C", GuardianPhone: "5557654321", NewPassword: "abc", ConfirmPassword: "abc"}, "at least 6 characters"},
		{"confirm only", ProfileUpdate{Phone: "5551234567", GuardianName: "C", GuardianPhone: "5557654321", ConfirmPassword: "abcdef"}, "passwords do not match"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := s.UpdateProfile(ctx, "alice", tc.u)
			if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("got %v, want %q", err, tc.msg)
			}
		})
	}

	ok := ProfileUpdate{Phone: "5550000000", GuardianName: "Dave", GuardianPhone: "5551111111", NewPassword: "newpass", ConfirmPassword: "newpass"}
	if err := s.UpdateProfile(ctx, "alice", ok); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Authenticate(ctx, "alice", "newpass"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	a, err := s.Lookup(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if a.GuardianName != "Dave" || a.Phone != "5550000000" {
		t.Fatalf("profile not updated: %+v", a)
	}

	keep := ProfileUpdate{Phone: "5550000000", GuardianName: "Dave", GuardianPhone: "5552222222"}
	if err := s.UpdateProfile(ctx, "alice", keep); err != nil {
		t.Fatalf("update without password: %v", err)
	}
	if _, err := s.Authenticate(ctx, "alice", "newpass"); err != nil {
		t.Fatalf("password changed unexpectedly: %v", err)
	}
	if err := s.UpdateProfile(ctx, "ghost", keep); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}
}

func TestStore_RecipientAndPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")
	ctx := context.Background()
	s, err := Open(ctx, path, WithHashCost(bcrypt.MinCost))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Register(ctx, alice()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopening runs migrations again without touching existing rows.
	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	r, err := s.Recipient(ctx, "alice")
	if err != nil {
		t.Fatalf("recipient: %v", err)
	}
	if r.Name != "Alice" || r.Contact != "5557654321" {
		t.Fatalf("recipient=%+v", r)
	}
	if _, err := s.Recipient(ctx, "nobody"); !errors.Is(err, alerting.ErrNoRecipient) {
		t.Fatalf("unknown recipient: got %v", err)
	}
	if _, err := s.Lookup(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("lookup: got %v", err)
	}
}
