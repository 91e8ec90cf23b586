package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	s, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.Get(); got.Account.FaxUser != "" || got.Token.JWTToken != "" {
		t.Fatalf("fresh store must be empty: %+v", got)
	}
}

func TestUpdatePersistsAcrossLoads(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = s.Update(func(st *State) {
		st.Account.FaxUser = "100@sample.acme.service"
		st.Account.DomainUUID = "d-1"
		st.Account.AllFaxNumbers = []string{"15550001111"}
		st.Account.ValidationStatus = true
		st.Token.JWTToken = "jwt"
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := reloaded.Get()
	if got.Account.FaxUser != "100@sample.acme.service" || !got.Account.ValidationStatus {
		t.Fatalf("account not persisted: %+v", got.Account)
	}
	if got.Token.JWTToken != "jwt" {
		t.Fatalf("token not persisted: %+v", got.Token)
	}
}

func TestStateFilePermissions(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Update(func(st *State) { st.Token.JWTToken = "jwt" }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
}

func TestUpdateFailureKeepsMemoryState(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.Update(func(st *State) { st.Account.FaxUser = "a" }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Make the target unwritable so the next update fails.
	s.path = filepath.Join(path, "impossible", "config.json")
	if err := s.Update(func(st *State) { st.Account.FaxUser = "b" }); err == nil {
		t.Fatal("expected write failure")
	}
	if got := s.Get(); got.Account.FaxUser != "a" {
		t.Fatalf("failed update must not mutate state: %+v", got)
	}
}
