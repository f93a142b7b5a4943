package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir(t *testing.T) {
	t.Setenv(HomeEnv, "")
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".crewchat", "sessions", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestHomeOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(HomeEnv, tmp)
	if got := DBPath("truck"); got != filepath.Join(tmp, "sessions", "truck", "crew.db") {
		t.Errorf("DBPath(truck) = %q", got)
	}
	if got := ConfigPath(); got != filepath.Join(tmp, "config.toml") {
		t.Errorf("ConfigPath() = %q", got)
	}
}

func TestSocketPath(t *testing.T) {
	got := SocketPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "daemon.sock")) {
		t.Errorf("SocketPath(test) = %q, want suffix sessions/test/daemon.sock", got)
	}
}

func TestLogPath(t *testing.T) {
	got := LogPath("test")
	if !strings.HasSuffix(got, filepath.Join("sessions", "test", "logs", "crewd.log")) {
		t.Errorf("LogPath(test) = %q", got)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	for _, d := range []string{Dir("test"), LogDir("test")} {
		info, err := os.Stat(d)
		if err != nil {
			t.Fatalf("%s not created: %v", d, err)
		}
		if !info.IsDir() || info.Mode().Perm() != 0700 {
			t.Errorf("%s mode = %v", d, info.Mode())
		}
	}
}

func TestEnsureSecretIsStable(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())

	first, err := EnsureSecret("main")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 64 {
		t.Errorf("secret length = %d, want 64 hex chars", len(first))
	}
	second, err := EnsureSecret("main")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("EnsureSecret regenerated an existing secret")
	}
	read, err := ReadSecret("main")
	if err != nil || read != first {
		t.Errorf("ReadSecret = %q, %v", read, err)
	}
	info, err := os.Stat(SecretPath("main"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("secret mode = %o, want 0600", info.Mode().Perm())
	}
}
