package config

import (
	"os"
	"path/filepath"
	"testing"
)

// isolate points HOME and XDG_CONFIG_HOME at empty temp dirs so tests
// never read the developer's real config files.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
}

func writeConfig(t *testing.T, root, body string) {
	t.Helper()
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := GetString("github.api_url"); got != "https://api.github.com" {
		t.Errorf("github.api_url = %q", got)
	}
	if got := GetString("sync_backend"); got != "github" {
		t.Errorf("sync_backend = %q", got)
	}
	if got := GetFloat64("sync.rebuild_threshold"); got != 0.5 {
		t.Errorf("sync.rebuild_threshold = %v", got)
	}
	if !GetBool("sync.auto_merge") {
		t.Error("sync.auto_merge should default to true")
	}
	if got := GetFloat64("dedup.title_similarity_threshold"); got != 0.90 {
		t.Errorf("dedup.title_similarity_threshold = %v", got)
	}
	if GetBool("dedup.enable_fuzzy_matching") {
		t.Error("fuzzy matching should default off")
	}
	if GetBool("debug") {
		t.Error("debug should default off")
	}
	if got := ValueSource("sync_backend"); got != SourceDefault {
		t.Errorf("ValueSource = %q, want default", got)
	}
}

func TestProjectConfigDiscovery(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeConfig(t, root, "github:\n  owner: acme\n  repo: widgets\n")

	// Discovery walks up from a nested working directory.
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := GetString("github.owner"); got != "acme" {
		t.Errorf("github.owner = %q, want acme", got)
	}
	if got := ValueSource("github.owner"); got != SourceConfigFile {
		t.Errorf("ValueSource = %q, want config_file", got)
	}

	gotRoot, err := filepath.EvalSymlinks(ProjectRoot())
	if err != nil {
		t.Fatal(err)
	}
	wantRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		t.Fatal(err)
	}
	if gotRoot != wantRoot {
		t.Errorf("ProjectRoot = %q, want %q", gotRoot, wantRoot)
	}
	if got := RoadmapDir(); filepath.Base(got) != DirName {
		t.Errorf("RoadmapDir = %q", got)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	writeConfig(t, root, "sync_backend: git\n")
	t.Chdir(root)
	t.Setenv("RDM_SYNC_BACKEND", "github")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := GetString("sync_backend"); got != "github" {
		t.Errorf("sync_backend = %q, want github (env override)", got)
	}
	if got := ValueSource("sync_backend"); got != SourceEnvVar {
		t.Errorf("ValueSource = %q, want env_var", got)
	}
}

func TestEnvNestedKeys(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())
	t.Setenv("RDM_SYNC_REBUILD_THRESHOLD", "0.8")
	t.Setenv("RDM_GITHUB_OWNER", "octo")

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got := GetFloat64("sync.rebuild_threshold"); got != 0.8 {
		t.Errorf("sync.rebuild_threshold = %v, want 0.8", got)
	}
	if got := GetString("github.owner"); got != "octo" {
		t.Errorf("github.owner = %q, want octo", got)
	}
}

func TestToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("RDM_GITHUB_TOKEN", "")
	if got := Token(); got != "" {
		t.Errorf("Token = %q, want empty", got)
	}

	t.Setenv("RDM_GITHUB_TOKEN", "fallback")
	if got := Token(); got != "fallback" {
		t.Errorf("Token = %q, want fallback", got)
	}

	t.Setenv("GITHUB_TOKEN", "primary")
	if got := Token(); got != "primary" {
		t.Errorf("Token = %q, want primary", got)
	}
}

func TestRoadmapDirUninitialized(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())

	if got := RoadmapDir(); got != "" {
		t.Errorf("RoadmapDir = %q, want empty outside a project", got)
	}
	if got := ProjectRoot(); got != "" {
		t.Errorf("ProjectRoot = %q, want empty outside a project", got)
	}
}

func TestSetOverride(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	Set("db.path", "/tmp/alt.db")
	if got := GetString("db.path"); got != "/tmp/alt.db" {
		t.Errorf("db.path = %q after Set", got)
	}
}

func TestDBPath(t *testing.T) {
	isolate(t)
	t.Chdir(t.TempDir())

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// Default: ~/.roadmap/roadmap.db under the isolated HOME.
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}
	if got, want := DBPath(), filepath.Join(home, DirName, "roadmap.db"); got != want {
		t.Errorf("DBPath = %q, want %q", got, want)
	}

	Set("db.path", "/tmp/alt.db")
	if got := DBPath(); got != "/tmp/alt.db" {
		t.Errorf("DBPath = %q after override", got)
	}
}
