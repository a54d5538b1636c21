package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/untoldecay/roadmap/internal/config"
	"github.com/untoldecay/roadmap/internal/storage"
	"github.com/untoldecay/roadmap/internal/storage/sqlite"
	"github.com/untoldecay/roadmap/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Initialize rdm in the current directory",
	Long: `Initialize rdm in the current directory by creating a .roadmap/
directory holding the managed markdown tree (projects/, milestones/,
issues/), a config.yaml, and the local database.

Running init in an already-initialized project is a no-op and exits 2.

Examples:
  rdm init
  rdm init --prefix api`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		prefix, _ := cmd.Flags().GetString("prefix")

		cwd, err := os.Getwd()
		if err != nil {
			FatalError("resolving working directory: %v", err)
		}

		// Guard concurrent inits on the same directory.
		lock := flock.New(filepath.Join(cwd, ".roadmap_init.lock"))
		locked, err := lock.TryLock()
		if err != nil {
			FatalError("acquiring init lock: %v", err)
		}
		if !locked {
			FatalError("another rdm init is in progress")
		}
		defer func() { _ = lock.Unlock() }()

		roadmapDir := filepath.Join(cwd, config.DirName)
		if _, err := os.Stat(roadmapDir); err == nil {
			fmt.Fprintf(os.Stderr, "rdm already initialized in %s\n", cwd)
			os.Exit(exitAlreadyInitialized)
		}

		if prefix == "" {
			prefix = derivePrefix(filepath.Base(cwd))
		}

		createdDirs := managedSubdirs()
		for _, d := range createdDirs {
			if err := os.MkdirAll(filepath.Join(roadmapDir, d), 0o755); err != nil {
				FatalError("creating %s: %v", d, err)
			}
		}

		configPath := filepath.Join(roadmapDir, "config.yaml")
		if err := writeConfigScaffold(configPath, prefix); err != nil {
			FatalError("writing config.yaml: %v", err)
		}

		dbPath := config.DBPath()
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			FatalError("creating database directory: %v", err)
		}
		s, err := sqlite.New(rootCtx, storage.Config{
			Path:       dbPath,
			RoadmapDir: roadmapDir,
			Prefix:     prefix,
		})
		if err != nil {
			FatalError("creating database: %v", err)
		}
		defer func() { _ = s.Close() }()

		res := ui.InitResult{
			Root:        cwd,
			RoadmapDir:  config.DirName + "/",
			DBPath:      dbPath,
			Prefix:      prefix,
			ConfigPath:  filepath.Join(config.DirName, "config.yaml"),
			CreatedDirs: createdDirs,
			QuickstartCommands: []string{
				"rdm issue create \"My first issue\"",
				"rdm sync --dry-run",
				"rdm sync",
			},
		}
		if config.Token() == "" {
			res.Warnings = append(res.Warnings,
				"GITHUB_TOKEN is not set; sync runs file-only until a token is provided")
		}
		res.Warnings = append(res.Warnings,
			"Set github.owner and github.repo in "+res.ConfigPath+" to enable remote sync")

		fmt.Println()
		fmt.Println(ui.RenderInitReport(res, ui.GetWidth()))
		fmt.Println()
	},
}

// managedSubdirs lists the skeleton created under .roadmap/, archive
// counterparts included.
func managedSubdirs() []string {
	return []string{
		"projects/",
		"projects/archive/",
		"milestones/",
		"milestones/archive/",
		"issues/",
		"issues/archive/",
	}
}

// derivePrefix turns a directory name into an issue prefix: lowercase
// letters and digits only, at most 8 characters, "rm" when nothing
// usable remains.
func derivePrefix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= 8 {
			break
		}
	}
	if b.Len() == 0 {
		return "rm"
	}
	return b.String()
}

type scaffoldGitHub struct {
	Owner  string `yaml:"owner"`
	Repo   string `yaml:"repo"`
	APIURL string `yaml:"api_url"`
}

type scaffoldUser struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type configScaffold struct {
	IssuePrefix string         `yaml:"issue_prefix"`
	SyncBackend string         `yaml:"sync_backend"`
	GitHub      scaffoldGitHub `yaml:"github"`
	User        scaffoldUser   `yaml:"user"`
}

func writeConfigScaffold(path, prefix string) error {
	scaffold := configScaffold{
		IssuePrefix: prefix,
		SyncBackend: "github",
		GitHub:      scaffoldGitHub{APIURL: "https://api.github.com"},
	}
	body, err := yaml.Marshal(scaffold)
	if err != nil {
		return err
	}
	header := "# rdm configuration.\n" +
		"# Set github.owner and github.repo to enable remote sync; the API\n" +
		"# token comes from the GITHUB_TOKEN environment variable.\n" +
		"# sync_backend: github (remote sync) or git (file-only).\n"
	return os.WriteFile(path, append([]byte(header), body...), 0o644)
}

func init() {
	initCmd.Flags().StringP("prefix", "p", "", "Issue prefix (default: derived from the directory name)")
	rootCmd.AddCommand(initCmd)
}
