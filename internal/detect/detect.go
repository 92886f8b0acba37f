package detect

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// MinCLIVersion is the oldest @angular/cli whose dev server prints the build
// markers the classifier recognises.
const MinCLIVersion = "17.0.0"

var ErrNoWorkspace = errors.New("no angular.json found")

type Result struct {
	Root           string
	Projects       []string
	DefaultProject string
	CLIVersion     string // "" when @angular/cli is not installed locally
	LocalCLI       string // node_modules/.bin/ng, when present
	Runner         string // "npm", "pnpm", "yarn" or "bun"
}

// Detect finds the Angular workspace containing start and describes it.
func Detect(start string) (*Result, error) {
	root, err := FindWorkspace(start)
	if err != nil {
		return nil, err
	}

	projects, defaultProject, err := readWorkspace(filepath.Join(root, "angular.json"))
	if err != nil {
		return nil, err
	}

	r := &Result{
		Root:           root,
		Projects:       projects,
		DefaultProject: defaultProject,
		CLIVersion:     detectCLIVersion(root),
		Runner:         detectNodeRunner(root),
	}
	if local := filepath.Join(root, "node_modules", ".bin", "ng"); fileExists(local) {
		r.LocalCLI = local
	}
	return r, nil
}

// FindWorkspace walks upward from start to the first directory holding an
// angular.json.
func FindWorkspace(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}
	for {
		if fileExists(filepath.Join(dir, "angular.json")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoWorkspace
		}
		dir = parent
	}
}

// Compatible reports whether the installed CLI is new enough. A workspace
// without a local install is assumed compatible.
func (r *Result) Compatible() (bool, error) {
	if r.CLIVersion == "" {
		return true, nil
	}
	return CheckCLIVersion(r.CLIVersion)
}

// Command is the suggested CLI invocation for this workspace.
func (r *Result) Command() []string {
	if r.LocalCLI != "" {
		return []string{r.LocalCLI}
	}
	switch r.Runner {
	case "pnpm":
		return []string{"pnpm", "exec", "ng"}
	case "yarn":
		return []string{"yarn", "ng"}
	case "bun":
		return []string{"bunx", "ng"}
	default:
		return []string{"npx", "ng"}
	}
}

// HasProject reports whether name is a project in the workspace.
func (r *Result) HasProject(name string) bool {
	for _, p := range r.Projects {
		if p == name {
			return true
		}
	}
	return false
}

// CheckCLIVersion reports whether version satisfies >= MinCLIVersion.
func CheckCLIVersion(version string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("parse version %q: %w", version, err)
	}
	c, err := semver.NewConstraint(">= " + MinCLIVersion)
	if err != nil {
		return false, err
	}
	return c.Check(v), nil
}

func readWorkspace(path string) ([]string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read workspace: %w", err)
	}
	var ws struct {
		DefaultProject string                     `json:"defaultProject"`
		Projects       map[string]json.RawMessage `json:"projects"`
	}
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", path, err)
	}

	projects := make([]string, 0, len(ws.Projects))
	for name := range ws.Projects {
		projects = append(projects, name)
	}
	sort.Strings(projects)
	return projects, ws.DefaultProject, nil
}

func detectCLIVersion(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "node_modules", "@angular", "cli", "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return ""
	}
	return pkg.Version
}

func detectNodeRunner(root string) string {
	if fileExists(filepath.Join(root, "bun.lockb")) || fileExists(filepath.Join(root, "bun.lock")) {
		return "bun"
	}
	if fileExists(filepath.Join(root, "pnpm-lock.yaml")) {
		return "pnpm"
	}
	if fileExists(filepath.Join(root, "yarn.lock")) {
		return "yarn"
	}
	return "npm"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
