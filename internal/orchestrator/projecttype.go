package orchestrator

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ShayCichocki/intentflow/pkg/models"
)

// ProjectType represents the primary language/framework of a project.
type ProjectType string

const (
	// ProjectTypeGo indicates a Go project (has go.mod).
	ProjectTypeGo ProjectType = "go"
	// ProjectTypeNode indicates a Node.js project (has package.json).
	ProjectTypeNode ProjectType = "node"
	// ProjectTypeTypeScript indicates a Node.js project with tsconfig.json.
	ProjectTypeTypeScript ProjectType = "typescript"
	// ProjectTypeRust indicates a Rust project (has Cargo.toml).
	ProjectTypeRust ProjectType = "rust"
	// ProjectTypePython indicates a Python project (has pyproject.toml or requirements.txt).
	ProjectTypePython ProjectType = "python"
	// ProjectTypeWeb indicates a static site (has index.html).
	ProjectTypeWeb ProjectType = "web"
	// ProjectTypeUnknown indicates the project type couldn't be detected.
	ProjectTypeUnknown ProjectType = "unknown"
)

// DetectProjectType analyzes a directory and returns the project type.
// It checks for common project files in order of specificity.
func DetectProjectType(repoPath string) ProjectType {
	if fileExists(filepath.Join(repoPath, "go.mod")) {
		return ProjectTypeGo
	}

	if fileExists(filepath.Join(repoPath, "Cargo.toml")) {
		return ProjectTypeRust
	}

	if fileExists(filepath.Join(repoPath, "pyproject.toml")) ||
		fileExists(filepath.Join(repoPath, "setup.py")) ||
		fileExists(filepath.Join(repoPath, "requirements.txt")) {
		return ProjectTypePython
	}

	// Node is checked late since package.json shows up everywhere.
	if fileExists(filepath.Join(repoPath, "package.json")) {
		if fileExists(filepath.Join(repoPath, "tsconfig.json")) {
			return ProjectTypeTypeScript
		}
		return ProjectTypeNode
	}

	if fileExists(filepath.Join(repoPath, "index.html")) {
		return ProjectTypeWeb
	}

	return ProjectTypeUnknown
}

// deployMarkers maps deployment config files to their platform.
var deployMarkers = []struct {
	file     string
	platform string
}{
	{"vercel.json", "vercel"},
	{"netlify.toml", "netlify"},
	{"Procfile", "heroku"},
	{"Dockerfile", "docker"},
}

// DetectDeployPlatform returns the platform named by a deployment config
// file in repoPath, or "".
func DetectDeployPlatform(repoPath string) string {
	for _, m := range deployMarkers {
		if fileExists(filepath.Join(repoPath, m.file)) {
			return m.platform
		}
	}
	if dirExists(filepath.Join(repoPath, ".github", "workflows")) && hasPagesWorkflow(repoPath) {
		return "github-pages"
	}
	return ""
}

// DetectContext builds the request context for a working directory.
// currentFile may be empty.
func DetectContext(repoPath, currentFile, userID string) models.Context {
	mctx := models.Context{
		UserID:      userID,
		CurrentFile: currentFile,
	}
	if pt := DetectProjectType(repoPath); pt != ProjectTypeUnknown {
		mctx.ProjectType = string(pt)
	}
	if platform := DetectDeployPlatform(repoPath); platform != "" {
		mctx.ProjectConfig = map[string]string{"deployPlatform": platform}
	}
	return mctx
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// hasPagesWorkflow reports whether any workflow file mentions GitHub Pages.
func hasPagesWorkflow(repoPath string) bool {
	matches, _ := filepath.Glob(filepath.Join(repoPath, ".github", "workflows", "*.y*ml"))
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		if strings.Contains(string(data), "deploy-pages") {
			return true
		}
	}
	return false
}
