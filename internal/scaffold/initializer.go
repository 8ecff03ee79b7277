package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/bbs/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// EnvExampleFile is the sample dotenv written next to bbs.yml.
const EnvExampleFile = ".env.example"

// FileInfo represents a file to be created during initialization
type FileInfo struct {
	Path        string
	Content     []byte
	Permissions os.FileMode
}

// Initialize writes a starter bbs.yml and .env.example into dir and returns
// the paths created. If force is true, existing files are replaced.
func Initialize(dir string, force bool) ([]string, error) {
	if !force {
		if err := CheckExisting(dir); err != nil {
			return nil, err
		}
	}

	files, err := getTemplateFiles(dir)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	created := make([]string, 0, len(files))
	for _, file := range files {
		if err := os.WriteFile(file.Path, file.Content, file.Permissions); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
		created = append(created, file.Path)
	}

	// The generated file must load exactly as bbs and bbsd would load it.
	if _, err := config.Load(filepath.Join(dir, config.DefaultFile), ""); err != nil {
		return nil, fmt.Errorf("created %s is not valid: %w", config.DefaultFile, err)
	}

	return created, nil
}

// getTemplateFiles reads all template files
func getTemplateFiles(dir string) ([]FileInfo, error) {
	templates := []struct {
		name string
		path string
	}{
		{"templates/bbs.yml.tmpl", config.DefaultFile},
		{"templates/env.tmpl", EnvExampleFile},
	}

	files := make([]FileInfo, 0, len(templates))
	for _, tmpl := range templates {
		content, err := templatesFS.ReadFile(tmpl.name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s template: %w", tmpl.path, err)
		}
		files = append(files, FileInfo{
			Path:        filepath.Join(dir, tmpl.path),
			Content:     content,
			Permissions: 0644,
		})
	}
	return files, nil
}
