package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/bbs/internal/config"
)

// CheckExisting returns an error if dir already holds a bbs.yml or
// .env.example, nil otherwise.
func CheckExisting(dir string) error {
	var existingFiles []string
	for _, name := range []string{config.DefaultFile, EnvExampleFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			existingFiles = append(existingFiles, name)
		}
	}

	if len(existingFiles) > 0 {
		errMsg := "already initialized\n\nFound existing"
		if len(existingFiles) == 1 {
			errMsg += fmt.Sprintf(": %s", existingFiles[0])
		} else {
			errMsg += " files:\n"
			for _, file := range existingFiles {
				errMsg += fmt.Sprintf("  - %s\n", file)
			}
		}
		errMsg += "\nUse 'bbs init --force' to overwrite the existing configuration"

		return fmt.Errorf("%s", errMsg)
	}

	return nil
}
