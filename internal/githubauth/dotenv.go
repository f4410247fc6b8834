package githubauth

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvironmentFile reads KEY=VALUE pairs from the dotenv file into the process
// environment. Variables that are already set keep their values. A missing file is not an error.
func LoadEnvironmentFile(filePath string) (bool, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return false, nil
	}
	loadError := godotenv.Load(trimmedPath)
	if loadError == nil {
		return true, nil
	}
	if errors.Is(loadError, fs.ErrNotExist) {
		return false, nil
	}
	return false, loadError
}
