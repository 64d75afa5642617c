// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/subosito/gotenv"
)

// LoadEnvFile loads a dotenv file and merges its contents into env.
// Relative paths are resolved against basePath, or the process working
// directory when basePath is empty. Paths suffixed with '?' are optional and
// a missing optional file is not an error. Values from later files win.
func LoadEnvFile(env map[string]string, path, basePath string) error {
	optional := strings.HasSuffix(path, "?")
	path = strings.TrimSuffix(path, "?")

	fullPath := filepath.FromSlash(path)
	if !filepath.IsAbs(fullPath) {
		if basePath == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get current working directory: %w", err)
			}
			basePath = cwd
		}
		fullPath = filepath.Join(basePath, fullPath)
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read env file '%s': %w", path, err)
	}

	return ParseEnvFile(env, content, path)
}

// ParseEnvFile parses dotenv content and merges it into env. Comments, blank
// lines, quoted values and an optional 'export' prefix are accepted. Malformed
// lines are reported with the filename.
func ParseEnvFile(env map[string]string, content []byte, filename string) error {
	parsed, err := gotenv.StrictParse(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	for k, v := range parsed {
		env[k] = v
	}
	return nil
}
