// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"maps"
	"os"
	"slices"
	"strings"
)

// EnvPrefix marks variables that configure the kernel itself. They are never
// passed on to the shell session.
const EnvPrefix = "SHKERNEL_"

// EnvConfig describes how the initial environment of a session is built.
type EnvConfig struct {
	// Inherit copies the host environment into the session.
	Inherit bool
	// Files are dotenv files loaded in order after the host environment.
	Files []string
	// BaseDir resolves relative Files.
	BaseDir string
	// Vars are applied last and win over everything else.
	Vars map[string]string
}

// BuildEnv builds the initial session environment with this precedence,
// lowest first:
//  1. Host environment, when Inherit is set
//  2. Files, in order
//  3. Vars
func BuildEnv(cfg EnvConfig) (map[string]string, error) {
	env := make(map[string]string)
	if cfg.Inherit {
		for _, entry := range FilterKernelEnvVars(os.Environ()) {
			if name, value, ok := strings.Cut(entry, "="); ok && name != "" {
				env[name] = value
			}
		}
	}

	for _, path := range cfg.Files {
		if err := LoadEnvFile(env, path, cfg.BaseDir); err != nil {
			return nil, err
		}
	}

	maps.Copy(env, cfg.Vars)
	return env, nil
}

// EnvToSlice converts env to sorted KEY=VALUE pairs.
func EnvToSlice(env map[string]string) []string {
	result := make([]string, 0, len(env))
	for _, k := range slices.Sorted(maps.Keys(env)) {
		result = append(result, k+"="+env[k])
	}
	return result
}

// FilterKernelEnvVars drops SHKERNEL_* entries from environ. Malformed entries
// are kept.
func FilterKernelEnvVars(environ []string) []string {
	result := make([]string, 0, len(environ))
	for _, e := range environ {
		if strings.HasPrefix(e, EnvPrefix) && strings.Contains(e, "=") {
			continue
		}
		result = append(result, e)
	}
	return result
}
