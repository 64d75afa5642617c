// SPDX-License-Identifier: MPL-2.0

package execute

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"

	"shkernel/internal/config"
	"shkernel/internal/issue"
	"shkernel/internal/kernel"
	"shkernel/internal/runtime"

	"github.com/charmbracelet/log"
)

// ErrInvalidBuildOptions is the sentinel error wrapped by InvalidBuildOptionsError.
var ErrInvalidBuildOptions = errors.New("invalid build options")

type (
	// BuildKernelOptions configures kernel construction.
	//
	// Config is required. Nil streams default to the process streams.
	BuildKernelOptions struct {
		Config *config.Config
		// BaseDir resolves relative env_files. Empty means the working directory.
		BaseDir string

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer
		Logger *log.Logger

		// ExtraEnv is applied over the configured environment, e.g. variables
		// describing a remote client.
		ExtraEnv map[string]string
	}

	// Session is a kernel together with the engine it drives.
	Session struct {
		Kernel *kernel.Kernel
		Engine *runtime.VirtualEngine
	}

	// InvalidBuildOptionsError is returned when BuildKernelOptions cannot be used.
	InvalidBuildOptionsError struct {
		FieldErrors []error
	}
)

func (e *InvalidBuildOptionsError) Error() string {
	return fmt.Sprintf("invalid build options: %v", errors.Join(e.FieldErrors...))
}

func (e *InvalidBuildOptionsError) Unwrap() error { return ErrInvalidBuildOptions }

// IsValid reports whether the options can build a kernel.
func (o BuildKernelOptions) IsValid() (bool, []error) {
	var errs []error
	if o.Config == nil {
		errs = append(errs, errors.New("config must not be nil"))
	} else if _, err := o.Config.Engine.Timeout.Value(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidBuildOptionsError{FieldErrors: errs}}
	}
	return true, nil
}

// EnvConfig projects the engine section of cfg onto the environment builder.
func EnvConfig(cfg *config.Config, baseDir string, extra map[string]string) runtime.EnvConfig {
	vars := make(map[string]string, len(cfg.Engine.Env)+len(extra))
	maps.Copy(vars, cfg.Engine.Env)
	maps.Copy(vars, extra)
	return runtime.EnvConfig{
		Inherit: cfg.Engine.InheritEnv,
		Files:   cfg.Engine.EnvFiles,
		BaseDir: baseDir,
		Vars:    vars,
	}
}

// BuildKernel creates a fresh engine and a kernel that owns it. Every call
// yields independent shell state.
func BuildKernel(opts BuildKernelOptions) (*Session, error) {
	if ok, errs := opts.IsValid(); !ok {
		return nil, errs[0]
	}
	cfg := opts.Config

	env, err := runtime.BuildEnv(EnvConfig(cfg, opts.BaseDir, opts.ExtraEnv))
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("prepare session environment").
			WithSuggestion("Check the files listed in engine.env_files").
			WithSuggestion("Append '?' to a path to make the file optional").
			Wrap(err).
			BuildError()
	}

	// Validated by IsValid.
	timeout, _ := cfg.Engine.Timeout.Value()

	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "engine"})
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	engine, err := runtime.NewVirtualEngine(runtime.EngineConfig{
		WorkDir:           cfg.Engine.WorkDir,
		Env:               env,
		Stdin:             opts.Stdin,
		Stdout:            opts.Stdout,
		Stderr:            stderr,
		FailOnNonZeroExit: cfg.Engine.FailOnNonZeroExit,
		Timeout:           timeout,
		Logger:            logger.WithPrefix("engine"),
	})
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("start shell engine").
			WithResource(cfg.Engine.WorkDir).
			WithSuggestion("Check engine.work_dir points to an existing directory").
			Wrap(err).
			BuildError()
	}

	k := kernel.New(engine,
		kernel.WithStderr(stderr),
		kernel.WithLogger(logger.WithPrefix("kernel")),
		kernel.WithLanguageInfo(runtime.LanguageInfo()),
	)
	return &Session{Kernel: k, Engine: engine}, nil
}
