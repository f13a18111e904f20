package runtime

import (
	"context"
	"io"
	"maps"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-napi/engine"
	"github.com/wippyai/wasm-napi/errors"
	"github.com/wippyai/wasm-napi/napi"
)

type Module struct {
	runtime      *Runtime
	wazeroModule *engine.WazeroModule
}

// Imports returns the napi functions the module imports.
func (m *Module) Imports() []string {
	return m.wazeroModule.Imports()
}

type instanceConfig struct {
	engine engine.InstanceConfig
	abort  func(err error)
}

// InstanceOption configures one instance.
type InstanceOption func(*instanceConfig)

// WithName names the guest module instance. Unnamed instances can be created
// any number of times.
func WithName(name string) InstanceOption {
	return func(c *instanceConfig) {
		c.engine.Name = name
	}
}

func WithStdin(r io.Reader) InstanceOption {
	return func(c *instanceConfig) {
		c.engine.Stdin = r
	}
}

func WithStdout(w io.Writer) InstanceOption {
	return func(c *instanceConfig) {
		c.engine.Stdout = w
	}
}

func WithStderr(w io.Writer) InstanceOption {
	return func(c *instanceConfig) {
		c.engine.Stderr = w
	}
}

// WithArgs sets the guest's WASI argv. By convention args[0] is the program
// name.
func WithArgs(args ...string) InstanceOption {
	return func(c *instanceConfig) {
		c.engine.Args = args
	}
}

// WithEnv adds a WASI environment variable.
func WithEnv(key, value string) InstanceOption {
	return func(c *instanceConfig) {
		if c.engine.Env == nil {
			c.engine.Env = make(map[string]string)
		}
		c.engine.Env[key] = value
	}
}

// WithPreopen mounts hostDir at guestPath.
func WithPreopen(guestPath, hostDir string) InstanceOption {
	return func(c *instanceConfig) {
		if c.engine.Mounts == nil {
			c.engine.Mounts = make(map[string]string)
		}
		c.engine.Mounts[guestPath] = hostDir
	}
}

// WithAbortHook replaces process termination when the guest reports a fatal
// error. The instance refuses all work afterwards.
func WithAbortHook(fn func(err error)) InstanceOption {
	return func(c *instanceConfig) {
		c.abort = fn
	}
}

// Instantiate creates an instance and registers the addon. The exports object
// returned by registration stays pinned for the instance's lifetime.
func (m *Module) Instantiate(ctx context.Context, opts ...InstanceOption) (*Instance, error) {
	cfg := &instanceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.engine.Env = maps.Clone(cfg.engine.Env)
	cfg.engine.EnvOptions = []napi.Option{napi.WithLogger(m.runtime.log)}
	if cfg.abort != nil {
		cfg.engine.EnvOptions = append(cfg.engine.EnvOptions, napi.WithAbortHook(cfg.abort))
	}

	wazeroInstance, err := m.wazeroModule.InstantiateWithConfig(ctx, &cfg.engine)
	if err != nil {
		return nil, err
	}

	env := wazeroInstance.Env()
	exports, err := env.Register(ctx)
	if err != nil {
		closeErr := wazeroInstance.Close(ctx)
		if closeErr != nil {
			m.runtime.log.Debug("close after failed registration", zap.Error(closeErr))
		}
		return nil, errors.New(errors.PhaseInstantiate, errors.KindRegistration).
			Op("napi_register_wasm_v1").
			Detail("register addon").
			Cause(err).
			Build()
	}

	return &Instance{
		module:         m,
		wazeroInstance: wazeroInstance,
		exports:        env.Pin(exports),
	}, nil
}
