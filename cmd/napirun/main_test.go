package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-napi/internal/wasmbin"
)

func TestParseArg(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"5", float64(5)},
		{"-1.5", -1.5},
		{"true", true},
		{"null", nil},
		{`"quoted"`, "quoted"},
		{"[1,2]", []any{float64(1), float64(2)}},
		{`{"a":"b"}`, map[string]any{"a": "b"}},
		{"hello", "hello"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, parseArg(tt.in))
		})
	}
}

func TestParseArgList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []any
	}{
		{"empty", "  ", nil},
		{"numbers", "2, 3", []any{float64(2), float64(3)}},
		{"json", `"x", {"k": 1}, [true]`, []any{"x", map[string]any{"k": float64(1)}, []any{true}}},
		{"bare strings", "hello, 4", []any{"hello", float64(4)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, parseArgList(tt.in))
		})
	}
}

func TestParsePairs(t *testing.T) {
	require.Empty(t, parsePairs("", "="))
	require.Equal(t, map[string]string{"A": "1", "B": "x=y"}, parsePairs("A=1,B=x=y,junk", "="))
	require.Equal(t, map[string]string{"/tmp": "/data"}, parsePairs("/tmp:/data", ":"))
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig(func(string) (string, bool) { return "", false })
		require.NoError(t, err)
		require.Equal(t, Config{LogLevel: "warn"}, *cfg)
	})

	t.Run("environment", func(t *testing.T) {
		env := map[string]string{
			"NAPIRUN_MEMORY_PAGES": "32",
			"NAPIRUN_CACHE_DIR":    "/var/cache/napirun",
			"NAPIRUN_LOG_LEVEL":    "debug",
		}
		cfg, err := LoadConfig(func(k string) (string, bool) { v, ok := env[k]; return v, ok })
		require.NoError(t, err)
		require.Equal(t, Config{MemoryPages: 32, CacheDir: "/var/cache/napirun", LogLevel: "debug"}, *cfg)
	})

	t.Run("invalid pages", func(t *testing.T) {
		_, err := LoadConfig(func(k string) (string, bool) {
			if k == "NAPIRUN_MEMORY_PAGES" {
				return "lots", true
			}
			return "", false
		})
		require.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"off", "debug", "warn", "error"} {
		l, err := newLogger(level)
		require.NoError(t, err, level)
		require.NotNil(t, l)
	}
	_, err := newLogger("loud")
	require.Error(t, err)
}

func writeAddon(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "addon.wasm")
	require.NoError(t, os.WriteFile(path, wasmbin.Addon("napi"), 0o644))
	return path
}

func noEnv(string) (string, bool) { return "", false }

func TestRun(t *testing.T) {
	path := writeAddon(t)

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr string
	}{
		{"call", []string{"-wasm", path, "-func", "add", "2", "3"}, "5\n", ""},
		{"json", []string{"-wasm", path, "-func", "add", "-json", "40", "2"}, "42\n", ""},
		{"log off", []string{"-wasm", path, "-func", "add", "-log-level", "off", "1", "1"}, "2\n", ""},
		{"guest throw", []string{"-wasm", path, "-func", "fail"}, "", "broken"},
		{"missing export", []string{"-wasm", path, "-func", "mul"}, "", "call mul"},
		{"missing wasm flag", []string{"-func", "add"}, "", "missing -wasm"},
		{"missing file", []string{"-wasm", filepath.Join(t.TempDir(), "nope.wasm")}, "", "load addon"},
		{"bad log level", []string{"-wasm", path, "-log-level", "loud"}, "", "log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), tt.args, noEnv, &stdout, &stderr)
			if tt.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, stdout.String())
		})
	}
}

func TestRun_List(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-wasm", writeAddon(t), "-list"}, noEnv, &stdout, &stderr)
	require.NoError(t, err)

	out := stdout.String()
	for _, name := range []string{"add", "boom", "fail"} {
		require.Contains(t, out, name)
	}
	require.Less(t, strings.Index(out, "boom"), strings.Index(out, "fail"))
}

func TestRun_NoFunc(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-wasm", writeAddon(t)}, noEnv, &stdout, &stderr)
	require.NoError(t, err)
	require.Contains(t, stdout.String(), "add, boom, fail")
}

func TestRun_InteractiveNeedsTerminal(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-wasm", writeAddon(t), "-i"}, noEnv, &stdout, &stderr)
	require.ErrorContains(t, err, "terminal")
}

func TestRun_ConfigFromEnvironment(t *testing.T) {
	env := map[string]string{
		"NAPIRUN_MEMORY_PAGES": "16",
		"NAPIRUN_CACHE_DIR":    t.TempDir(),
		"NAPIRUN_LOG_LEVEL":    "error",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"-wasm", writeAddon(t), "-func", "add", "20", "22"}, lookup, &stdout, &stderr)
	require.NoError(t, err)
	require.Equal(t, "42\n", stdout.String())
}
