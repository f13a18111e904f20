package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/davidmdm/ansi"
	"github.com/davidmdm/x/xcontext"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/wasm-napi/engine"
	"github.com/wippyai/wasm-napi/runtime"
	"github.com/wippyai/wasm-napi/value"
)

var (
	red  = ansi.MakeStyle(ansi.FgRed).Sprint
	cyan = ansi.MakeStyle(ansi.FgCyan).Sprint
)

func main() {
	ctx, cancel := xcontext.WithSignalCancelation(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.LookupEnv, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, red("Error:"), err)
		os.Exit(1)
	}
}

type options struct {
	wasmFile     string
	funcName     string
	envVars      string
	argv         string
	preopens     string
	importModule string
	cacheDir     string
	logLevel     string
	memoryPages  uint
	jsonOut      bool
	list         bool
	interactive  bool
	callArgs     []string
}

func parseFlags(args []string, cfg *Config, stderr io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("napirun", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.wasmFile, "wasm", "", "Path to addon wasm file")
	fs.StringVar(&o.funcName, "func", "", "Exported function to call")
	fs.StringVar(&o.envVars, "env", "", "Environment variables (KEY=VAL,KEY2=VAL2)")
	fs.StringVar(&o.argv, "argv", "", "WASI arguments (comma-separated)")
	fs.StringVar(&o.preopens, "preopens", "", "Preopened directories (/host:/guest,/host2:/guest2)")
	fs.StringVar(&o.importModule, "import", engine.DefaultImportModule, "Import module providing napi_* functions")
	fs.StringVar(&o.cacheDir, "cache-dir", cfg.CacheDir, "Compilation cache directory ($NAPIRUN_CACHE_DIR)")
	fs.StringVar(&o.logLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error or off ($NAPIRUN_LOG_LEVEL)")
	fs.UintVar(&o.memoryPages, "memory-pages", uint(cfg.MemoryPages), "Guest memory limit in 64KiB pages ($NAPIRUN_MEMORY_PAGES)")
	fs.BoolVar(&o.jsonOut, "json", false, "Print the result as JSON")
	fs.BoolVar(&o.list, "list", false, "List exports and exit")
	fs.BoolVar(&o.interactive, "i", false, "Interactive mode with TUI")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: napirun -wasm <addon.wasm> -func <name> [args...]")
		fmt.Fprintln(stderr, "       napirun -wasm <addon.wasm> -list")
		fmt.Fprintln(stderr, "       napirun -wasm <addon.wasm> -i  (interactive mode)")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.callArgs = fs.Args()
	if o.wasmFile == "" {
		fs.Usage()
		return nil, fmt.Errorf("missing -wasm")
	}
	return &o, nil
}

func run(ctx context.Context, args []string, lookup func(string) (string, bool), stdout, stderr io.Writer) error {
	cfg, err := LoadConfig(lookup)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	o, err := parseFlags(args, cfg, stderr)
	if err != nil {
		return err
	}

	logger, err := newLogger(o.logLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	engine.SetLogger(logger)

	if o.interactive {
		if f, ok := stdout.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
			return fmt.Errorf("interactive mode requires a terminal")
		}
		return runInteractive(o, logger)
	}

	rt, err := newRuntime(ctx, o, logger)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	module, err := rt.LoadFile(ctx, o.wasmFile)
	if err != nil {
		return fmt.Errorf("load addon: %w", err)
	}

	instance, err := module.Instantiate(ctx, instanceOptions(o, stdout, stderr)...)
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}
	defer instance.Close(ctx)

	names := exportedFunctions(instance)
	if o.list {
		fmt.Fprintf(stdout, "Addon: %s\n", o.wasmFile)
		fmt.Fprintf(stdout, "napi imports: %d\n", len(module.Imports()))
		fmt.Fprintf(stdout, "\nExported functions:\n")
		for _, name := range names {
			fmt.Fprintf(stdout, "  %s\n", cyan(name))
		}
		return nil
	}

	funcName := o.funcName
	if funcName == "" {
		if len(names) != 1 {
			fmt.Fprintf(stdout, "No function specified. Use -func to pick one of: %s\n", strings.Join(names, ", "))
			return nil
		}
		funcName = names[0]
	}

	callArgs := make([]any, len(o.callArgs))
	for i, a := range o.callArgs {
		callArgs[i] = parseArg(a)
	}

	if o.jsonOut {
		text, ok, err := instance.CallJSON(ctx, funcName, callArgs...)
		if err != nil {
			return callError(funcName, err)
		}
		if !ok {
			text = "null"
		}
		fmt.Fprintln(stdout, text)
		return nil
	}

	result, err := instance.Call(ctx, funcName, callArgs...)
	if err != nil {
		return callError(funcName, err)
	}
	fmt.Fprintln(stdout, value.Inspect(result))
	return nil
}

func newRuntime(ctx context.Context, o *options, logger *zap.Logger) (*runtime.Runtime, error) {
	opts := []runtime.Option{
		runtime.WithLogger(logger),
		runtime.WithImportModule(o.importModule),
		runtime.WithCloseOnContextDone(),
	}
	if o.memoryPages > 0 {
		opts = append(opts, runtime.WithMemoryLimitPages(uint32(o.memoryPages)))
	}
	if o.cacheDir != "" {
		opts = append(opts, runtime.WithCompilationCache(o.cacheDir))
	}
	rt, err := runtime.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create runtime: %w", err)
	}
	return rt, nil
}

func instanceOptions(o *options, stdout, stderr io.Writer) []runtime.InstanceOption {
	opts := []runtime.InstanceOption{
		runtime.WithStdin(os.Stdin),
		runtime.WithStdout(stdout),
		runtime.WithStderr(stderr),
	}
	if o.argv != "" {
		opts = append(opts, runtime.WithArgs(strings.Split(o.argv, ",")...))
	}
	for k, v := range parsePairs(o.envVars, "=") {
		opts = append(opts, runtime.WithEnv(k, v))
	}
	for host, guest := range parsePairs(o.preopens, ":") {
		opts = append(opts, runtime.WithPreopen(guest, host))
	}
	return opts
}

// exportedFunctions lists the callable exports in name order.
func exportedFunctions(inst *runtime.Instance) []string {
	obj, ok := inst.Exports().(*value.Object)
	if !ok {
		return nil
	}
	var names []string
	for _, name := range inst.ExportNames() {
		p, ok := obj.GetOwnProperty(value.StringKey(name))
		if ok && value.IsCallable(p.Value) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func callError(name string, err error) error {
	if thrown, ok := value.Thrown(err); ok {
		return fmt.Errorf("call %s: uncaught %s", name, value.Inspect(thrown))
	}
	return fmt.Errorf("call %s: %w", name, err)
}
