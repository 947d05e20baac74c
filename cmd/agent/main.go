// Command agent is an interactive chat with a tool-using agent.
//
// The agent is configured from a markdown definition (see pkg/definition) and
// flags. Every reply streams to the terminal; tool results are printed after
// the call that produced them. Type "exit" or "quit" to leave.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/universal-tool-calling-protocol/go-utcp"

	"github.com/Protocol-Lattice/toolloop/pkg/definition"
	"github.com/Protocol-Lattice/toolloop/pkg/helpers"
	"github.com/Protocol-Lattice/toolloop/pkg/models"
	"github.com/Protocol-Lattice/toolloop/pkg/runtime"
	"github.com/Protocol-Lattice/toolloop/pkg/store"
	"github.com/Protocol-Lattice/toolloop/pkg/tools"
)

const defaultDataDir = ".toolloop"

// maxInputLine bounds one line read from the terminal; pasted documents can
// run well past bufio's default token size.
const maxInputLine = 16 << 20

type cliFlags struct {
	agentName     string
	provider      string
	model         string
	tools         string
	sessionID     string
	dataDir       string
	storeKind     string
	dsn           string
	maxIterations int
	workspace     string
	utcpProviders string
	utcpQuery     string
	promptData    string
	retries       int
	noColor       bool
	verbose       bool
}

func parseFlags(args []string) (cliFlags, error) {
	dataDir := os.Getenv("USER_DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir
	}

	var f cliFlags
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	fs.StringVar(&f.agentName, "agent", "", "Agent definition name or path (looked up as <name>.md in . and <data-dir>/agents)")
	fs.StringVar(&f.provider, "provider", "", "Model provider: "+strings.Join(models.Providers(), ", "))
	fs.StringVar(&f.model, "model", "", "Model name")
	fs.StringVar(&f.tools, "tools", "", "Comma separated built-in tools ("+strings.Join(tools.Names(), ", ")+")")
	fs.StringVar(&f.sessionID, "session", "", "Session id to resume or create")
	fs.StringVar(&f.dataDir, "data-dir", dataDir, "Directory holding agents, prompts and saved sessions")
	fs.StringVar(&f.storeKind, "store", "file", "Session store: "+strings.Join(store.Kinds, ", "))
	fs.StringVar(&f.dsn, "dsn", "", "Store location (defaults to the data directory for file and sqlite)")
	fs.IntVar(&f.maxIterations, "max-iterations", 0, "Iteration bound per instruction (0 keeps the definition's)")
	fs.StringVar(&f.workspace, "workspace", ".", "Root directory for the file and shell tools")
	fs.StringVar(&f.utcpProviders, "utcp-providers", "", "UTCP providers file; its tools are offered to the agent")
	fs.StringVar(&f.utcpQuery, "utcp-query", "", "Search query used to select UTCP tools")
	fs.StringVar(&f.promptData, "prompt-data", "", "Extra system template values as key=value,key=value")
	fs.IntVar(&f.retries, "retries", 0, "Retry a failed model turn up to this many times")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&f.verbose, "v", false, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return f, nil
}

func (f cliFlags) storeDSN() string {
	if f.dsn != "" {
		return f.dsn
	}
	switch f.storeKind {
	case "file":
		return f.dataDir
	case "sqlite", "sqlite3":
		return filepath.Join(f.dataDir, "sessions.db")
	}
	return ""
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	f, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := newLogger(os.Stderr, f.verbose)
	if err := run(ctx, f, os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("agent failed", "error", err)
		os.Exit(1)
	}
}

func loadDefinition(f cliFlags) (definition.Definition, error) {
	if f.agentName == "" {
		return definition.Parse(nil)
	}
	path, err := definition.Resolve(f.agentName, ".", filepath.Join(f.dataDir, "agents"))
	if err != nil {
		return definition.Definition{}, err
	}
	return definition.Load(path)
}

func buildOptions(ctx context.Context, f cliFlags, logger *slog.Logger) ([]runtime.Option, store.Store, error) {
	def, err := loadDefinition(f)
	if err != nil {
		return nil, nil, err
	}
	opts := []runtime.Option{
		runtime.WithDefinition(def),
		runtime.WithModel(f.provider, f.model),
		runtime.WithWorkspace(f.workspace),
		runtime.WithBuiltinTools(helpers.ParseCSVList(f.tools)...),
		runtime.WithPromptData(helpers.ParseKeyValues(f.promptData)),
		runtime.WithLogger(logger),
	}
	if f.maxIterations > 0 {
		opts = append(opts, runtime.WithMaxIterations(f.maxIterations))
	}
	if f.retries > 0 {
		cfg := models.DefaultRetryConfig()
		cfg.MaxRetries = f.retries
		opts = append(opts, runtime.WithRetry(cfg))
	}

	model := def.Model
	if f.model != "" {
		model = f.model
	}
	tmpl, err := definition.LoadSystemTemplate(model, f.dataDir)
	if err != nil {
		return nil, nil, err
	}
	if tmpl != "" {
		opts = append(opts, runtime.WithSystemTemplate(tmpl))
	}

	if f.utcpProviders != "" {
		client, err := utcp.NewUTCPClient(ctx, &utcp.UtcpClientConfig{ProvidersFilePath: f.utcpProviders}, nil, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("utcp client: %w", err)
		}
		opts = append(opts, runtime.WithUTCPClient(client, f.utcpQuery))
	}

	st, err := store.Open(ctx, f.storeKind, f.storeDSN())
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, runtime.WithStore(st))
	return opts, st, nil
}

func openSession(ctx context.Context, rt *runtime.Runtime, id string) (*runtime.Session, error) {
	if id == "" {
		return rt.NewSession("")
	}
	session, err := rt.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return rt.NewSession(id)
	}
	return session, err
}

func run(ctx context.Context, f cliFlags, in io.Reader, out io.Writer, logger *slog.Logger) error {
	opts, st, err := buildOptions(ctx, f, logger)
	if err != nil {
		return err
	}
	rt, err := runtime.New(ctx, opts...)
	if err != nil {
		_ = store.Close(ctx, st)
		return err
	}
	defer func() {
		if err := rt.Close(context.Background()); err != nil {
			logger.Warn("closing store", "error", err)
		}
	}()

	session, err := openSession(ctx, rt, f.sessionID)
	if err != nil {
		return err
	}
	logger.Debug("session ready", "session", session.ID(), "tools", helpers.ToolNames(rt.Tools()))

	return chat(ctx, session, in, out, !f.noColor)
}

func chat(ctx context.Context, session *runtime.Session, in io.Reader, out io.Writer, color bool) error {
	con := newConsole(out, color)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxInputLine)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		for ev, err := range session.Instruct(ctx, line) {
			if err != nil {
				con.finish()
				fmt.Fprintf(out, "error: %v\n", err)
				break
			}
			con.event(ev)
		}
		con.finish()
		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nsession: %s\n", session.ID())
	return nil
}
