// Package config loads construct.yaml.
//
// The file is optional. When present it is decoded with gopkg.in/yaml.v3,
// checked against an embedded CUE schema, then decoded strictly into
// Config. Environment variables override the file; command-line flags
// override both and are applied by the caller.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/roach88/construct/internal/corpus"
)

//go:embed schema.cue
var schemaCUE string

// FileName is the config file looked up in the workspace root.
const FileName = "construct.yaml"

// Environment overrides.
const (
	EnvAgent = "CONSTRUCT_AGENT"
	EnvModel = "PROMPT_AGENTIC_MODEL"
)

// Config is the decoded construct.yaml.
type Config struct {
	Agent string `yaml:"agent"`
	Model string `yaml:"model"`

	Paths          Paths    `yaml:"paths"`
	TestPatterns   []string `yaml:"test_patterns"`
	CodeExtensions []string `yaml:"code_extensions"`

	Runners  Runners  `yaml:"runners"`
	Oracle   Oracle   `yaml:"oracle"`
	Timeouts Timeouts `yaml:"timeouts"`
}

// Paths are workspace-relative directories and files.
type Paths struct {
	Readme  string `yaml:"readme"`
	Reqs    string `yaml:"reqs"`
	Tests   string `yaml:"tests"`
	Failing string `yaml:"failing"`
	Passing string `yaml:"passing"`
	Code    string `yaml:"code"`
	Reports string `yaml:"reports"`
	Tmp     string `yaml:"tmp"`
	Prompts string `yaml:"prompts"`
}

// Runners are command-line prefixes, written as shell-quoted strings.
type Runners struct {
	Test  string            `yaml:"test"`
	Build map[string]string `yaml:"build"` // by build script extension
}

// Oracle configures the agent adapter.
type Oracle struct {
	Commands map[string]string `yaml:"commands"` // full command line by agent
	Timeout  string            `yaml:"timeout"`
}

// Timeouts are Go duration strings.
type Timeouts struct {
	Test  string `yaml:"test"`
	Build string `yaml:"build"`
	Grace string `yaml:"grace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	l := corpus.DefaultLayout("")
	return &Config{
		Agent: "claude",
		Paths: Paths{
			Readme:  l.Readme,
			Reqs:    l.DocsDir,
			Tests:   l.TestsDir,
			Failing: l.FailingDir,
			Passing: l.PassingDir,
			Code:    l.CodeDir,
			Reports: l.ReportsDir,
			Tmp:     l.TmpDir,
			Prompts: l.PromptsDir,
		},
		TestPatterns:   l.TestPatterns,
		CodeExtensions: l.CodeExtensions,
		Runners: Runners{
			Test: "uv run --script",
			Build: map[string]string{
				".py":  "uv run --script",
				".sh":  "sh",
				".ps1": "pwsh -File",
			},
		},
		Oracle:   Oracle{Timeout: "1h"},
		Timeouts: Timeouts{Test: "120s", Build: "1h", Grace: "5s"},
	}
}

// Error reports an invalid config file.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Load reads the config for the workspace at root. An empty path means
// <root>/construct.yaml, which may be absent; an explicit path must exist.
// Environment overrides are applied.
func Load(root, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, FileName)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(path, data); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Path: path, Message: err.Error()}
	}
	return cfg, nil
}

func (c *Config) decode(path string, data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &Error{Path: path, Message: err.Error()}
	}
	if raw == nil {
		return nil
	}
	if err := checkSchema(raw); err != nil {
		return &Error{Path: path, Message: err.Error()}
	}

	// yaml.v3 merges into an existing map, so a build map given in the
	// file has to start empty to replace the defaults.
	if runners, ok := raw["runners"].(map[string]any); ok {
		if _, ok := runners["build"]; ok {
			c.Runners.Build = nil
		}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return &Error{Path: path, Message: err.Error()}
	}
	return nil
}

// checkSchema unifies raw with #Config from the embedded schema.
func checkSchema(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return errors.New(cueerrors.Details(err, nil))
	}
	return nil
}

// ApplyEnv overrides the agent and model from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAgent); v != "" {
		c.Agent = v
	}
	if v := getenv(EnvModel); v != "" {
		c.Model = v
	}
}

// Validate checks values that can also come from the environment or flags.
func (c *Config) Validate() error {
	if c.Agent != "claude" && c.Agent != "codex" {
		return fmt.Errorf("unsupported agent %q", c.Agent)
	}
	if len(c.Runners.Build) == 0 {
		return errors.New("runners.build: at least one build runner is required")
	}
	for name, d := range map[string]string{
		"timeouts.test":  c.Timeouts.Test,
		"timeouts.build": c.Timeouts.Build,
		"timeouts.grace": c.Timeouts.Grace,
		"oracle.timeout": c.Oracle.Timeout,
	} {
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Layout returns the workspace layout rooted at root.
func (c *Config) Layout(root string) corpus.Layout {
	l := corpus.DefaultLayout(root)
	l.Readme = c.Paths.Readme
	l.DocsDir = c.Paths.Reqs
	l.TestsDir = c.Paths.Tests
	l.FailingDir = c.Paths.Failing
	l.PassingDir = c.Paths.Passing
	l.CodeDir = c.Paths.Code
	l.ReportsDir = c.Paths.Reports
	l.TmpDir = c.Paths.Tmp
	l.PromptsDir = c.Paths.Prompts
	l.TestPatterns = c.TestPatterns
	l.CodeExtensions = c.CodeExtensions
	return l
}

// TestRunner splits the test runner prefix into argv.
func (c *Config) TestRunner() ([]string, error) {
	return splitArgv("runners.test", c.Runners.Test)
}

// BuildRunners splits every build runner prefix.
func (c *Config) BuildRunners() (map[string][]string, error) {
	out := make(map[string][]string, len(c.Runners.Build))
	for ext, line := range c.Runners.Build {
		argv, err := splitArgv("runners.build."+ext, line)
		if err != nil {
			return nil, err
		}
		out[ext] = argv
	}
	return out, nil
}

// OracleCommands splits the per-agent command overrides.
func (c *Config) OracleCommands() (map[string][]string, error) {
	out := make(map[string][]string, len(c.Oracle.Commands))
	agents := make([]string, 0, len(c.Oracle.Commands))
	for a := range c.Oracle.Commands {
		agents = append(agents, a)
	}
	sort.Strings(agents)
	for _, a := range agents {
		argv, err := splitArgv("oracle.commands."+a, c.Oracle.Commands[a])
		if err != nil {
			return nil, err
		}
		out[a] = argv
	}
	return out, nil
}

func splitArgv(field, line string) ([]string, error) {
	argv, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%s: empty command", field)
	}
	return argv, nil
}

// Durations already passed Validate, so parse errors cannot occur here.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// TestTimeout bounds one test run.
func (c *Config) TestTimeout() time.Duration { return mustDuration(c.Timeouts.Test) }

// BuildTimeout bounds the build procedure.
func (c *Config) BuildTimeout() time.Duration { return mustDuration(c.Timeouts.Build) }

// GraceWindow is the wait between terminate and kill.
func (c *Config) GraceWindow() time.Duration { return mustDuration(c.Timeouts.Grace) }

// OracleTimeout bounds one oracle call.
func (c *Config) OracleTimeout() time.Duration { return mustDuration(c.Oracle.Timeout) }
