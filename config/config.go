// Package config loads the host configuration from YAML.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"wargame/game"
	"wargame/program"
	"wargame/runner"
)

const (
	IsolationGoroutine = "goroutine"
	IsolationProcess   = "process"

	TransportStdio     = "stdio"
	TransportWebSocket = "websocket"
)

var ErrInvalid = errors.New("invalid configuration")

//go:embed schema.json
var schemaSource string

type Config struct {
	Timeout   time.Duration     `yaml:"timeout"`
	Grace     time.Duration     `yaml:"grace"`
	Quota     int               `yaml:"quota"`
	Fallback  string            `yaml:"fallback"`
	Isolation string            `yaml:"isolation"`
	Programs  map[string]string `yaml:"programs"` // Side -> program reference
	LogLevel  string            `yaml:"log_level"`
	Transport Transport         `yaml:"transport"`
	Record    Record            `yaml:"record"`
}

type Transport struct {
	Kind        string        `yaml:"kind"`
	URL         string        `yaml:"url"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// Record names where turn data is kept. Empty paths disable the corresponding sink.
type Record struct {
	MetricsDir string `yaml:"metrics_dir"`
	JournalDir string `yaml:"journal_dir"`
	IndexPath  string `yaml:"index_path"`
}

func Default() Config {
	return Config{
		Timeout:   runner.DefaultTimeout,
		Grace:     runner.DefaultGrace,
		Quota:     runner.DefaultQuota,
		Fallback:  game.Fallback.String(),
		Isolation: IsolationGoroutine,
		Programs: map[string]string{
			string(game.Black): "builtin:idle",
			string(game.White): "builtin:idle",
		},
		LogLevel:  "info",
		Transport: Transport{Kind: TransportStdio},
	}
}

// Load reads path over the defaults. The document is checked against the embedded schema
// before it is decoded, and the result is validated.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	c, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Parse(raw []byte) (Config, error) {
	c := Default()
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return c, err
	}
	if doc != nil {
		if err := checkSchema(doc); err != nil {
			return c, err
		}
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("config.schema.json", schemaSource)
	})
	return schema, schemaErr
}

// checkSchema validates a decoded YAML document. It goes through JSON first so the
// validator sees JSON types.
func checkSchema(doc any) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Validate checks what the schema cannot express. Flag overrides go through it too.
func (c Config) Validate() error {
	var problems []string
	if c.Timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.Grace < 0 {
		problems = append(problems, "grace must not be negative")
	}
	if c.Quota < 0 {
		problems = append(problems, "quota must not be negative")
	}
	if _, err := game.ParseAction(c.Fallback); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Isolation != IsolationGoroutine && c.Isolation != IsolationProcess {
		problems = append(problems, fmt.Sprintf("unknown isolation %q", c.Isolation))
	}
	for side := range c.Programs {
		if _, err := game.ParsePlayerIdentity(side); err != nil {
			problems = append(problems, err.Error())
		}
	}
	switch c.Transport.Kind {
	case TransportStdio:
	case TransportWebSocket:
		if c.Transport.URL == "" {
			problems = append(problems, "websocket transport needs a url")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown transport %q", c.Transport.Kind))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) RunnerOptions() []runner.Option {
	fallback, err := game.ParseAction(c.Fallback)
	if err != nil {
		fallback = game.Fallback
	}
	refs, _ := c.programRefs()
	return []runner.Option{
		runner.WithTimeout(c.Timeout),
		runner.WithGrace(c.Grace),
		runner.WithQuota(c.Quota),
		runner.WithFallback(fallback),
		runner.WithPrograms(refs),
	}
}

// Runner builds the configured runner. Process isolation re-executes the running binary.
func (c Config) Runner(programs *program.Registry) (runner.Runner, error) {
	if c.Isolation == IsolationProcess {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate executable: %w", err)
		}
		return runner.NewProcess(exe, nil, c.RunnerOptions()...), nil
	}
	return runner.NewLocal(programs, c.RunnerOptions()...), nil
}

// Registry loads the program bound to each side.
func (c Config) Registry() (*program.Registry, error) {
	refs, err := c.programRefs()
	if err != nil {
		return nil, err
	}
	return program.LoadRegistry(refs)
}

func (c Config) programRefs() (map[game.PlayerIdentity]string, error) {
	refs := make(map[game.PlayerIdentity]string, len(c.Programs))
	for side, ref := range c.Programs {
		id, err := game.ParsePlayerIdentity(side)
		if err != nil {
			return nil, err
		}
		refs[id] = ref
	}
	return refs, nil
}
