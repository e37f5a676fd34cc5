package agent

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tradeagent/internal/llm"
	"tradeagent/internal/tool"

	"github.com/pkg/errors"
)

// DefaultPersona is used when a connection has not picked an avatar
const DefaultPersona = "Misha"

// ErrUnknownPersona is returned for avatar names with no prompt on disk
var ErrUnknownPersona = errors.New("unknown persona")

// Persona is one avatar directory: avatars/<name>/prompts/system.txt
// and avatars/<name>/images/portrait.jpg
type Persona struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system"`
	Portrait     string `json:"portrait"`
}

// LoadPersona reads a single avatar
func LoadPersona(dir, name string) (*Persona, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, errors.Wrapf(ErrUnknownPersona, "invalid name %q", name)
	}

	prompt, err := os.ReadFile(filepath.Join(dir, name, "prompts", "system.txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrUnknownPersona, "%s", name)
		}
		return nil, errors.Wrapf(err, "read persona %s", name)
	}

	return &Persona{
		Name:         name,
		SystemPrompt: string(prompt),
		Portrait:     filepath.ToSlash(filepath.Join(dir, name, "images", "portrait.jpg")),
	}, nil
}

// ListPersonas reads every avatar directory, sorted by name
func ListPersonas(dir string) ([]Persona, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "list avatars")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	personas := make([]Persona, 0, len(names))
	for _, name := range names {
		p, err := LoadPersona(dir, name)
		if err != nil {
			return nil, err
		}
		personas = append(personas, *p)
	}
	return personas, nil
}

// Factory builds loops for personas that share one model client and tool set
type Factory interface {
	CreateLoop(persona string) (*Loop, error)
}

// DefaultFactory loads persona prompts from an avatars directory
type DefaultFactory struct {
	avatarsDir string
	llmClient  llm.Client
	executor   *tool.Executor
	config     *Config
	opts       []Option
}

func NewDefaultFactory(avatarsDir string, client llm.Client, executor *tool.Executor, cfg *Config, opts ...Option) *DefaultFactory {
	return &DefaultFactory{
		avatarsDir: avatarsDir,
		llmClient:  client,
		executor:   executor,
		config:     cfg,
		opts:       opts,
	}
}

// CreateLoop builds a loop whose system prompt is the persona's prompt
// followed by the registry's tool guidance
func (f *DefaultFactory) CreateLoop(persona string) (*Loop, error) {
	if persona == "" {
		persona = DefaultPersona
	}

	p, err := LoadPersona(f.avatarsDir, persona)
	if err != nil {
		return nil, err
	}

	prompt := p.SystemPrompt
	if bp := f.executor.Registry().BestPractices(); bp != "" {
		prompt = strings.TrimRight(prompt, "\n") + "\n\n" + bp
	}

	cfg := *DefaultConfig()
	if f.config != nil {
		cfg = *f.config
	}
	return NewLoop(p.Name, prompt, f.llmClient, f.executor, &cfg, f.opts...), nil
}
