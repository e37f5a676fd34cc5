package mcp

import (
	"context"
	"sort"
	"sync"

	"tradeagent/internal/config"
	"tradeagent/internal/logger"
	"tradeagent/internal/tool"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Manager coordinates multiple MCP servers and registers their tools
type Manager struct {
	clients  map[string]*Client
	registry *tool.Registry
	log      *logger.Logger
	mu       sync.RWMutex
}

func NewManager(registry *tool.Registry, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		clients:  make(map[string]*Client),
		registry: registry,
		log:      log,
	}
}

// Initialize starts all enabled servers concurrently. A server that fails
// is logged and skipped; an error is returned only when every server failed.
func (m *Manager) Initialize(ctx context.Context, cfg config.MCPConfig) error {
	var enabled []config.MCPServerConfig
	for _, s := range cfg.Servers {
		if !s.Disabled {
			enabled = append(enabled, s)
		}
	}
	if len(enabled) == 0 {
		return nil
	}

	errs := make([]error, len(enabled))
	var g errgroup.Group
	for i, s := range enabled {
		g.Go(func() error {
			client, err := NewClient(ctx, s.Name, s.Command, s.Args, serverEnv(s.Env))
			if err != nil {
				errs[i] = errors.Wrapf(err, "server %s", s.Name)
				return nil
			}
			if err := m.Attach(client); err != nil {
				client.Close()
				errs[i] = errors.Wrapf(err, "server %s", s.Name)
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			m.log.Warn("MCP %v", err)
		}
	}
	if failed == len(enabled) {
		return errors.Errorf("all %d MCP servers failed to initialize", failed)
	}
	return nil
}

// serverEnv resolves ${VAR} references in a server's environment
func serverEnv(env map[string]string) map[string]string {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = config.ExpandEnv(v)
	}
	return out
}

// Attach registers every tool of a connected client
func (m *Manager) Attach(client *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[client.Name()]; exists {
		return errors.Errorf("duplicate server name: %s", client.Name())
	}

	for _, t := range client.Tools() {
		adapter := NewToolAdapter(client, t)
		if err := m.registry.Register(adapter); err != nil {
			return errors.Wrapf(err, "failed to register tool %s", adapter.Name())
		}
	}

	m.clients[client.Name()] = client
	m.log.Info("MCP server %s: %d tools", client.Name(), len(client.Tools()))
	return nil
}

// Close shuts down all MCP servers
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var g errgroup.Group
	for name, c := range m.clients {
		g.Go(func() error {
			return errors.Wrapf(c.Close(), "server %s", name)
		})
	}
	err := g.Wait()
	m.clients = make(map[string]*Client)
	return err
}

// ListServers returns all active server names
func (m *Manager) ListServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServerCount returns the number of active servers
func (m *Manager) ServerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
