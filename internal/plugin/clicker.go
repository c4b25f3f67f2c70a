package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"
)

// ActionClick is the plugin action that moves the pointer and clicks.
const ActionClick = "click"

// Clicker presses a screen position after gliding the pointer there over travel.
type Clicker interface {
	Click(ctx context.Context, at image.Point, travel time.Duration) error
}

// PluginClicker delegates clicks to a discovered plugin.
type PluginClicker struct {
	manager  *Manager
	executor *Executor
	name     string
}

// NewPluginClicker creates a Clicker backed by the named plugin.
func NewPluginClicker(manager *Manager, executor *Executor, name string) *PluginClicker {
	return &PluginClicker{
		manager:  manager,
		executor: executor,
		name:     name,
	}
}

// Click implements Clicker. The plugin directory is rescanned once when the
// plugin is not known yet.
func (c *PluginClicker) Click(ctx context.Context, at image.Point, travel time.Duration) error {
	plug, err := c.manager.Get(c.name)
	if errors.Is(err, ErrPluginNotFound) {
		if derr := c.manager.Discover(); derr != nil {
			return fmt.Errorf("discover plugins: %w", derr)
		}
		plug, err = c.manager.Get(c.name)
	}
	if err != nil {
		return err
	}
	if !plug.Manifest.Supports(ActionClick) {
		return fmt.Errorf("plugin %s does not support %q", c.name, ActionClick)
	}

	params, err := json.Marshal(ClickParams{X: at.X, Y: at.Y, MoveMs: int(travel.Milliseconds())})
	if err != nil {
		return fmt.Errorf("failed to marshal click params: %w", err)
	}

	resp, err := c.executor.Execute(ctx, plug, &Request{Action: ActionClick, Params: params})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("plugin %s click failed: %s", c.name, resp.Error)
	}
	return nil
}

// MockClicker records clicks for testing.
type MockClicker struct {
	mu      sync.Mutex
	clicks  []image.Point
	travels []time.Duration
	err     error
}

// NewMockClicker creates a new MockClicker.
func NewMockClicker() *MockClicker {
	return &MockClicker{}
}

// SetError makes subsequent clicks fail with err.
func (m *MockClicker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Click records the position and travel time.
func (m *MockClicker) Click(ctx context.Context, at image.Point, travel time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.clicks = append(m.clicks, at)
	m.travels = append(m.travels, travel)
	return nil
}

// Clicks returns the recorded positions.
func (m *MockClicker) Clicks() []image.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]image.Point(nil), m.clicks...)
}

// Travels returns the recorded travel times in click order.
func (m *MockClicker) Travels() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.travels...)
}
