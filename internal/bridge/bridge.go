package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/infrastructure/monitoring"
	"github.com/0xhank/casper/internal/shared/id"
	"github.com/0xhank/casper/internal/shared/types"
)

// Bridge mounts generated content into isolated runtimes and tracks their
// lifecycles. Each mount owns one runtime, one mailbox, and a library-load
// flag; host and runtime communicate only through the mailbox.
type Bridge struct {
	renderer *Renderer
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	timeout  time.Duration

	mu     sync.Mutex
	mounts map[id.MountID]*Mount
}

// New creates a bridge
func New(metrics *monitoring.Metrics, logger *zap.Logger) *Bridge {
	return &Bridge{
		renderer: NewRenderer(),
		metrics:  metrics,
		logger:   logger.Named("bridge"),
		timeout:  5 * time.Second,
		mounts:   make(map[id.MountID]*Mount),
	}
}

// Mount is one live rendering of generated content
type Mount struct {
	ID id.MountID

	bridge  *Bridge
	mailbox *Mailbox

	mu              sync.Mutex
	content         *types.GeneratedContent
	runtime         *Runtime
	librariesLoaded bool
	closed          bool
}

// Mount renders content into a fresh isolated runtime. The initial state is
// seeded before the component script executes.
func (b *Bridge) Mount(ctx context.Context, content *types.GeneratedContent, state types.ComponentState) (*Mount, error) {
	if content == nil || !content.HasCode() {
		return nil, fmt.Errorf("content has no renderable code")
	}

	mount := &Mount{
		ID:      id.NewMountID(),
		bridge:  b,
		mailbox: NewMailbox(16),
		content: content,
	}
	runtime, err := mount.buildRuntime(ctx, content, state)
	if err != nil {
		mount.mailbox.Close()
		return nil, err
	}
	mount.runtime = runtime

	b.mu.Lock()
	b.mounts[mount.ID] = mount
	active := len(b.mounts)
	b.mu.Unlock()
	b.metrics.SetMountsActive(active)

	b.logger.Info("content mounted",
		zap.String("mount_id", string(mount.ID)),
		zap.String("intent", string(content.Type)),
	)
	return mount, nil
}

// Get returns a mount by id
func (b *Bridge) Get(mountID id.MountID) (*Mount, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	mount, ok := b.mounts[mountID]
	return mount, ok
}

func (b *Bridge) release(mountID id.MountID) {
	b.mu.Lock()
	delete(b.mounts, mountID)
	active := len(b.mounts)
	b.mu.Unlock()
	b.metrics.SetMountsActive(active)
}

// buildRuntime constructs and executes a runtime for the given content,
// reusing the mount's mailbox.
func (m *Mount) buildRuntime(ctx context.Context, content *types.GeneratedContent, state types.ComponentState) (*Runtime, error) {
	dom, err := NewDOM(m.bridge.renderer.Sanitize(content.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated markup: %w", err)
	}

	runtime, err := NewRuntime(dom, m.mailbox, m.bridge.timeout, m.bridge.logger)
	if err != nil {
		return nil, err
	}

	// Seed state before the script observes it
	runtime.SeedState(state)
	if content.JS != "" {
		if err := runtime.Execute(ctx, content.JS); err != nil {
			runtime.Close()
			return nil, err
		}
	}
	return runtime, nil
}

// Messages returns the mount's sandbox-to-host mailbox
func (m *Mount) Messages() <-chan types.BridgeMessage {
	return m.mailbox.Messages()
}

// State returns the runtime's current component state
func (m *Mount) State() types.ComponentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runtime.State()
}

// Document renders the iframe document for the mount's current content. The
// library preamble is included on the first render only; later renders reuse
// the scripts the frame already loaded.
func (m *Mount) Document(state types.ComponentState) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	includeLibraries := !m.librariesLoaded
	doc, err := m.bridge.renderer.Document(m.content, state, includeLibraries)
	if err != nil {
		return "", err
	}
	m.librariesLoaded = true
	return doc, nil
}

// Update swaps in new generated content, rebuilding the runtime while
// keeping the mailbox and the library-load flag.
func (m *Mount) Update(ctx context.Context, content *types.GeneratedContent, state types.ComponentState) error {
	if content == nil || !content.HasCode() {
		return fmt.Errorf("content has no renderable code")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mount is closed")
	}

	runtime, err := m.buildRuntime(ctx, content, state)
	if err != nil {
		return err
	}
	m.runtime.Close()
	m.runtime = runtime
	m.content = content
	return nil
}

// PushState installs the host's canonical state and re-runs the component's
// render logic. No STATE_UPDATE is echoed back for the push itself.
func (m *Mount) PushState(ctx context.Context, state types.ComponentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mount is closed")
	}
	m.runtime.SetHostState(state)
	return m.runtime.Rerun(ctx)
}

// Dispatch simulates an event on an element inside the runtime
func (m *Mount) Dispatch(elementID, event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("mount is closed")
	}
	return m.runtime.Dispatch(elementID, event)
}

// Close releases the runtime and mailbox and deregisters the mount
func (m *Mount) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.runtime.Close()
	m.mailbox.Close()
	m.mu.Unlock()

	m.bridge.release(m.ID)
	m.bridge.logger.Debug("mount closed", zap.String("mount_id", string(m.ID)))
}
