package chathub_test

import (
	"context"
	"sync"

	"pulse/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// testClient is a Client backed by a plain buffered channel.
type testClient struct {
	id     string
	userID string
	send   chan models.Envelope

	mu     sync.Mutex
	closed bool
}

func newTestClient(id, userID string) *testClient {
	return newTestClientSize(id, userID, 16)
}

func newTestClientSize(id, userID string, size int) *testClient {
	return &testClient{id: id, userID: userID, send: make(chan models.Envelope, size)}
}

func (c *testClient) ID() string                             { return c.id }
func (c *testClient) UserID() string                         { return c.userID }
func (c *testClient) GetSendChannel() chan<- models.Envelope { return c.send }

func (c *testClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *testClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain returns everything queued so far without blocking.
func (c *testClient) drain() []models.Envelope {
	var out []models.Envelope
	for {
		select {
		case env, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func ofType(envs []models.Envelope, t models.EventType) []models.Envelope {
	var out []models.Envelope
	for _, env := range envs {
		if env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

type MockPresence struct {
	mock.Mock
}

func (m *MockPresence) MarkOnline(ctx context.Context, userID, sessionID string) error {
	args := m.Called(ctx, userID, sessionID)
	return args.Error(0)
}

func (m *MockPresence) MarkOffline(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) Record(ctx context.Context, env models.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

// gatedPresence keeps the online set in memory. MarkOffline announces itself
// on entered and then waits for release.
type gatedPresence struct {
	mu      sync.Mutex
	online  map[string]bool
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedPresence() *gatedPresence {
	return &gatedPresence{
		online:  make(map[string]bool),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (p *gatedPresence) MarkOnline(_ context.Context, userID, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[userID] = true
	return nil
}

func (p *gatedPresence) MarkOffline(_ context.Context, userID string) error {
	p.once.Do(func() { close(p.entered) })
	<-p.release

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.online, userID)
	return nil
}

func (p *gatedPresence) isOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[userID]
}
