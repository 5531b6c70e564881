package chathub_test

import (
	"encoding/json"
	"sync"

	"omechat/backend/internal/chathub"
	"omechat/backend/internal/models"
)

// MockClient records every frame the hub sends it.
type MockClient struct {
	sessionID string
	attrs     chathub.Attributes

	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	failSend bool
}

func newMockClient(sessionID string) *MockClient {
	return &MockClient{sessionID: sessionID}
}

func newMockClientWithAttrs(sessionID string, attrs chathub.Attributes) *MockClient {
	return &MockClient{sessionID: sessionID, attrs: attrs}
}

func (c *MockClient) GetSessionID() string              { return c.sessionID }
func (c *MockClient) GetAttributes() chathub.Attributes { return c.attrs }

func (c *MockClient) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return chathub.ErrClientClosed
	}
	if c.failSend {
		return chathub.ErrSendBufferFull
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockClient) Frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// MessagesOfType decodes the received frames of one type, oldest first.
func (c *MockClient) MessagesOfType(t models.MessageType) []map[string]any {
	var out []map[string]any
	for _, f := range c.Frames() {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			continue
		}
		if m["type"] == string(t) {
			out = append(out, m)
		}
	}
	return out
}
