package sessions

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/cbodonnell/rally/pkg/game"
	"github.com/cbodonnell/rally/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu        sync.Mutex
	frames    []interface{}
	alive     bool
	closed    bool
	closeCode int
}

func newFakeConn() *fakeConn {
	return &fakeConn{alive: true}
}

func (c *fakeConn) Send(frame interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCode = code
	c.alive = false
}

func (c *fakeConn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *fakeConn) state() (closed bool, code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode
}

func (c *fakeConn) frameTypes(t *testing.T) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var types []string
	for _, frame := range c.frames {
		b, err := json.Marshal(frame)
		require.NoError(t, err)
		var envelope struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(b, &envelope))
		types = append(types, envelope.Type)
	}
	return types
}

func (c *fakeConn) hasFrameType(t *testing.T, want string) bool {
	for _, ft := range c.frameTypes(t) {
		if ft == want {
			return true
		}
	}
	return false
}

func newTestSession(username string) (*Session, *fakeConn, *registry.Registry) {
	r := registry.NewRegistry(registry.NewRegistryOptions{
		Geometry: game.DefaultGeometry(),
	})
	conn := newFakeConn()
	s := NewSession(NewSessionOptions{
		Registry: r,
		Conn:     conn,
		Username: username,
	})
	return s, conn, r
}

func TestSession_JoinMatch(t *testing.T) {
	s, conn, _ := newTestSession("alice")

	require.NoError(t, s.JoinMatch(1))
	assert.Equal(t, []string{"success", "waiting"}, conn.frameTypes(t))
	closed, _ := conn.state()
	assert.False(t, closed)
}

func TestSession_JoinFullMatch(t *testing.T) {
	s1, _, r := newTestSession("alice")
	require.NoError(t, s1.JoinMatch(1))

	c2 := newFakeConn()
	s2 := NewSession(NewSessionOptions{Registry: r, Conn: c2, Username: "bob"})
	require.NoError(t, s2.JoinMatch(1))

	c3 := newFakeConn()
	s3 := NewSession(NewSessionOptions{Registry: r, Conn: c3, Username: "carol"})
	require.Error(t, s3.JoinMatch(1))

	assert.True(t, c3.hasFrameType(t, "error"))
	closed, code := c3.state()
	assert.True(t, closed)
	assert.Equal(t, CloseNormal, code)
}

func TestSession_MatchmakeDuplicateSession(t *testing.T) {
	s1, _, r := newTestSession("alice")
	require.NoError(t, s1.Matchmake())

	c2 := newFakeConn()
	s2 := NewSession(NewSessionOptions{Registry: r, Conn: c2, Username: "alice"})
	require.Error(t, s2.Matchmake())

	assert.True(t, c2.hasFrameType(t, "error"))
	closed, code := c2.state()
	assert.True(t, closed)
	assert.Equal(t, CloseNormal, code)
}

func TestSession_HandleMessageMalformed(t *testing.T) {
	s, conn, _ := newTestSession("alice")
	require.NoError(t, s.JoinMatch(1))

	s.HandleMessage([]byte("{not json"))

	assert.True(t, conn.hasFrameType(t, "error"))
	closed, code := conn.state()
	assert.True(t, closed)
	assert.Equal(t, CloseProtocolError, code)
}

func TestSession_HandleMessageInvalidInput(t *testing.T) {
	s, conn, _ := newTestSession("alice")
	require.NoError(t, s.JoinMatch(1))

	// Parses but fails validation: the connection stays open.
	s.HandleMessage([]byte(`{"type":"input","inputType":"keydown","key":"left"}`))

	assert.True(t, conn.hasFrameType(t, "error"))
	closed, _ := conn.state()
	assert.False(t, closed)
}

func TestSession_HandleMessageIgnoresUnknownTypes(t *testing.T) {
	s, conn, _ := newTestSession("alice")
	require.NoError(t, s.JoinMatch(1))
	before := len(conn.frameTypes(t))

	s.HandleMessage([]byte(`{"type":"chat","text":"hello"}`))

	assert.Len(t, conn.frameTypes(t), before, "non-input frames are dropped silently")
	closed, _ := conn.state()
	assert.False(t, closed)
}

func TestSession_HandleMessageValidInput(t *testing.T) {
	s, conn, _ := newTestSession("alice")
	require.NoError(t, s.JoinMatch(1))
	before := len(conn.frameTypes(t))

	s.HandleMessage([]byte(`{"type":"input","inputType":"keydown","key":"up"}`))
	s.HandleMessage([]byte(`{"type":"input","inputType":"keyup","key":"up"}`))

	assert.Len(t, conn.frameTypes(t), before, "valid input produces no reply")
	closed, _ := conn.state()
	assert.False(t, closed)
}

func TestSession_HandleDisconnect(t *testing.T) {
	s, conn, r := newTestSession("alice")
	require.NoError(t, s.Matchmake())

	s.HandleDisconnect()
	s.HandleDisconnect()

	// The slot is free again, so a different user opens a fresh match
	// instead of pairing with the departed one.
	result, err := r.FindOrCreateForMatchmaking(newFakeConn(), "bob")
	require.NoError(t, err)
	assert.True(t, result.Created)

	closed, _ := conn.state()
	assert.False(t, closed, "disconnect handling never writes to the dead connection")
}
