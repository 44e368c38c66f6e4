package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withEvents(t *testing.T) {
	t.Helper()
	require.True(t, EventInitialize())
	t.Cleanup(func() { _ = EventShutdown() })
}

func TestEventRegisterFire(t *testing.T) {
	withEvents(t)

	type listener struct{ calls int }
	a, b := &listener{}, &listener{}
	onEvent := func(code SystemEventCode, sender, inst interface{}, data EventContext) bool {
		inst.(*listener).calls++
		return false
	}

	assert.True(t, EventRegister(EVENT_CODE_RESIZED, a, onEvent))
	assert.True(t, EventRegister(EVENT_CODE_RESIZED, b, onEvent))
	assert.False(t, EventRegister(EVENT_CODE_RESIZED, a, onEvent), "duplicate listener")

	assert.False(t, EventFire(EVENT_CODE_RESIZED, nil, EventContext{}))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	assert.True(t, EventUnregister(EVENT_CODE_RESIZED, a))
	assert.False(t, EventUnregister(EVENT_CODE_RESIZED, a))
	EventFire(EVENT_CODE_RESIZED, nil, EventContext{})
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 2, b.calls)
}

func TestEventHandledStopsPropagation(t *testing.T) {
	withEvents(t)

	second := false
	EventRegister(EVENT_CODE_KEY_PRESSED, "first", func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		return true
	})
	EventRegister(EVENT_CODE_KEY_PRESSED, "second", func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		second = true
		return false
	})
	assert.True(t, EventFire(EVENT_CODE_KEY_PRESSED, nil, EventContext{}))
	assert.False(t, second)
}

func TestEventsRequireInitialize(t *testing.T) {
	assert.False(t, EventRegister(EVENT_CODE_RESIZED, nil, func(SystemEventCode, interface{}, interface{}, EventContext) bool { return false }))
	assert.False(t, EventFire(EVENT_CODE_RESIZED, nil, EventContext{}))
}

func TestInputProcessKeyFiresOnTransition(t *testing.T) {
	withEvents(t)
	require.NoError(t, InputInitialize())
	t.Cleanup(func() { _ = InputShutdown() })

	var pressed []KeyCode
	EventRegister(EVENT_CODE_KEY_PRESSED, t, func(code SystemEventCode, sender, inst interface{}, data EventContext) bool {
		pressed = append(pressed, KeyCode(data.Data.U16[0]))
		return true
	})

	require.NoError(t, InputProcessKey(KEY_2, true))
	require.NoError(t, InputProcessKey(KEY_2, true))
	assert.Equal(t, []KeyCode{KEY_2}, pressed)
	assert.True(t, InputIsKeyDown(KEY_2))
	assert.True(t, InputWasKeyUp(KEY_2))

	require.NoError(t, InputUpdate(0.016))
	assert.True(t, InputWasKeyDown(KEY_2))
	require.NoError(t, InputProcessKey(KEY_2, false))
	assert.True(t, InputIsKeyUp(KEY_2))
}

func TestKeyCodeFromName(t *testing.T) {
	tests := []struct {
		name string
		want KeyCode
		ok   bool
	}{
		{"1", KEY_1, true},
		{"0", KEY_0, true},
		{"f", KEY_F, true},
		{"Z", KEY_Z, true},
		{"f5", KEY_F5, true},
		{"F12", KEY_F12, true},
		{" space ", KEY_SPACE, true},
		{"escape", KEY_ESCAPE, true},
		{"f13", 0, false},
		{"fx", 0, false},
		{"", 0, false},
		{"?", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := KeyCodeFromName(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentifierReuse(t *testing.T) {
	owner := &struct{ name string }{"a"}
	id := IdentifierAquireNewID(owner)
	assert.Same(t, owner, IdentifierOwner(id))

	require.NoError(t, IdentifierReleaseID(id))
	assert.Nil(t, IdentifierOwner(id))
	assert.Equal(t, id, IdentifierAquireNewID("b"))
	require.NoError(t, IdentifierReleaseID(id))

	assert.Error(t, IdentifierReleaseID(1<<30))
}

func TestMetricsAverage(t *testing.T) {
	require.NoError(t, MetricsInitialize())
	for i := 0; i < int(AVG_COUNT); i++ {
		MetricsUpdate(0.02)
	}
	assert.InDelta(t, 20.0, MetricsFrameTime(), 1e-9)

	for i := 0; i < 25; i++ {
		MetricsUpdate(0.02)
	}
	fps, _ := MetricsFrame()
	assert.InDelta(t, 50.0, fps, 1.0)
}

func TestSetLogLevel(t *testing.T) {
	assert.NoError(t, SetLogLevel("debug"))
	assert.Error(t, SetLogLevel("chatty"))
	assert.NoError(t, SetLogLevel("info"))
}
