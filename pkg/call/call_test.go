package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOutgoingLifecycle проверяет полный путь исходящего звонка:
// outgoing -> ringing -> accepted -> in_call -> ended.
func TestOutgoingLifecycle(t *testing.T) {
	c := NewOutgoing("bob", MediaVoice)
	assert.Equal(t, StatusOutgoing, c.Status())
	assert.Equal(t, DirectionOutgoing, c.Direction())
	assert.Equal(t, MediaVoice, c.Kind())
	assert.Equal(t, "bob", c.PeerID())
	assert.Empty(t, c.ID(), "идентификатор появляется только после Bind")

	require.NoError(t, c.Bind("c1"))
	assert.Equal(t, StatusRinging, c.Status())
	assert.Equal(t, "c1", c.ID())

	require.NoError(t, c.RemoteAccepted())
	assert.Equal(t, StatusAccepted, c.Status())

	require.NoError(t, c.MediaReady())
	assert.Equal(t, StatusInCall, c.Status())

	require.NoError(t, c.End())
	assert.Equal(t, StatusEnded, c.Status())
	assert.True(t, c.Status().Terminal())
}

// TestIncomingLifecycle проверяет путь входящего звонка:
// incoming -> accepted -> in_call.
func TestIncomingLifecycle(t *testing.T) {
	c := NewIncoming("c2", "alice", MediaVideo)
	assert.Equal(t, StatusIncoming, c.Status())
	assert.Equal(t, DirectionIncoming, c.Direction())
	assert.Equal(t, "c2", c.ID())

	require.NoError(t, c.LocalAccepted())
	assert.Equal(t, StatusAccepted, c.Status())
	require.NoError(t, c.MediaReady())
	assert.Equal(t, StatusInCall, c.Status())
}

// TestInvalidTransitions проверяет отбраковку недопустимых переходов.
func TestInvalidTransitions(t *testing.T) {
	t.Run("accept_ok для исходящего", func(t *testing.T) {
		c := NewOutgoing("bob", MediaVoice)
		assert.Error(t, c.LocalAccepted())
		assert.Equal(t, StatusOutgoing, c.Status(), "неудачный переход не меняет статус")
	})

	t.Run("media_ready до accepted", func(t *testing.T) {
		c := NewOutgoing("bob", MediaVoice)
		assert.Error(t, c.MediaReady())
	})

	t.Run("события после ended", func(t *testing.T) {
		c := NewIncoming("c3", "alice", MediaVoice)
		require.NoError(t, c.End())
		assert.Error(t, c.End(), "терминальный статус окончателен")
		assert.Error(t, c.Fail())
		assert.Error(t, c.LocalAccepted())
		assert.Equal(t, StatusEnded, c.Status())
	})

	t.Run("повторный Bind", func(t *testing.T) {
		c := NewOutgoing("bob", MediaVoice)
		require.NoError(t, c.Bind("c4"))
		assert.Error(t, c.Bind("c5"))
		assert.Equal(t, "c4", c.ID())
	})
}

// TestFailFromAnyNonTerminal проверяет переход в failed.
func TestFailFromAnyNonTerminal(t *testing.T) {
	c := NewOutgoing("bob", MediaVoice)
	require.NoError(t, c.Bind("c6"))
	require.NoError(t, c.RemoteAccepted())
	require.NoError(t, c.Fail())
	assert.Equal(t, StatusFailed, c.Status())
	assert.True(t, c.Status().Terminal())
}

// TestMatchesID события с чужим идентификатором не относятся к звонку.
func TestMatchesID(t *testing.T) {
	c := NewOutgoing("bob", MediaVoice)
	assert.False(t, c.MatchesID(""), "пустой идентификатор никогда не совпадает")
	assert.False(t, c.MatchesID("c7"))
	require.NoError(t, c.Bind("c7"))
	assert.True(t, c.MatchesID("c7"))
	assert.False(t, c.MatchesID("другой"))
}

// TestComputeAffordances таблица доступных действий по статусу и
// направлению.
func TestComputeAffordances(t *testing.T) {
	tests := []struct {
		name      string
		status    Status
		direction Direction
		want      Affordances
	}{
		{"входящий ожидает решения", StatusIncoming, DirectionIncoming, Affordances{CanAccept: true, CanReject: true}},
		{"исходящий до ответа", StatusOutgoing, DirectionOutgoing, Affordances{CanCancel: true}},
		{"исходящий звонит", StatusRinging, DirectionOutgoing, Affordances{CanCancel: true}},
		{"подтвержден", StatusAccepted, DirectionOutgoing, Affordances{CanHangup: true}},
		{"разговор входящего", StatusInCall, DirectionIncoming, Affordances{CanHangup: true}},
		{"завершен", StatusEnded, DirectionOutgoing, Affordances{}},
		{"ошибка", StatusFailed, DirectionIncoming, Affordances{}},
		{"несогласованная пара", StatusIncoming, DirectionOutgoing, Affordances{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeAffordances(tt.status, tt.direction))
		})
	}
}

// TestHolder операции над активным звонком.
func TestHolder(t *testing.T) {
	h := NewHolder()
	assert.Nil(t, h.Get())
	h.Clear() // пустой holder безопасен

	c := NewOutgoing("bob", MediaVoice)
	h.Set(c)
	assert.Same(t, c, h.Get())
	h.Clear()
	assert.Nil(t, h.Get())
}
