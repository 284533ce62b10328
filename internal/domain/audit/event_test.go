package audit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, n int) []*Event {
	t.Helper()

	events := make([]*Event, 0, n)
	prev := GenesisHash
	for i := 0; i < n; i++ {
		ev, err := NewEvent(EventCommissionRecorded, "commission", uuid.NewString(), uuid.New(),
			map[string]string{"amount": "100"}, "corr-1")
		require.NoError(t, err)
		require.NoError(t, ev.Seal(prev, int64(i+1)))
		prev = ev.Hash
		events = append(events, ev)
	}
	return events
}

func TestSeal(t *testing.T) {
	ev, err := NewEvent(EventInvestmentCreated, "investment", uuid.NewString(), uuid.New(),
		map[string]string{"amount": "5000"}, "corr-42")
	require.NoError(t, err)

	require.NoError(t, ev.Seal(GenesisHash, 1))

	assert.Equal(t, GenesisHash, ev.PreviousHash)
	assert.Equal(t, int64(1), ev.Sequence)
	assert.Len(t, ev.Hash, 64)

	recomputed, err := ev.ComputeHash()
	require.NoError(t, err)
	assert.Equal(t, ev.Hash, recomputed)
}

func TestVerifyChain(t *testing.T) {
	t.Run("empty chain is intact", func(t *testing.T) {
		assert.Nil(t, VerifyChain(nil))
	})

	t.Run("intact chain", func(t *testing.T) {
		events := buildChain(t, 5)
		assert.Nil(t, VerifyChain(events))
	})

	t.Run("tampered payload breaks the chain at the edited event", func(t *testing.T) {
		events := buildChain(t, 5)
		events[2].Payload = []byte(`{"amount":"999999"}`)

		br := VerifyChain(events)
		require.NotNil(t, br)
		assert.Equal(t, int64(3), br.Sequence)
		assert.Equal(t, events[2].ID, br.EventID)
		assert.Equal(t, "stored hash mismatch", br.Reason)
	})

	t.Run("recomputed hash on a tampered event breaks the next link", func(t *testing.T) {
		events := buildChain(t, 3)
		events[1].Payload = []byte(`{"amount":"999999"}`)
		h, err := events[1].ComputeHash()
		require.NoError(t, err)
		events[1].Hash = h

		br := VerifyChain(events)
		require.NotNil(t, br)
		assert.Equal(t, int64(3), br.Sequence)
		assert.Equal(t, "previous hash mismatch", br.Reason)
	})

	t.Run("first event must link to the genesis hash", func(t *testing.T) {
		events := buildChain(t, 2)
		events[0].PreviousHash = "deadbeef"

		br := VerifyChain(events)
		require.NotNil(t, br)
		assert.Equal(t, int64(1), br.Sequence)
	})
}
