package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreBeginAndEnd(t *testing.T) {
	s := NewStore()
	k := Key{UserID: 1, ChatID: 10}

	assert.False(t, s.Active(k))

	s.Do(k, func(conv *Conversation) *Conversation {
		require.Nil(t, conv)
		return NewConversation("registration", "handle")
	})
	assert.True(t, s.Active(k))
	assert.Equal(t, 1, s.Len())

	s.End(k)
	assert.False(t, s.Active(k))
	assert.Equal(t, 0, s.Len())
}

func TestStoreScratchSurvivesSteps(t *testing.T) {
	s := NewStore()
	k := Key{UserID: 2, ChatID: 20}

	s.Do(k, func(conv *Conversation) *Conversation {
		conv = NewConversation("login", "handle")
		conv.Put("handle", "alice")
		return conv
	})
	s.Do(k, func(conv *Conversation) *Conversation {
		require.NotNil(t, conv)
		assert.Equal(t, "alice", conv.Value("handle"))
		conv.Step = "secret"
		return conv
	})

	snap, ok := s.Snapshot(k)
	require.True(t, ok)
	assert.Equal(t, Step("secret"), snap.Step)
	assert.Equal(t, "alice", snap.Scratch["handle"])
}

func TestStoreKeysAreIndependent(t *testing.T) {
	s := NewStore()
	a := Key{UserID: 1, ChatID: 10}
	b := Key{UserID: 1, ChatID: 11}

	s.Do(a, func(*Conversation) *Conversation {
		return NewConversation("registration", "handle")
	})

	assert.True(t, s.Active(a))
	assert.False(t, s.Active(b), "same user in another chat has no dialog")
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	k := Key{UserID: 3, ChatID: 30}

	s.Do(k, func(conv *Conversation) *Conversation {
		conv = NewConversation("calculator", "city")
		conv.Put("weight", "2.5")
		return conv
	})

	snap, ok := s.Snapshot(k)
	require.True(t, ok)
	snap.Scratch["weight"] = "mutated"

	again, _ := s.Snapshot(k)
	assert.Equal(t, "2.5", again.Scratch["weight"])
}

func TestStoreSerializesPerKey(t *testing.T) {
	s := NewStore()
	k := Key{UserID: 4, ChatID: 40}

	s.Do(k, func(*Conversation) *Conversation {
		c := NewConversation("counter", "step")
		c.Put("n", "0")
		return c
	})

	const workers = 32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			s.Do(k, func(conv *Conversation) *Conversation {
				n := conv.Value("n")
				// read-modify-write must not race under Do
				conv.Put("n", n+"x")
				return conv
			})
		}()
	}
	wg.Wait()

	snap, ok := s.Snapshot(k)
	require.True(t, ok)
	assert.Len(t, snap.Scratch["n"], 1+workers)
}

func TestStoreEndWithoutConversation(t *testing.T) {
	s := NewStore()
	s.End(Key{UserID: 9, ChatID: 90})
	assert.Equal(t, 0, s.Len())
}
