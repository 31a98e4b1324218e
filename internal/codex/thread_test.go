package codex

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xotten/portfolio/internal/kv"
)

type ownerFlag bool

func (o ownerFlag) Enabled() bool { return bool(o) }

func fixedThread(store kv.Store, owner bool) *Thread {
	n := 0
	return NewThread(store, ownerFlag(owner),
		WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("m%03d", n) }),
	)
}

func TestMessagesSeededWithWelcome(t *testing.T) {
	msgs, err := fixedThread(kv.NewMemory(), false).Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleStudio, msgs[0].Role)
	assert.Equal(t, WelcomeText, msgs[0].Text)
}

func TestWelcomeIsStableAcrossReads(t *testing.T) {
	store := kv.NewMemory()
	th := NewThread(store, nil)
	first, err := th.Messages(context.Background())
	require.NoError(t, err)
	second, err := th.Messages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, WelcomeID, first[0].ID)
	assert.True(t, first[0].At.IsZero())

	_, err = th.Post(context.Background(), "hello")
	require.NoError(t, err)
	after, err := th.Messages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, WelcomeID, after[0].ID, "the persisted welcome keeps its id")
	assert.True(t, after[0].At.IsZero())
}

func TestPostPersistsThread(t *testing.T) {
	store := kv.NewMemory()
	th := fixedThread(store, false)

	msg, err := th.Post(context.Background(), "  Lovely <b>blues</b>  ")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, "Lovely blues", msg.Text)

	msgs, err := NewThread(store, nil).Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, WelcomeText, msgs[0].Text)
	assert.Equal(t, "Lovely blues", msgs[1].Text)
}

func TestPostRejectsEmpty(t *testing.T) {
	th := fixedThread(kv.NewMemory(), false)
	for _, text := range []string{"", "   ", "<script>alert(1)</script>"} {
		_, err := th.Post(context.Background(), text)
		require.ErrorIs(t, err, ErrEmptyMessage, "text %q", text)
	}
}

func TestReplyRequiresOwner(t *testing.T) {
	store := kv.NewMemory()
	_, err := fixedThread(store, false).Reply(context.Background(), "thanks")
	require.ErrorIs(t, err, ErrOwnerOnly)

	msg, err := fixedThread(store, true).Reply(context.Background(), "thanks")
	require.NoError(t, err)
	assert.Equal(t, RoleStudio, msg.Role)
}

func TestThreadCapsLengthAndRunes(t *testing.T) {
	store := kv.NewMemory()
	th := fixedThread(store, false)
	for i := 0; i < MaxMessages+5; i++ {
		_, err := th.Post(context.Background(), fmt.Sprintf("note %d", i))
		require.NoError(t, err)
	}
	msgs, err := th.Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, MaxMessages)
	assert.Equal(t, fmt.Sprintf("note %d", MaxMessages+4), msgs[len(msgs)-1].Text)
	assert.NotEqual(t, WelcomeText, msgs[0].Text, "oldest dropped first")

	long, err := th.Post(context.Background(), strings.Repeat("é", MaxRunes+10))
	require.NoError(t, err)
	assert.Equal(t, MaxRunes, utf8.RuneCountInString(long.Text))
}

func TestCorruptThreadReseeds(t *testing.T) {
	store := kv.NewMemory()
	require.NoError(t, store.Set(context.Background(), ThreadKey, "{broken"))
	msgs, err := fixedThread(store, false).Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, WelcomeText, msgs[0].Text)
}

func TestDefaultIDsAreULIDs(t *testing.T) {
	msg, err := NewThread(kv.NewMemory(), nil).Post(context.Background(), "hi")
	require.NoError(t, err)
	assert.Len(t, msg.ID, 26)
}
