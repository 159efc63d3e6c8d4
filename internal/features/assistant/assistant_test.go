package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/guardian-bot/internal/toxicity"
)

// fakeChatter отвечает «ответ N» и запоминает, с какой историей его вызвали.
type fakeChatter struct {
	mu        sync.Mutex
	histories [][]toxicity.Turn
	err       error
}

func (c *fakeChatter) Chat(ctx context.Context, history []toxicity.Turn, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histories = append(c.histories, history)
	if c.err != nil {
		return "", c.err
	}
	return fmt.Sprintf("  ответ %d  ", len(c.histories)), nil
}

type slowChatter struct{}

func (slowChatter) Chat(ctx context.Context, history []toxicity.Turn, text string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func testConfig() Config {
	return Config{
		Timeout:        time.Second,
		MaxConcurrency: 2,
		MaxSessions:    100,
		SessionTTL:     time.Hour,
		MaxExchanges:   2,
	}
}

func TestAskKeepsDialog(t *testing.T) {
	chatter := &fakeChatter{}
	svc := NewService(chatter, testConfig())
	ctx := context.Background()

	answer, err := svc.Ask(ctx, 1, "  привет ")
	require.NoError(t, err)
	assert.Equal(t, "ответ 1", answer)

	_, err = svc.Ask(ctx, 1, "как дела?")
	require.NoError(t, err)

	require.Len(t, chatter.histories, 2)
	assert.Empty(t, chatter.histories[0])
	assert.Equal(t, []toxicity.Turn{
		{Role: toxicity.RoleUser, Text: "привет"},
		{Role: toxicity.RoleModel, Text: "ответ 1"},
	}, chatter.histories[1])
}

func TestAskSessionsPerUser(t *testing.T) {
	chatter := &fakeChatter{}
	svc := NewService(chatter, testConfig())
	ctx := context.Background()

	_, err := svc.Ask(ctx, 1, "вопрос первого")
	require.NoError(t, err)
	_, err = svc.Ask(ctx, 2, "вопрос второго")
	require.NoError(t, err)

	assert.Empty(t, chatter.histories[1])
	assert.Len(t, svc.History(1), 2)
	assert.Len(t, svc.History(2), 2)
}

func TestAskTrimsHistory(t *testing.T) {
	svc := NewService(&fakeChatter{}, testConfig())
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := svc.Ask(ctx, 1, fmt.Sprintf("вопрос %d", i))
		require.NoError(t, err)
	}

	history := svc.History(1)
	require.Len(t, history, 4)
	assert.Equal(t, "вопрос 4", history[0].Text)
	assert.Equal(t, toxicity.RoleUser, history[0].Role)
	assert.Equal(t, "ответ 5", history[3].Text)
}

func TestAskFailureNotRemembered(t *testing.T) {
	chatter := &fakeChatter{err: errors.New("quota exceeded")}
	svc := NewService(chatter, testConfig())

	_, err := svc.Ask(context.Background(), 1, "вопрос")
	assert.Error(t, err)
	assert.Empty(t, svc.History(1))
}

func TestAskEmptyQuestion(t *testing.T) {
	chatter := &fakeChatter{}
	svc := NewService(chatter, testConfig())

	_, err := svc.Ask(context.Background(), 1, "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Empty(t, chatter.histories)
}

func TestAskTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	svc := NewService(slowChatter{}, cfg)

	start := time.Now()
	_, err := svc.Ask(context.Background(), 1, "вопрос")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestReset(t *testing.T) {
	svc := NewService(&fakeChatter{}, testConfig())

	_, err := svc.Ask(context.Background(), 1, "вопрос")
	require.NoError(t, err)
	svc.Reset(1)
	assert.Empty(t, svc.History(1))
}

func TestFormatAnswer(t *testing.T) {
	assert.Equal(t, "коротко", FormatAnswer("коротко"))
	assert.Contains(t, FormatAnswer(""), "ничего не ответил")

	exact := strings.Repeat("я", MaxReplyLength)
	assert.Equal(t, exact, FormatAnswer(exact))

	long := FormatAnswer(strings.Repeat("я", MaxReplyLength+1))
	assert.Equal(t, MaxReplyLength, utf8.RuneCountInString(long))
	assert.True(t, strings.HasSuffix(long, "..."))
}
