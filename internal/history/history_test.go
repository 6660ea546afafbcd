package history_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/history"
)

var base = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func TestCongratulation_Normalize(t *testing.T) {
	c := history.Congratulation{ClientID: 1, Text: strings.Repeat("ж", config.MaxStoredTextLength+10)}
	c.Normalize(base)

	assert.Equal(t, config.EventBirthday, c.EventType)
	assert.Equal(t, config.ChannelEmail, c.Channel)
	assert.Equal(t, config.StatusPending, c.Status)
	assert.Equal(t, base, c.SentAt)
	assert.Equal(t, config.MaxStoredTextLength, len([]rune(c.Text)), "Text is cut by runes, not bytes")
}

func TestCongratulation_Preview(t *testing.T) {
	c := history.Congratulation{Text: "Happy birthday, Anna!"}
	assert.Equal(t, "Happy birthday, Anna!", c.Preview(100))
	assert.Equal(t, "Happy...", c.Preview(5))
}

func seed(t *testing.T) *history.MemoryStore {
	t.Helper()
	s := history.NewMemoryStore()
	ctx := context.Background()
	rows := []history.Congratulation{
		{ClientID: 1, Text: "first", Status: config.StatusSimulated, SentAt: base},
		{ClientID: 2, Text: "second", Status: config.StatusSent, SentAt: base.Add(time.Hour)},
		{ClientID: 1, Text: "third", Status: config.StatusSent, Channel: config.ChannelSMS, SentAt: base.Add(2 * time.Hour)},
	}
	for i := range rows {
		require.NoError(t, s.Create(ctx, &rows[i]))
		assert.Equal(t, int64(i+1), rows[i].ID)
	}
	return s
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := seed(t)

	got, total, err := s.List(context.Background(), history.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{got[0].Text, got[1].Text, got[2].Text})
}

func TestMemoryStore_ListFilters(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter history.Filter
		want   []string
		total  int
	}{
		{"by client", history.Filter{ClientID: 1}, []string{"third", "first"}, 2},
		{"by status", history.Filter{Status: config.StatusSent}, []string{"third", "second"}, 2},
		{"by channel", history.Filter{Channel: config.ChannelSMS}, []string{"third"}, 1},
		{"paged", history.Filter{Offset: 1, Limit: 1}, []string{"second"}, 3},
		{"past the end", history.Filter{Offset: 10}, []string{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := s.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.total, total)
			texts := []string{}
			for _, c := range got {
				texts = append(texts, c.Text)
			}
			assert.Equal(t, tt.want, texts)
		})
	}
}

func TestMemoryStore_Get(t *testing.T) {
	s := seed(t)

	c, err := s.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "second", c.Text)

	_, err = s.Get(context.Background(), 99)
	assert.ErrorIs(t, err, history.ErrNotFound)
}
