package playback

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnkhuat/termshow/pkg/message"
)

func recordSleeps(p *Playback) *[]time.Duration {
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return &slept
}

func TestPlayWritesBodyInChunks(t *testing.T) {
	s := &message.TermSession{
		Script: []byte("Script started on today\nhello world"),
		Timing: "0.5 5\n-0.01 1\n2.0 5\n",
	}
	p := New(s, 2, 0)
	slept := recordSleeps(p)

	var out bytes.Buffer
	require.NoError(t, p.Play(context.Background(), &out))
	assert.Equal(t, "hello world", out.String())
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 0, time.Second}, *slept)
}

func TestPlayCapsPauses(t *testing.T) {
	s := &message.TermSession{Script: []byte("h\nab"), Timing: "30 1\n0.1 1\n"}
	p := New(s, 1, time.Second)
	slept := recordSleeps(p)

	var out bytes.Buffer
	require.NoError(t, p.Play(context.Background(), &out))
	assert.Equal(t, []time.Duration{time.Second, 100 * time.Millisecond}, *slept)

	total, err := p.Duration()
	require.NoError(t, err)
	assert.Equal(t, 1100*time.Millisecond, total)
}

func TestPlayFlushesUncoveredTail(t *testing.T) {
	s := &message.TermSession{Script: []byte(message.ConvertedHeader + "abcdef"), Timing: "0 2\n"}
	p := New(s, 1, 0)
	recordSleeps(p)

	var out bytes.Buffer
	require.NoError(t, p.Play(context.Background(), &out))
	assert.Equal(t, "abcdef", out.String())
}

func TestPlayRejectsOverrun(t *testing.T) {
	s := &message.TermSession{Script: []byte("h\nab"), Timing: "0 5\n"}
	p := New(s, 1, 0)
	recordSleeps(p)

	assert.Error(t, p.Play(context.Background(), &bytes.Buffer{}))
}

func TestPlayStopsOnCancel(t *testing.T) {
	s := &message.TermSession{Script: []byte("h\nab"), Timing: "10 1\n10 1\n"}
	p := New(s, 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	assert.ErrorIs(t, p.Play(ctx, &out), context.Canceled)
	assert.Empty(t, out.String())
}
