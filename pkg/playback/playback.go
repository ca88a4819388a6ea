package playback

/***
Replays a recorded session the way scriptreplay does: the header line is
skipped, then every chunk of the body is written after its recorded delay.
***/
import (
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/termshow/pkg/message"
)

type Playback struct {
	session *message.TermSession

	// >1 plays faster
	speed float64

	// upper bound on any single pause, 0 for none
	maxWait time.Duration

	sleep func(context.Context, time.Duration) error
}

func New(s *message.TermSession, speed float64, maxWait time.Duration) *Playback {
	if speed <= 0 {
		speed = 1
	}
	return &Playback{
		session: s,
		speed:   speed,
		maxWait: maxWait,
		sleep:   sleepCtx,
	}
}

// Duration is how long Play will take.
func (p *Playback) Duration() (time.Duration, error) {
	entries, err := message.ParseTiming(p.session.Timing)
	if err != nil {
		return 0, err
	}
	var total time.Duration
	for _, e := range entries {
		total += p.wait(e.Delay)
	}
	return total, nil
}

func (p *Playback) Play(ctx context.Context, w io.Writer) error {
	entries, err := message.ParseTiming(p.session.Timing)
	if err != nil {
		return err
	}
	body := p.session.Body()

	pos := 0
	for i, e := range entries {
		if err := p.sleep(ctx, p.wait(e.Delay)); err != nil {
			return err
		}
		end := pos + e.Bytes
		if end > len(body) {
			return fmt.Errorf("timing entry %d runs past the end of the script (%d > %d)", i+1, end, len(body))
		}
		if _, err := w.Write(body[pos:end]); err != nil {
			return err
		}
		pos = end
	}

	if pos < len(body) {
		log.Printf("Playback: %d bytes not covered by timing, flushing", len(body)-pos)
		if _, err := w.Write(body[pos:]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Playback) wait(delay float64) time.Duration {
	if delay <= 0 {
		return 0
	}
	d := time.Duration(delay / p.speed * float64(time.Second))
	if p.maxWait > 0 && d > p.maxWait {
		d = p.maxWait
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
