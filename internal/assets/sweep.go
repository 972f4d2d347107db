package assets

import (
	"context"
	"log/slog"
	"time"
)

// RunSweeper calls s.Sweep every interval until ctx is done.
func RunSweeper(ctx context.Context, s Sweeper, interval time.Duration, log *slog.Logger) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.Sweep(ctx, now)
			if err != nil {
				log.Warn("sigil sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("removed expired sigils", "count", n)
			}
		}
	}
}
