package server

import (
	"context"
	"time"

	"github.com/jrsteele09/go-oauth-provider/internal/metrics"
	"github.com/rs/zerolog/log"
)

// StartJanitor runs the shared background sweep: one ticker evicting expired
// authorization sessions and tokens, instead of a timer per entry. It stops
// when ctx is cancelled.
func (s *Server) StartJanitor(ctx context.Context) {
	interval := s.config.GetSweepInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessions := s.sessions.Sweep()
				tokens := s.tokens.Sweep()
				if sessions > 0 || tokens > 0 {
					metrics.SweptEntries.WithLabelValues("sessions").Add(float64(sessions))
					metrics.SweptEntries.WithLabelValues("tokens").Add(float64(tokens))
					log.Debug().
						Int("sessions", sessions).
						Int("tokens", tokens).
						Msg("janitor sweep")
				}
			}
		}
	}()
}
