package api

import (
	"golang.org/x/time/rate"

	"dvrp/internal/opt"
)

// progressPublisher forwards optimizer rounds to the broker at most rps
// times per second. Terminal events are published by finishRun and are
// never throttled.
type progressPublisher struct {
	broker EventBroker
	runID  string
	lim    *rate.Limiter
}

func newProgressPublisher(b EventBroker, runID string, rps float64) *progressPublisher {
	lim := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &progressPublisher{broker: b, runID: runID, lim: lim}
}

func (p *progressPublisher) observe(pr opt.Progress) {
	if !p.lim.Allow() {
		return
	}
	p.broker.Publish(p.runID, Event{Type: EventProgress, Data: map[string]any{
		"runId":      p.runID,
		"round":      pr.Round,
		"bestCost":   pr.BestCost,
		"anchorCost": pr.AnchorCost,
		"improved":   pr.Improved,
		"move":       pr.Move,
		"accepted":   pr.Accepted,
		"elapsedMs":  pr.Elapsed.Milliseconds(),
	}})
}
