package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer smooths outbound call rates client-side so bursts of dashboard
// traffic don't burn through the upstream quota the Tracker is guarding.
type Pacer struct {
	github *rate.Limiter
	openai *rate.Limiter
}

func NewPacer(githubReqPerMin, openaiReqPerMin int) *Pacer {
	return &Pacer{
		github: rate.NewLimiter(rate.Limit(float64(githubReqPerMin)/60.0), githubReqPerMin),
		openai: rate.NewLimiter(rate.Limit(float64(openaiReqPerMin)/60.0), openaiReqPerMin),
	}
}

func (p *Pacer) WaitGithub(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.github.Wait(ctx)
}

func (p *Pacer) WaitOpenAI(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.openai.Wait(ctx)
}
