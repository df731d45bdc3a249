package game

// Metrics is a thread-safe read-only view of the session's runtime signals.
// It is updated from the session loop goroutine and read from HTTP handlers and tests.
type Metrics struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Tick      uint64 `json:"tick"`

	Objects   int `json:"objects"`
	Players   int `json:"players"`
	Connected int `json:"connected"`
	Alive     int `json:"alive"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Join  int `json:"join"`
	Leave int `json:"leave"`
	Input int `json:"input"`
}

func (g *Game) Metrics() Metrics {
	if g == nil {
		return Metrics{}
	}
	m, ok := g.metrics.Load().(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}

func (g *Game) publishMetrics(stepMS float64) {
	g.metrics.Store(Metrics{
		SessionID: g.id.String(),
		Name:      g.name,
		Tick:      g.tick.Load(),
		Objects:   len(g.objects),
		Players:   len(g.players),
		Connected: len(g.connected),
		Alive:     g.aliveCount,
		QueueDepths: QueueDepths{
			Join:  len(g.join),
			Leave: len(g.leave),
			Input: len(g.input),
		},
		StepMS: stepMS,
	})
}
