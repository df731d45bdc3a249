package tuning

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	// TickMs drives both the scheduler period and the physics integration step.
	TickMs int `yaml:"tick_ms"`

	MapWidth    float64 `yaml:"map_width"`
	MapHeight   float64 `yaml:"map_height"`
	SpawnMargin float64 `yaml:"spawn_margin"`
	ViewRadius  float64 `yaml:"view_radius"`
	MaxPlayers  int     `yaml:"max_players"`

	Debug      bool       `yaml:"debug"`
	DebugSpawn [2]float64 `yaml:"debug_spawn"`

	Player    PlayerTuning     `yaml:"player"`
	Melee     *MeleeTuning     `yaml:"melee"`
	Obstacles []ObstacleTuning `yaml:"obstacles"`
}

type PlayerTuning struct {
	Speed         float64 `yaml:"speed"`
	DiagonalSpeed float64 `yaml:"diagonal_speed"`
	Radius        float64 `yaml:"radius"`
	Health        float64 `yaml:"health"`
}

type MeleeTuning struct {
	CooldownMs     int        `yaml:"cooldown_ms"`
	Damage         float64    `yaml:"damage"`
	Offset         [2]float64 `yaml:"offset"`
	Radius         float64    `yaml:"radius"`
	AnimationTicks int        `yaml:"animation_ticks"`
}

// ObstacleTuning describes one obstacle kind scattered by the map generator.
type ObstacleTuning struct {
	Type         string  `yaml:"type"`
	Count        int     `yaml:"count"`
	Radius       float64 `yaml:"radius,omitempty"`
	Width        float64 `yaml:"width,omitempty"`
	Height       float64 `yaml:"height,omitempty"`
	Health       float64 `yaml:"health"`
	Destructible bool    `yaml:"destructible"`
	Door         bool    `yaml:"door,omitempty"`
	Explosive    bool    `yaml:"explosive,omitempty"`
}

func (t Tuning) TickDelta() time.Duration {
	return time.Duration(t.TickMs) * time.Millisecond
}

func (m MeleeTuning) Cooldown() time.Duration {
	return time.Duration(m.CooldownMs) * time.Millisecond
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickMs:          30,
		MapWidth:        720,
		MapHeight:       720,
		SpawnMargin:     12,
		ViewRadius:      64,
		MaxPlayers:      80,
		DebugSpawn:      [2]float64{360, 360},
		Player: PlayerTuning{
			Speed:         30,
			DiagonalSpeed: 30 / math.Sqrt2,
			Radius:        1,
			Health:        100,
		},
		Melee: &MeleeTuning{
			CooldownMs:     250,
			Damage:         24,
			Offset:         [2]float64{1.35, 0},
			Radius:         0.9,
			AnimationTicks: 8,
		},
		Obstacles: []ObstacleTuning{
			{Type: "tree", Count: 120, Radius: 2.5, Health: 180, Destructible: true},
			{Type: "stone", Count: 60, Radius: 3, Health: 250, Destructible: true},
			{Type: "crate", Count: 40, Width: 2.5, Height: 2.5, Health: 80, Destructible: true},
			{Type: "barrel", Count: 20, Radius: 1.25, Health: 60, Destructible: true, Explosive: true},
			{Type: "door", Count: 10, Width: 3, Height: 0.5, Health: 1, Door: true},
		},
	}
}

// Load reads a tuning file on top of Defaults. Fields absent from the file keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickMs <= 0 {
		return fmt.Errorf("tick_ms must be > 0")
	}
	if t.MapWidth <= 0 || t.MapHeight <= 0 {
		return fmt.Errorf("map size must be > 0")
	}
	if t.SpawnMargin < 0 || 2*t.SpawnMargin >= t.MapWidth || 2*t.SpawnMargin >= t.MapHeight {
		return fmt.Errorf("spawn_margin must leave a non-empty spawn area")
	}
	if t.ViewRadius <= 0 {
		return fmt.Errorf("view_radius must be > 0")
	}
	if t.MaxPlayers <= 0 {
		return fmt.Errorf("max_players must be > 0")
	}
	if t.Player.Radius <= 0 || t.Player.Health <= 0 {
		return fmt.Errorf("player radius and health must be > 0")
	}
	if t.Melee != nil {
		if t.Melee.Radius <= 0 {
			return fmt.Errorf("melee.radius must be > 0")
		}
		if t.Melee.CooldownMs < 0 || t.Melee.AnimationTicks < 0 {
			return fmt.Errorf("melee cooldown and animation ticks must be >= 0")
		}
	}
	seen := map[string]bool{}
	for _, o := range t.Obstacles {
		if o.Type == "" {
			return fmt.Errorf("obstacle type must not be empty")
		}
		if seen[o.Type] {
			return fmt.Errorf("duplicate obstacle type: %s", o.Type)
		}
		seen[o.Type] = true
		if o.Radius <= 0 && (o.Width <= 0 || o.Height <= 0) {
			return fmt.Errorf("obstacle %s needs radius or width/height", o.Type)
		}
		if o.Count < 0 {
			return fmt.Errorf("obstacle %s count must be >= 0", o.Type)
		}
	}
	return nil
}
