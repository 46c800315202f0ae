package poller

import (
	"math/rand"
	"time"

	"github.com/BearBump/StoreFront/internal/models"
)

type Rand interface {
	Intn(n int) int
}

type PlannerConfig struct {
	// Пока у пользователя есть незавершённые заказы, проверяем часто.
	ActiveMinDelay time.Duration // default: 1 minute
	ActiveMaxDelay time.Duration // default: 3 minutes

	IdleDelay time.Duration // default: 6 hours

	Backoff1 time.Duration // default: 5 minutes
	Backoff2 time.Duration // default: 15 minutes
	Backoff3 time.Duration // default: 30 minutes
	Backoff4 time.Duration // default: 60 minutes
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		ActiveMinDelay: 1 * time.Minute,
		ActiveMaxDelay: 3 * time.Minute,

		IdleDelay: 6 * time.Hour,

		Backoff1: 5 * time.Minute,
		Backoff2: 15 * time.Minute,
		Backoff3: 30 * time.Minute,
		Backoff4: 60 * time.Minute,
	}
}

type Planner struct {
	cfg PlannerConfig
	r   Rand
}

func NewPlanner(cfg PlannerConfig, r Rand) *Planner {
	def := DefaultPlannerConfig()
	if cfg.ActiveMinDelay <= 0 {
		cfg.ActiveMinDelay = def.ActiveMinDelay
	}
	if cfg.ActiveMaxDelay <= 0 {
		cfg.ActiveMaxDelay = def.ActiveMaxDelay
	}
	if cfg.ActiveMaxDelay < cfg.ActiveMinDelay {
		cfg.ActiveMaxDelay = cfg.ActiveMinDelay
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = def.IdleDelay
	}
	if cfg.Backoff1 <= 0 {
		cfg.Backoff1 = def.Backoff1
	}
	if cfg.Backoff2 <= 0 {
		cfg.Backoff2 = def.Backoff2
	}
	if cfg.Backoff3 <= 0 {
		cfg.Backoff3 = def.Backoff3
	}
	if cfg.Backoff4 <= 0 {
		cfg.Backoff4 = def.Backoff4
	}
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Planner{cfg: cfg, r: r}
}

func (p *Planner) Config() PlannerConfig {
	return p.cfg
}

// NextCheckDelay: случайная задержка из [min,max], пока есть незавершённый заказ,
// иначе редкая проверка на случай новых заказов.
func (p *Planner) NextCheckDelay(orders []models.Order) time.Duration {
	if !HasActive(orders) {
		return p.cfg.IdleDelay
	}
	min := p.cfg.ActiveMinDelay
	max := p.cfg.ActiveMaxDelay
	if max == min {
		return min
	}
	secMin := int(min.Seconds())
	secMax := int(max.Seconds())
	if secMax < secMin {
		secMax = secMin
	}
	return time.Duration(secMin+p.r.Intn(secMax-secMin+1)) * time.Second
}

func (p *Planner) BackoffDelay(nextFailCount int) time.Duration {
	switch {
	case nextFailCount <= 1:
		return p.cfg.Backoff1
	case nextFailCount == 2:
		return p.cfg.Backoff2
	case nextFailCount == 3:
		return p.cfg.Backoff3
	default:
		return p.cfg.Backoff4
	}
}

func HasActive(orders []models.Order) bool {
	for _, o := range orders {
		if !o.Status.Terminal() {
			return true
		}
	}
	return false
}
