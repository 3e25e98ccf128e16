// Package weather generates the demo forecast and serves it through the
// cache-aside accessor.
package weather

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/cache"
)

// CacheKey is the cache entry the forecast is stored under.
const CacheKey = "forecast"

// DefaultDays is the number of forecasts returned per request.
const DefaultDays = 5

const (
	minTemperatureC = -20
	maxTemperatureC = 54
)

// Summaries are the words a forecast summary is drawn from.
var Summaries = []string{"Freezing", "Bracing", "Chilly", "Cool", "Mild", "Warm", "Balmy", "Hot", "Sweltering", "Scorching"}

// Forecast is one day of weather.
type Forecast struct {
	Date         string `json:"date"`
	TemperatureC int    `json:"temperatureC"`
	TemperatureF int    `json:"temperatureF"`
	Summary      string `json:"summary"`
}

// TemperatureF converts Celsius the way the forecast has always reported it,
// truncating toward zero.
func TemperatureF(c int) int {
	return 32 + int(float64(c)/0.5556)
}

// Generator produces random forecasts starting tomorrow.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithSeed makes the generated values reproducible.
func WithSeed(seed1, seed2 uint64) GeneratorOption {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed1, seed2))
	}
}

// WithNow overrides the clock used to date forecasts.
func WithNow(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.now = now
	}
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Forecasts returns days forecasts, the first dated tomorrow.
func (g *Generator) Forecasts(days int) []Forecast {
	g.mu.Lock()
	defer g.mu.Unlock()

	today := g.now()
	out := make([]Forecast, 0, days)
	for i := 1; i <= days; i++ {
		c := minTemperatureC + g.rng.IntN(maxTemperatureC-minTemperatureC+1)
		out = append(out, Forecast{
			Date:         today.AddDate(0, 0, i).Format(time.DateOnly),
			TemperatureC: c,
			TemperatureF: TemperatureF(c),
			Summary:      Summaries[g.rng.IntN(len(Summaries))],
		})
	}
	return out
}

// Service serves the forecast from cache, generating it on a miss.
type Service struct {
	cache *cache.Aside
	gen   *Generator
	ttl   time.Duration
	days  int
}

// NewService returns a Service caching each generated forecast for ttl.
func NewService(aside *cache.Aside, gen *Generator, ttl time.Duration) *Service {
	if gen == nil {
		gen = NewGenerator()
	}
	return &Service{cache: aside, gen: gen, ttl: ttl, days: DefaultDays}
}

// Forecast returns the cached forecast, or generates and caches a new one.
// Until the entry expires every caller sees the same forecast.
func (s *Service) Forecast(ctx context.Context) ([]Forecast, error) {
	return cache.GetOrComputeJSON(ctx, s.cache, CacheKey, s.ttl, func(context.Context) ([]Forecast, error) {
		return s.gen.Forecasts(s.days), nil
	})
}
