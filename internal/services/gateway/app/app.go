package app

import (
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	simpb "github.com/LeonardoBeccarini/cropsim/grpc/simulation"
	"github.com/LeonardoBeccarini/cropsim/internal/model"
)

type Config struct {
	PersistenceURL string
	Timeout        time.Duration
	Breaker        BreakerSettings
	Logger         *logrus.Entry
}

// Gateway fronts the simulation service (gRPC) and the persistence
// service (REST), each behind its own breaker.
type Gateway struct {
	cfg         Config
	log         *logrus.Entry
	persistence *Upstream
	sim         simpb.SimulationServiceClient
	simCB       *gobreaker.CircuitBreaker

	// last good run list per field, served when persistence is unreachable
	lastGood sync.Map // field -> []model.RunResultEvent
}

func NewGateway(cfg Config, sim simpb.SimulationServiceClient) *Gateway {
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	pb := NewBreaker("persistence", cfg.Breaker, nil)
	return &Gateway{
		cfg:         cfg,
		log:         cfg.Logger,
		persistence: NewUpstream("persistence", cfg.PersistenceURL, cfg.Timeout, pb),
		sim:         sim,
		// a rejected request says nothing about the health of the service
		simCB: NewBreaker("simulation", cfg.Breaker, func(err error) bool {
			return err == nil || status.Code(err) == codes.InvalidArgument
		}),
	}
}

// Routes returns the HTTP surface of the gateway.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", g.HandleHealth)
	mux.HandleFunc("POST /simulate", g.HandleSimulate)
	mux.HandleFunc("GET /dashboard", g.HandleDashboard)
	return mux
}

func (g *Gateway) remember(field string, runs []model.RunResultEvent) {
	g.lastGood.Store(field, runs)
}

func (g *Gateway) recall(field string) ([]model.RunResultEvent, bool) {
	v, ok := g.lastGood.Load(field)
	if !ok {
		return nil, false
	}
	return v.([]model.RunResultEvent), true
}
