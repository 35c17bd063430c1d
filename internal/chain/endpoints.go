package chain

import (
	"sync"

	"lottery-view/internal/metrics"
)

// EndpointState represents the health state of an RPC endpoint.
type EndpointState int

const (
	Healthy EndpointState = iota
	Unhealthy
)

func (s EndpointState) String() string {
	if s == Unhealthy {
		return "unhealthy"
	}
	return "healthy"
}

// HealthPolicy defines when an endpoint is considered unhealthy or
// recovered.
type HealthPolicy struct {
	FailureThreshold int // consecutive failures to mark unhealthy
	SuccessThreshold int // consecutive successes to mark healthy again
}

// DefaultHealthPolicy returns the thresholds used by the client.
func DefaultHealthPolicy() HealthPolicy {
	return HealthPolicy{
		FailureThreshold: 3,
		SuccessThreshold: 2,
	}
}

// Endpoint tracks the health-related state of a single RPC URL.
type Endpoint struct {
	URL          string        `json:"url"`
	State        EndpointState `json:"state"`
	FailureCount int           `json:"failure_count"`
	SuccessCount int           `json:"success_count"`
}

// EndpointPool manages a set of RPC endpoints and prefers healthy ones
// when picking where to send the next call. Registration order is
// preserved so the primary endpoint is tried first while healthy.
type EndpointPool struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	order     []string
	policy    HealthPolicy
	metrics   *metrics.Registry
}

// NewEndpointPool creates an empty pool.
func NewEndpointPool(policy HealthPolicy, reg *metrics.Registry) *EndpointPool {
	return &EndpointPool{
		endpoints: make(map[string]*Endpoint),
		policy:    policy,
		metrics:   reg,
	}
}

// Add registers a new endpoint. Adding an existing URL is a no-op.
func (p *EndpointPool) Add(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.endpoints[url]; exists {
		return
	}
	p.endpoints[url] = &Endpoint{URL: url, State: Healthy}
	p.order = append(p.order, url)
	p.metrics.Inc(metrics.EndpointsHealthy)
}

// Pick returns the first healthy endpoint in registration order. If
// none is healthy it falls back to the first endpoint rather than
// refusing the call: a marked-unhealthy endpoint may have recovered.
func (p *EndpointPool) Pick() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.order) == 0 {
		return "", ErrNoEndpoints
	}

	for _, url := range p.order {
		if p.endpoints[url].State == Healthy {
			return url, nil
		}
	}
	return p.order[0], nil
}

// MarkFailure records a failed call against an endpoint.
func (p *EndpointPool) MarkFailure(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ep, ok := p.endpoints[url]
	if !ok {
		return
	}

	p.metrics.Inc(metrics.EndpointFailuresTotal)

	ep.FailureCount++
	ep.SuccessCount = 0
	if ep.State == Healthy && ep.FailureCount >= p.policy.FailureThreshold {
		ep.State = Unhealthy
		p.metrics.Add(metrics.EndpointsHealthy, -1)
		p.metrics.Inc(metrics.EndpointsUnhealthy)
	}
}

// MarkSuccess records a successful call against an endpoint.
func (p *EndpointPool) MarkSuccess(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ep, ok := p.endpoints[url]
	if !ok {
		return
	}

	ep.SuccessCount++
	ep.FailureCount = 0
	if ep.State == Unhealthy && ep.SuccessCount >= p.policy.SuccessThreshold {
		ep.State = Healthy
		p.metrics.Add(metrics.EndpointsUnhealthy, -1)
		p.metrics.Inc(metrics.EndpointsHealthy)
	}
}

// IsHealthy reports whether the given endpoint is currently healthy.
func (p *EndpointPool) IsHealthy(url string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ep, ok := p.endpoints[url]
	return ok && ep.State == Healthy
}

// Snapshot returns a copy of all endpoint states for the admin API.
func (p *EndpointPool) Snapshot() []Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Endpoint, 0, len(p.order))
	for _, url := range p.order {
		out = append(out, *p.endpoints[url])
	}
	return out
}
