package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/xfw5/Market-Research/internal/domain"
)

// ErrGatewayUnavailable is returned while the breaker is open
var ErrGatewayUnavailable = errors.New("order gateway unavailable")

// BreakerGateway guards an OrderGateway with a circuit breaker. Only transport
// errors count as failures; a rejected order is a successful round trip.
type BreakerGateway struct {
	next domain.OrderGateway
	cb   *gobreaker.CircuitBreaker
	log  zerolog.Logger
}

// NewBreakerGateway wraps next. The breaker opens after consecutiveFailures
// errors in a row and probes again after cooldown.
func NewBreakerGateway(next domain.OrderGateway, consecutiveFailures uint32, cooldown time.Duration, log zerolog.Logger) *BreakerGateway {
	g := &BreakerGateway{
		next: next,
		log:  log.With().Str("component", "gateway_breaker").Logger(),
	}

	st := gobreaker.Settings{Name: "order_gateway"}
	st.MaxRequests = 1
	st.Interval = 0 // Never clear counts while closed
	st.Timeout = cooldown
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= consecutiveFailures
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		g.log.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Gateway breaker state changed")
	}
	g.cb = gobreaker.NewCircuitBreaker(st)
	return g
}

// State returns the breaker state name
func (g *BreakerGateway) State() string {
	return g.cb.State().String()
}

func (g *BreakerGateway) execute(fn func() (*domain.OrderResult, error)) (*domain.OrderResult, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	result, _ := out.(*domain.OrderResult)
	return result, nil
}

// SubmitTargetValueOrder implements domain.OrderGateway
func (g *BreakerGateway) SubmitTargetValueOrder(symbol string, notional float64) (*domain.OrderResult, error) {
	return g.execute(func() (*domain.OrderResult, error) {
		return g.next.SubmitTargetValueOrder(symbol, notional)
	})
}

// SubmitCloseOrder implements domain.OrderGateway
func (g *BreakerGateway) SubmitCloseOrder(symbol string) (*domain.OrderResult, error) {
	return g.execute(func() (*domain.OrderResult, error) {
		return g.next.SubmitCloseOrder(symbol)
	})
}
