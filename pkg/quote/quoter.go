package quote

import (
	"context"
	"errors"
	"fmt"

	"cellroute/pkg/types"
)

// ErrNoRoute is returned when every candidate was infeasible or failed to
// price.
var ErrNoRoute = errors.New("no route found")

// Quoter runs the whole quote pipeline for one request: build candidates,
// resolve them on chain and rank the priced routes.
type Quoter struct {
	builder  *Builder
	resolver *Resolver
}

func NewQuoter(b *Builder, r *Resolver) *Quoter {
	return &Quoter{builder: b, resolver: r}
}

// Quote returns the priced routes for req ordered by sortType. balance may be
// nil, in which case no route reports a sufficient balance.
func (q *Quoter) Quote(ctx context.Context, req types.QuoteRequest, balance BalanceFunc, sortType types.SortType) ([]*types.Route, error) {
	candidates, err := q.builder.Build(req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidate from chain %d to chain %d", ErrNoRoute, req.SrcChainID, req.DstChainID)
	}

	routes := q.resolver.ResolveAll(ctx, candidates, balance)
	if len(routes) == 0 {
		return nil, fmt.Errorf("%w: none of %d candidates could be priced", ErrNoRoute, len(candidates))
	}
	return Sort(routes, sortType), nil
}
