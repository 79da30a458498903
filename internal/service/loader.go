package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/septivank/rental-meter-worker/internal/boundedmap"
	"github.com/septivank/rental-meter-worker/internal/rentalapi"
	"github.com/septivank/rental-meter-worker/internal/rows"
	"go.uber.org/zap"
)

// ServiceNames maps free-text service names to utilities. Matching is
// case-insensitive and otherwise exact.
type ServiceNames struct {
	Electricity []string
	Water       []string
}

// Classify returns the utility a service name denotes.
func (n ServiceNames) Classify(name string) (rows.Utility, bool) {
	for _, candidate := range n.Electricity {
		if strings.EqualFold(name, candidate) {
			return rows.Electricity, true
		}
	}
	for _, candidate := range n.Water {
		if strings.EqualFold(name, candidate) {
			return rows.Water, true
		}
	}
	return "", false
}

// Loader builds the row set from the rental API
type Loader struct {
	api         ContractAPI
	names       ServiceNames
	concurrency int
	logger      *zap.Logger
}

// NewLoader creates a new loader fetching services with at most concurrency requests in flight
func NewLoader(api ContractAPI, names ServiceNames, concurrency int, logger *zap.Logger) *Loader {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Loader{
		api:         api,
		names:       names,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Load fetches every active contract and its services. Any fetch failure
// fails the whole load.
func (l *Loader) Load(ctx context.Context) ([]rows.Row, error) {
	contracts, err := l.api.ListActiveContracts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load contracts: %w", err)
	}

	services, err := boundedmap.Map(ctx, contracts, l.concurrency,
		func(ctx context.Context, _ int, c rentalapi.ContractSummary) ([]rentalapi.ServiceInstance, error) {
			out, err := l.api.ListContractServices(ctx, c.ID)
			if err != nil {
				return nil, fmt.Errorf("contract %s: %w", c.ID, err)
			}
			return out, nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load contract services: %w", err)
	}

	result := make([]rows.Row, 0, len(contracts))
	for i, c := range contracts {
		electricity, water := l.meters(services[i])
		result = append(result, rows.NewRow(c.ID, c.RoomLabel, c.TenantLabel, c.BranchLabel, electricity, water))
	}

	l.logger.Info("meter rows loaded",
		zap.Int("contracts", len(contracts)),
		zap.Int("concurrency", l.concurrency),
	)
	return result, nil
}

// Reload replaces the store contents. On failure the store is left untouched.
func (l *Loader) Reload(ctx context.Context, store *rows.Store) error {
	loaded, err := l.Load(ctx)
	if err != nil {
		return err
	}
	store.Replace(loaded)
	return nil
}

// meters picks the first electricity and first water service of a contract.
func (l *Loader) meters(services []rentalapi.ServiceInstance) (rows.Meter, rows.Meter) {
	var electricity, water rows.Meter
	for _, s := range services {
		u, ok := l.names.Classify(s.Name)
		if !ok {
			continue
		}
		target := &electricity
		if u == rows.Water {
			target = &water
		}
		if target.Enabled() {
			continue
		}
		id := s.ID
		*target = rows.Meter{
			ServiceRef: &id,
			Previous:   s.PreviousReading,
			Current:    s.CurrentReading,
			UnitPrice:  s.Price,
		}
	}
	return electricity, water
}
