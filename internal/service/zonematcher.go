package service

import (
	"context"
	"sort"

	"github.com/ledgerline/taxengine/internal/domain/taxzone"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/samber/lo"
)

// ZoneMatcherService resolves the destination address of a calculation to
// the tax zones it falls into.
type ZoneMatcherService interface {
	// MatchZones returns the zones containing the address ordered most
	// specific first. When no configured zone matches it falls back to the
	// default zone; with no default either it returns ErrNoApplicableZone.
	MatchZones(ctx context.Context, address taxzone.Address) ([]*taxzone.TaxZone, error)
}

type zoneMatcherService struct {
	ServiceParams
}

func NewZoneMatcherService(params ServiceParams) ZoneMatcherService {
	return &zoneMatcherService{
		ServiceParams: params,
	}
}

func (s *zoneMatcherService) MatchZones(ctx context.Context, address taxzone.Address) ([]*taxzone.TaxZone, error) {
	if address.Country == "" {
		return nil, ierr.NewError("address country is required").
			WithHint("Tax zones are matched by country first").
			Mark(ierr.ErrValidation)
	}

	zones, err := s.TaxZoneRepo.ListActive(ctx)
	if err != nil {
		s.Logger.Errorw("failed to load active tax zones", "error", err)
		return nil, err
	}

	matched := lo.Filter(zones, func(zone *taxzone.TaxZone, _ int) bool {
		return zone.Matches(address)
	})

	if len(matched) == 0 {
		fallback, err := s.TaxZoneRepo.GetDefault(ctx)
		if err != nil {
			if ierr.IsNotFound(err) {
				s.Logger.Warnw("no tax zone matches address and no default zone is configured",
					"country", address.Country,
					"state", address.State,
					"postcode", address.Postcode,
				)
				return nil, ierr.NewError("no applicable tax zone").
					WithHintf("No tax zone matches country %s and no default zone is configured", address.Country).
					Mark(ierr.ErrNoApplicableZone)
			}
			return nil, err
		}
		return []*taxzone.TaxZone{fallback}, nil
	}

	// Most specific zone first; creation time then id keep the order stable
	// between runs with equally specific zones.
	sort.SliceStable(matched, func(i, j int) bool {
		si, sj := matched[i].Specificity(), matched[j].Specificity()
		if si != sj {
			return si > sj
		}
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	return matched, nil
}
