package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ledgerline/taxengine/internal/api/dto"
	"github.com/ledgerline/taxengine/internal/domain/calculation"
	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/httpclient"
	"github.com/shopspring/decimal"
)

// ProviderResult carries what an external provider returned for a
// calculation, including the raw payload for the audit record.
type ProviderResult struct {
	Reference   string
	RawResponse string
	Totals      calculation.Totals
}

// ProviderService calls the optional external tax provider. It is consulted
// only when the provider is enabled in configuration; local zones, rates,
// and rules remain the fallback when the call fails.
type ProviderService interface {
	Enabled() bool
	Calculate(ctx context.Context, req dto.CalculateTaxRequest) (*ProviderResult, error)
}

type providerService struct {
	ServiceParams
}

func NewProviderService(params ServiceParams) ProviderService {
	return &providerService{
		ServiceParams: params,
	}
}

func (s *providerService) Enabled() bool {
	return s.Config.Provider.Enabled && s.Config.Provider.BaseURL != ""
}

// providerResponse is the provider's wire format
type providerResponse struct {
	Reference       string          `json:"reference"`
	TaxableAmount   decimal.Decimal `json:"taxable_amount"`
	TaxExemptAmount decimal.Decimal `json:"tax_exempt_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

func (s *providerService) Calculate(ctx context.Context, req dto.CalculateTaxRequest) (*ProviderResult, error) {
	if !s.Enabled() {
		return nil, ierr.NewError("tax provider is not enabled").
			WithHint("Enable the provider and set its base URL in configuration").
			Mark(ierr.ErrInvalidOperation)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode provider request").
			Mark(ierr.ErrSystem)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Config.Provider.Timeout)
	defer cancel()

	resp, err := s.Client.Send(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    s.Config.Provider.BaseURL + "/v1/calculations",
		Body:   body,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			s.Logger.Warnw("tax provider call timed out",
				"timeout", s.Config.Provider.Timeout,
				"source_id", req.SourceID,
			)
			return nil, ierr.WithError(err).
				WithHint("The tax provider did not respond in time").
				Mark(ierr.ErrProviderTimeout)
		}
		return nil, err
	}

	var parsed providerResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, ierr.WithError(err).
			WithHint("The tax provider returned an unreadable response").
			Mark(ierr.ErrHTTPClient)
	}

	return &ProviderResult{
		Reference:   parsed.Reference,
		RawResponse: string(resp.Body),
		Totals: calculation.Totals{
			TaxableAmount:   parsed.TaxableAmount,
			TaxExemptAmount: parsed.TaxExemptAmount,
			TaxAmount:       parsed.TaxAmount,
			TotalAmount:     parsed.TotalAmount,
		},
	}, nil
}
