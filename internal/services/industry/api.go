package industry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/bigrise/internal/httpclient"
	"github.com/ternarybob/bigrise/internal/models"
)

// lookupSub returns the enrichment lookup for one (main, sub) pair. Header
// metadata and the company list are fetched independently; either side
// failing degrades to its empty value without voiding the other.
func (s *Service) lookupSub(client *httpclient.Client) func(ctx context.Context, key models.SubKey) (models.SubEnrichment, error) {
	return func(ctx context.Context, key models.SubKey) (models.SubEnrichment, error) {
		var result models.SubEnrichment

		meta, err := s.fetchHeaderMeta(ctx, client, key)
		if err != nil {
			s.logger.Warn().
				Str("main_code", key.MainCode).
				Str("sub_code", key.SubCode).
				Err(err).
				Msg("Header metadata lookup failed")
		} else {
			result.Meta = meta
		}

		companies, err := s.fetchCompanies(ctx, client, key)
		if err != nil {
			s.logger.Warn().
				Str("main_code", key.MainCode).
				Str("sub_code", key.SubCode).
				Err(err).
				Msg("Company list lookup failed")
		} else {
			result.Companies = companies
		}

		return result, nil
	}
}

func (s *Service) fetchHeaderMeta(ctx context.Context, client *httpclient.Client, key models.SubKey) (models.HeaderMeta, error) {
	url := s.apiURL(fmt.Sprintf("/api/industry/header/codes/%s/subCodes/%s", key.MainCode, key.SubCode))

	var meta models.HeaderMeta
	if err := client.FetchJSON(ctx, url, &meta); err != nil {
		return models.HeaderMeta{}, err
	}
	return meta, nil
}

// apiCompany is the company record shape on the wire; the portal uses
// different field names than the output cell format.
type apiCompany struct {
	CompanyCode string `json:"companyCode"`
	CompanyName string `json:"companyName"`
}

// fetchCompanies tolerates both payload shapes the portal serves: a bare
// array and an object wrapping it under "companies".
func (s *Service) fetchCompanies(ctx context.Context, client *httpclient.Client, key models.SubKey) ([]models.Company, error) {
	url := s.apiURL(fmt.Sprintf("/api/industry/codes/%s/subCodes/%s/companies", key.MainCode, key.SubCode))

	body, err := client.FetchBytes(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseCompanies(body)
}

func parseCompanies(body []byte) ([]models.Company, error) {
	var list []apiCompany
	if err := json.Unmarshal(body, &list); err == nil {
		return toCompanies(list), nil
	}

	var wrapped struct {
		Companies []apiCompany `json:"companies"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: company list", httpclient.ErrMalformedPayload)
	}
	return toCompanies(wrapped.Companies), nil
}

func toCompanies(list []apiCompany) []models.Company {
	companies := make([]models.Company, 0, len(list))
	for _, c := range list {
		companies = append(companies, models.Company{Code: c.CompanyCode, Name: c.CompanyName})
	}
	return companies
}
