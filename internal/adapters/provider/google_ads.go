package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/native"
)

const (
	googleAdsURL     = "https://googleads.googleapis.com"
	googleAdsVersion = "/v17"
	googleAdsQuery   = `SELECT campaign.id, campaign.name, segments.date, metrics.impressions, metrics.clicks, ` +
		`metrics.cost_micros, metrics.conversions, metrics.conversions_value, customer.currency_code ` +
		`FROM campaign WHERE segments.date BETWEEN '%s' AND '%s'`
)

// GoogleAds reads campaign performance with GAQL over searchStream.
type GoogleAds struct {
	client
}

// NewGoogleAds creates the Google Ads adapter. A developer token is required
// by the API and set with WithDeveloperToken.
func NewGoogleAds(opts ...Option) *GoogleAds {
	c := newClient(model.GoogleAds, googleAdsURL, opts)
	c.classifyBody = classifyGoogle
	return &GoogleAds{client: c}
}

func (g *GoogleAds) headers() http.Header {
	h := http.Header{}
	if g.developerToken != "" {
		h.Set("developer-token", g.developerToken)
	}
	return h
}

// FetchAccounts lists accessible customer ids.
func (g *GoogleAds) FetchAccounts(ctx context.Context, cred model.Credential) ([]string, error) {
	token, err := g.token(ctx, cred, "")
	if err != nil {
		return nil, err
	}
	var resp struct {
		ResourceNames []string `json:"resourceNames"`
	}
	endpoint := g.endpoint(googleAdsVersion+"/customers:listAccessibleCustomers", nil)
	if err := g.call(ctx, "", http.MethodGet, endpoint, token, g.headers(), nil, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.ResourceNames))
	for _, n := range resp.ResourceNames {
		ids = append(ids, trimResource(n, "customers/"))
	}
	return ids, nil
}

type googleAdsStreamChunk struct {
	Results []struct {
		Customer struct {
			CurrencyCode string `json:"currencyCode"`
		} `json:"customer"`
		Campaign struct {
			ID   native.Value `json:"id"`
			Name string       `json:"name"`
		} `json:"campaign"`
		Segments struct {
			Date string `json:"date"`
		} `json:"segments"`
		Metrics struct {
			Impressions      native.Value `json:"impressions"`
			Clicks           native.Value `json:"clicks"`
			CostMicros       native.Value `json:"costMicros"`
			Conversions      native.Value `json:"conversions"`
			ConversionsValue native.Value `json:"conversionsValue"`
		} `json:"metrics"`
	} `json:"results"`
}

// FetchMetrics streams campaign-by-day rows for customer accountID.
func (g *GoogleAds) FetchMetrics(ctx context.Context, cred model.Credential, accountID string, r native.DateRange) (native.Batch, error) {
	batch := native.Batch{Platform: model.GoogleAds, AccountID: accountID}
	token, err := g.token(ctx, cred, accountID)
	if err != nil {
		return batch, err
	}
	body := map[string]string{"query": fmt.Sprintf(googleAdsQuery, r.Start.Format(gaDay), r.End.Format(gaDay))}
	endpoint := g.endpoint(googleAdsVersion+"/customers/"+url.PathEscape(accountID)+"/googleAds:searchStream", nil)

	var chunks []googleAdsStreamChunk
	if err := g.call(ctx, accountID, http.MethodPost, endpoint, token, g.headers(), body, &chunks); err != nil {
		return batch, err
	}
	for _, ch := range chunks {
		for _, res := range ch.Results {
			batch.GoogleAds = append(batch.GoogleAds, native.GoogleAdsRow{
				CampaignID:       string(res.Campaign.ID),
				CampaignName:     res.Campaign.Name,
				Date:             res.Segments.Date,
				Impressions:      res.Metrics.Impressions,
				Clicks:           res.Metrics.Clicks,
				CostMicros:       res.Metrics.CostMicros,
				Conversions:      res.Metrics.Conversions,
				ConversionsValue: res.Metrics.ConversionsValue,
				Currency:         res.Customer.CurrencyCode,
			})
		}
	}
	return batch, nil
}

// classifyGoogle maps the google.rpc.Status envelope shared by Google APIs.
func classifyGoogle(_ int, body []byte) error {
	var env struct {
		Error struct {
			Status string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) != nil {
		return nil
	}
	switch env.Error.Status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return ErrAuthExpired
	case "RESOURCE_EXHAUSTED":
		return ErrRateLimited
	case "UNAVAILABLE", "DEADLINE_EXCEEDED", "INTERNAL":
		return ErrProviderUnavailable
	}
	return nil
}
