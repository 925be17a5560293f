package provider

import (
	"context"
	"net/http"
	"net/url"

	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/native"
)

const (
	gaDataURL  = "https://analyticsdata.googleapis.com"
	gaAdminURL = "https://analyticsadmin.googleapis.com"
	gaPageSize = 100000
	gaDay      = "2006-01-02"
)

var (
	gaDimensions = []string{"sessionCampaignId", "sessionCampaignName", "date"}
	gaMetrics    = []string{"advertiserAdImpressions", "advertiserAdClicks", "advertiserAdCost", "conversions", "totalRevenue"}
)

// GoogleAnalytics reads campaign performance from GA4 properties through the
// Data API runReport method.
type GoogleAnalytics struct {
	client
	adminURL string
}

// NewGoogleAnalytics creates the GA4 adapter. WithBaseURL redirects both the
// Data and the Admin API.
func NewGoogleAnalytics(opts ...Option) *GoogleAnalytics {
	c := newClient(model.GoogleAnalytics, gaDataURL, opts)
	c.classifyBody = classifyGoogle
	admin := gaAdminURL
	if c.baseURL != gaDataURL {
		admin = c.baseURL
	}
	return &GoogleAnalytics{client: c, adminURL: admin}
}

type gaAccountSummaries struct {
	AccountSummaries []struct {
		PropertySummaries []struct {
			Property string `json:"property"`
		} `json:"propertySummaries"`
	} `json:"accountSummaries"`
	NextPageToken string `json:"nextPageToken"`
}

// FetchAccounts lists the GA4 property ids visible to the credential.
func (g *GoogleAnalytics) FetchAccounts(ctx context.Context, cred model.Credential) ([]string, error) {
	token, err := g.token(ctx, cred, "")
	if err != nil {
		return nil, err
	}
	var ids []string
	pageToken := ""
	for {
		q := url.Values{"pageSize": {"200"}}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var resp gaAccountSummaries
		if err := g.call(ctx, "", http.MethodGet, g.adminURL+"/v1beta/accountSummaries?"+q.Encode(), token, nil, nil, &resp); err != nil {
			return nil, err
		}
		for _, a := range resp.AccountSummaries {
			for _, p := range a.PropertySummaries {
				ids = append(ids, trimResource(p.Property, "properties/"))
			}
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

type gaName struct {
	Name string `json:"name"`
}

type gaRunReportRequest struct {
	DateRanges []gaDateRange `json:"dateRanges"`
	Dimensions []gaName      `json:"dimensions"`
	Metrics    []gaName      `json:"metrics"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}

type gaDateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type gaValue struct {
	Value native.Value `json:"value"`
}

type gaRunReportResponse struct {
	DimensionHeaders []gaName `json:"dimensionHeaders"`
	MetricHeaders    []gaName `json:"metricHeaders"`
	Rows             []struct {
		DimensionValues []gaValue `json:"dimensionValues"`
		MetricValues    []gaValue `json:"metricValues"`
	} `json:"rows"`
	RowCount int `json:"rowCount"`
	Metadata struct {
		CurrencyCode string `json:"currencyCode"`
	} `json:"metadata"`
}

// FetchMetrics runs a campaign-by-day report for property accountID.
func (g *GoogleAnalytics) FetchMetrics(ctx context.Context, cred model.Credential, accountID string, r native.DateRange) (native.Batch, error) {
	batch := native.Batch{Platform: model.GoogleAnalytics, AccountID: accountID}
	token, err := g.token(ctx, cred, accountID)
	if err != nil {
		return batch, err
	}
	req := gaRunReportRequest{
		DateRanges: []gaDateRange{{StartDate: r.Start.Format(gaDay), EndDate: r.End.Format(gaDay)}},
		Dimensions: names(gaDimensions),
		Metrics:    names(gaMetrics),
		Limit:      gaPageSize,
	}
	endpoint := g.endpoint("/v1beta/properties/"+url.PathEscape(accountID)+":runReport", nil)
	for {
		var resp gaRunReportResponse
		if err := g.call(ctx, accountID, http.MethodPost, endpoint, token, nil, req, &resp); err != nil {
			return batch, err
		}
		rows, err := g.rows(accountID, resp)
		if err != nil {
			return batch, err
		}
		batch.GoogleAnalytics = append(batch.GoogleAnalytics, rows...)
		req.Offset += len(resp.Rows)
		if len(resp.Rows) == 0 || req.Offset >= resp.RowCount {
			return batch, nil
		}
	}
}

// rows resolves values by header name so that column order changes do not
// silently shift metrics.
func (g *GoogleAnalytics) rows(account string, resp gaRunReportResponse) ([]native.GARow, error) {
	if len(resp.Rows) == 0 {
		return nil, nil
	}
	dim, err := g.index(account, resp.DimensionHeaders, gaDimensions)
	if err != nil {
		return nil, err
	}
	met, err := g.index(account, resp.MetricHeaders, gaMetrics)
	if err != nil {
		return nil, err
	}
	out := make([]native.GARow, 0, len(resp.Rows))
	for _, row := range resp.Rows {
		if len(row.DimensionValues) != len(resp.DimensionHeaders) || len(row.MetricValues) != len(resp.MetricHeaders) {
			return nil, g.fail(ErrSchemaChanged, account, errMalformedRow)
		}
		d := func(name string) string { return string(row.DimensionValues[dim[name]].Value) }
		m := func(name string) native.Value { return row.MetricValues[met[name]].Value }
		out = append(out, native.GARow{
			CampaignID:   d("sessionCampaignId"),
			CampaignName: d("sessionCampaignName"),
			Date:         d("date"),
			Impressions:  m("advertiserAdImpressions"),
			Clicks:       m("advertiserAdClicks"),
			Cost:         m("advertiserAdCost"),
			Conversions:  m("conversions"),
			Revenue:      m("totalRevenue"),
			Currency:     resp.Metadata.CurrencyCode,
		})
	}
	return out, nil
}

func (g *GoogleAnalytics) index(account string, headers []gaName, want []string) (map[string]int, error) {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[h.Name] = i
	}
	for _, w := range want {
		if _, ok := idx[w]; !ok {
			return nil, g.fail(ErrSchemaChanged, account, &missingFieldError{field: w})
		}
	}
	return idx, nil
}

func names(ns []string) []gaName {
	out := make([]gaName, len(ns))
	for i, n := range ns {
		out[i] = gaName{Name: n}
	}
	return out
}
