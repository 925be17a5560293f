package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/native"
)

const (
	linkedInURL     = "https://api.linkedin.com"
	linkedInVersion = "202401"
	linkedInFields  = "pivotValues,dateRange,impressions,clicks,costInLocalCurrency,externalWebsiteConversions,conversionValueInLocalCurrency"
)

// LinkedIn reads campaign analytics from the Marketing REST API.
type LinkedIn struct {
	client
}

// NewLinkedIn creates the LinkedIn Ads adapter.
func NewLinkedIn(opts ...Option) *LinkedIn {
	return &LinkedIn{client: newClient(model.LinkedInAds, linkedInURL, opts)}
}

func linkedInHeaders() http.Header {
	h := http.Header{}
	h.Set("LinkedIn-Version", linkedInVersion)
	h.Set("X-Restli-Protocol-Version", "2.0.0")
	return h
}

type linkedInAccount struct {
	ID       native.Value `json:"id"`
	Currency string       `json:"currency"`
}

// FetchAccounts lists sponsored ad account ids.
func (l *LinkedIn) FetchAccounts(ctx context.Context, cred model.Credential) ([]string, error) {
	token, err := l.token(ctx, cred, "")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Elements []linkedInAccount `json:"elements"`
	}
	if err := l.call(ctx, "", http.MethodGet, l.endpoint("/rest/adAccounts", url.Values{"q": {"search"}}), token, linkedInHeaders(), nil, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Elements))
	for _, e := range resp.Elements {
		ids = append(ids, string(e.ID))
	}
	return ids, nil
}

type linkedInElement struct {
	PivotValues []string `json:"pivotValues"`
	DateRange   struct {
		Start native.LinkedInDate `json:"start"`
	} `json:"dateRange"`
	Impressions     native.Value `json:"impressions"`
	Clicks          native.Value `json:"clicks"`
	Cost            native.Value `json:"costInLocalCurrency"`
	Conversions     native.Value `json:"externalWebsiteConversions"`
	ConversionValue native.Value `json:"conversionValueInLocalCurrency"`
}

// FetchMetrics reads daily campaign analytics for ad account accountID.
// Analytics carry no currency, so the account is read first.
func (l *LinkedIn) FetchMetrics(ctx context.Context, cred model.Credential, accountID string, r native.DateRange) (native.Batch, error) {
	batch := native.Batch{Platform: model.LinkedInAds, AccountID: accountID}
	token, err := l.token(ctx, cred, accountID)
	if err != nil {
		return batch, err
	}

	var acct linkedInAccount
	if err := l.call(ctx, accountID, http.MethodGet, l.endpoint("/rest/adAccounts/"+url.PathEscape(accountID), nil), token, linkedInHeaders(), nil, &acct); err != nil {
		return batch, err
	}

	var resp struct {
		Elements []linkedInElement `json:"elements"`
	}
	if err := l.call(ctx, accountID, http.MethodGet, l.analyticsURL(accountID, r), token, linkedInHeaders(), nil, &resp); err != nil {
		return batch, err
	}
	if resp.Elements == nil {
		return batch, l.fail(ErrSchemaChanged, accountID, &missingFieldError{field: "elements"})
	}
	for _, e := range resp.Elements {
		row := native.LinkedInRow{
			Start:           e.DateRange.Start,
			Impressions:     e.Impressions,
			Clicks:          e.Clicks,
			Cost:            e.Cost,
			Conversions:     e.Conversions,
			ConversionValue: e.ConversionValue,
			Currency:        acct.Currency,
		}
		if len(e.PivotValues) > 0 {
			row.CampaignURN = e.PivotValues[0]
		}
		batch.LinkedIn = append(batch.LinkedIn, row)
	}
	return batch, nil
}

// analyticsURL builds the Rest.li query by hand: its tuple syntax must not be
// percent-encoded, only the URN inside List() is.
func (l *LinkedIn) analyticsURL(accountID string, r native.DateRange) string {
	date := func(y, m, d int) string { return fmt.Sprintf("(year:%d,month:%d,day:%d)", y, m, d) }
	q := []string{
		"q=analytics",
		"pivot=CAMPAIGN",
		"timeGranularity=DAILY",
		"dateRange=(start:" + date(r.Start.Year(), int(r.Start.Month()), r.Start.Day()) +
			",end:" + date(r.End.Year(), int(r.End.Month()), r.End.Day()) + ")",
		"accounts=List(" + url.QueryEscape("urn:li:sponsoredAccount:"+accountID) + ")",
		"fields=" + linkedInFields,
	}
	return l.baseURL + "/rest/adAnalytics?" + strings.Join(q, "&")
}
