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
	tiktokURL      = "https://business-api.tiktok.com"
	tiktokPrefix   = "/open_api/v1.3"
	tiktokPageSize = 1000
	tiktokMaxPages = 1000
)

var tiktokMetrics = []string{"campaign_name", "impressions", "clicks", "spend", "conversion", "total_complete_payment_rate", "currency"}

// TikTok reads the integrated report of the TikTok Business API. It answers
// HTTP 200 for most failures and signals them through the code envelope.
type TikTok struct {
	client
}

// NewTikTok creates the TikTok Ads adapter. WithOAuth supplies the app id and
// secret used to list advertisers.
func NewTikTok(opts ...Option) *TikTok {
	c := newClient(model.TikTokAds, tiktokURL, opts)
	c.authorize = func(h http.Header, token string) { h.Set("Access-Token", token) }
	return &TikTok{client: c}
}

type tiktokEnvelope struct {
	Code    *int            `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (t *TikTok) get(ctx context.Context, account, path string, q url.Values, token string, out any) error {
	var env tiktokEnvelope
	if err := t.call(ctx, account, http.MethodGet, t.endpoint(tiktokPrefix+path, q), token, nil, nil, &env); err != nil {
		return err
	}
	if env.Code == nil {
		return t.fail(ErrSchemaChanged, account, &missingFieldError{field: "code"})
	}
	if *env.Code != 0 {
		return &Error{
			Kind:     classifyTikTok(*env.Code),
			Platform: model.TikTokAds,
			Account:  account,
			Err:      fmt.Errorf("code %d: %s", *env.Code, env.Message),
		}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return t.fail(ErrSchemaChanged, account, fmt.Errorf("decode data: %w", err))
	}
	return nil
}

// FetchAccounts lists authorized advertiser ids.
func (t *TikTok) FetchAccounts(ctx context.Context, cred model.Credential) ([]string, error) {
	token, err := t.token(ctx, cred, "")
	if err != nil {
		return nil, err
	}
	var data struct {
		List []struct {
			AdvertiserID string `json:"advertiser_id"`
		} `json:"list"`
	}
	q := url.Values{"app_id": {t.clientID}, "secret": {t.clientSecret}}
	if err := t.get(ctx, "", "/oauth2/advertiser/get/", q, token, &data); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(data.List))
	for _, a := range data.List {
		ids = append(ids, a.AdvertiserID)
	}
	return ids, nil
}

type tiktokReport struct {
	List []struct {
		Dimensions struct {
			CampaignID  native.Value `json:"campaign_id"`
			StatTimeDay string       `json:"stat_time_day"`
		} `json:"dimensions"`
		Metrics struct {
			CampaignName    string       `json:"campaign_name"`
			Impressions     native.Value `json:"impressions"`
			Clicks          native.Value `json:"clicks"`
			Spend           native.Value `json:"spend"`
			Conversion      native.Value `json:"conversion"`
			ConversionValue native.Value `json:"total_complete_payment_rate"`
			Currency        string       `json:"currency"`
		} `json:"metrics"`
	} `json:"list"`
	PageInfo struct {
		Page      int `json:"page"`
		TotalPage int `json:"total_page"`
	} `json:"page_info"`
}

// FetchMetrics reads the daily campaign report for advertiser accountID.
func (t *TikTok) FetchMetrics(ctx context.Context, cred model.Credential, accountID string, r native.DateRange) (native.Batch, error) {
	batch := native.Batch{Platform: model.TikTokAds, AccountID: accountID}
	token, err := t.token(ctx, cred, accountID)
	if err != nil {
		return batch, err
	}
	dims, _ := json.Marshal([]string{"campaign_id", "stat_time_day"})
	mets, _ := json.Marshal(tiktokMetrics)

	for page := 1; page <= tiktokMaxPages; page++ {
		q := url.Values{
			"advertiser_id": {accountID},
			"report_type":   {"BASIC"},
			"data_level":    {"AUCTION_CAMPAIGN"},
			"dimensions":    {string(dims)},
			"metrics":       {string(mets)},
			"start_date":    {r.Start.Format(gaDay)},
			"end_date":      {r.End.Format(gaDay)},
			"page":          {fmt.Sprint(page)},
			"page_size":     {fmt.Sprint(tiktokPageSize)},
		}
		var rep tiktokReport
		if err := t.get(ctx, accountID, "/report/integrated/get/", q, token, &rep); err != nil {
			return batch, err
		}
		for _, row := range rep.List {
			batch.TikTok = append(batch.TikTok, native.TikTokRow{
				CampaignID:      string(row.Dimensions.CampaignID),
				CampaignName:    row.Metrics.CampaignName,
				StatTimeDay:     row.Dimensions.StatTimeDay,
				Impressions:     row.Metrics.Impressions,
				Clicks:          row.Metrics.Clicks,
				Spend:           row.Metrics.Spend,
				Conversions:     row.Metrics.Conversion,
				ConversionValue: row.Metrics.ConversionValue,
				Currency:        row.Metrics.Currency,
			})
		}
		if page >= rep.PageInfo.TotalPage {
			return batch, nil
		}
	}
	return batch, t.fail(ErrSchemaChanged, accountID, fmt.Errorf("more than %d pages", tiktokMaxPages))
}

// classifyTikTok maps Business API codes to failure kinds.
func classifyTikTok(code int) error {
	switch {
	case code == 40100 || code == 40133 || code == 61000:
		return ErrRateLimited
	case code == 40102 || code == 40104 || code == 40105 || code == 40001:
		return ErrAuthExpired
	case code >= 50000 && code < 60000:
		return ErrProviderUnavailable
	}
	return ErrSchemaChanged
}
