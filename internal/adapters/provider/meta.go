package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/native"
)

const (
	metaURL      = "https://graph.facebook.com"
	metaVersion  = "/v19.0"
	metaFields   = "campaign_id,campaign_name,date_start,impressions,clicks,spend,actions,action_values,account_currency"
	metaPageSize = "500"
	metaMaxPages = 1000
)

// Meta reads campaign insights from the Marketing API.
type Meta struct {
	client
}

// NewMeta creates the Meta Ads adapter.
func NewMeta(opts ...Option) *Meta {
	c := newClient(model.MetaAds, metaURL, opts)
	c.classifyBody = classifyMeta
	return &Meta{client: c}
}

type metaPaging struct {
	Next string `json:"next"`
}

// FetchAccounts lists ad account ids (without the act_ prefix).
func (m *Meta) FetchAccounts(ctx context.Context, cred model.Credential) ([]string, error) {
	token, err := m.token(ctx, cred, "")
	if err != nil {
		return nil, err
	}
	var ids []string
	next := m.endpoint(metaVersion+"/me/adaccounts", url.Values{"fields": {"account_id"}, "limit": {"100"}})
	err = m.pages(ctx, "", next, token, func(raw json.RawMessage) error {
		var data []struct {
			AccountID string `json:"account_id"`
		}
		if err := json.Unmarshal(raw, &data); err != nil {
			return err
		}
		for _, d := range data {
			ids = append(ids, d.AccountID)
		}
		return nil
	})
	return ids, err
}

type metaInsight struct {
	CampaignID      string              `json:"campaign_id"`
	CampaignName    string              `json:"campaign_name"`
	DateStart       string              `json:"date_start"`
	Impressions     native.Value        `json:"impressions"`
	Clicks          native.Value        `json:"clicks"`
	Spend           native.Value        `json:"spend"`
	Actions         []native.MetaAction `json:"actions"`
	ActionValues    []native.MetaAction `json:"action_values"`
	AccountCurrency string              `json:"account_currency"`
}

// FetchMetrics reads daily campaign-level insights for ad account accountID.
func (m *Meta) FetchMetrics(ctx context.Context, cred model.Credential, accountID string, r native.DateRange) (native.Batch, error) {
	batch := native.Batch{Platform: model.MetaAds, AccountID: accountID}
	token, err := m.token(ctx, cred, accountID)
	if err != nil {
		return batch, err
	}
	timeRange, _ := json.Marshal(map[string]string{"since": r.Start.Format(gaDay), "until": r.End.Format(gaDay)})
	q := url.Values{
		"level":          {"campaign"},
		"time_increment": {"1"},
		"fields":         {metaFields},
		"time_range":     {string(timeRange)},
		"limit":          {metaPageSize},
	}
	first := m.endpoint(metaVersion+"/act_"+url.PathEscape(accountID)+"/insights", q)
	err = m.pages(ctx, accountID, first, token, func(raw json.RawMessage) error {
		var data []metaInsight
		if err := json.Unmarshal(raw, &data); err != nil {
			return err
		}
		for _, d := range data {
			batch.Meta = append(batch.Meta, native.MetaRow{
				CampaignID:   d.CampaignID,
				CampaignName: d.CampaignName,
				DateStart:    d.DateStart,
				Impressions:  d.Impressions,
				Clicks:       d.Clicks,
				Spend:        d.Spend,
				Actions:      d.Actions,
				ActionValues: d.ActionValues,
				Currency:     d.AccountCurrency,
			})
		}
		return nil
	})
	return batch, err
}

// pages follows paging.next cursors. Cursors pointing at another host are
// refused so the token never leaves the API.
func (m *Meta) pages(ctx context.Context, account, next, token string, each func(json.RawMessage) error) error {
	for page := 0; next != ""; page++ {
		if page >= metaMaxPages {
			return m.fail(ErrSchemaChanged, account, fmt.Errorf("more than %d pages", metaMaxPages))
		}
		if !strings.HasPrefix(next, m.baseURL+"/") {
			return m.fail(ErrSchemaChanged, account, fmt.Errorf("paging cursor leaves API host: %s", next))
		}
		var resp struct {
			Data   json.RawMessage `json:"data"`
			Paging metaPaging      `json:"paging"`
		}
		if err := m.call(ctx, account, http.MethodGet, next, token, nil, nil, &resp); err != nil {
			return err
		}
		if resp.Data == nil {
			return m.fail(ErrSchemaChanged, account, &missingFieldError{field: "data"})
		}
		if err := each(resp.Data); err != nil {
			return m.fail(ErrSchemaChanged, account, fmt.Errorf("decode data: %w", err))
		}
		next = resp.Paging.Next
	}
	return nil
}

// classifyMeta maps Graph API error codes. Meta reports most failures,
// expired tokens included, as HTTP 400.
func classifyMeta(_ int, body []byte) error {
	var env struct {
		Error struct {
			Code        int  `json:"code"`
			IsTransient bool `json:"is_transient"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) != nil || env.Error.Code == 0 {
		return nil
	}
	switch c := env.Error.Code; {
	case c == 190 || c == 102 || c == 10 || (c >= 200 && c < 300):
		return ErrAuthExpired
	case c == 4 || c == 17 || c == 32 || c == 613 || (c >= 80000 && c <= 80014):
		return ErrRateLimited
	case c == 1 || c == 2 || env.Error.IsTransient:
		return ErrProviderUnavailable
	}
	return nil
}
