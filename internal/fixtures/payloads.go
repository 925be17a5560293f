package fixtures

import "fmt"

// Native provider responses as documented by each vendor, trimmed to the
// fields the adapters read. Each report covers two campaign-days.

// GoogleAnalyticsAccounts is an Admin API accountSummaries response.
const GoogleAnalyticsAccounts = `{
  "accountSummaries": [
    {"account": "accounts/1", "propertySummaries": [
      {"property": "properties/1001", "displayName": "Shop"},
      {"property": "properties/1002", "displayName": "Blog"}
    ]}
  ]
}`

// GoogleAnalyticsReport is a runReport response with metrics in a different
// order than requested.
const GoogleAnalyticsReport = `{
  "dimensionHeaders": [{"name": "sessionCampaignId"}, {"name": "sessionCampaignName"}, {"name": "date"}],
  "metricHeaders": [
    {"name": "advertiserAdClicks", "type": "TYPE_INTEGER"},
    {"name": "advertiserAdImpressions", "type": "TYPE_INTEGER"},
    {"name": "advertiserAdCost", "type": "TYPE_CURRENCY"},
    {"name": "conversions", "type": "TYPE_INTEGER"},
    {"name": "totalRevenue", "type": "TYPE_CURRENCY"}
  ],
  "rows": [
    {"dimensionValues": [{"value": "ga-1"}, {"value": "Summer"}, {"value": "20250801"}],
     "metricValues": [{"value": "40"}, {"value": "2000"}, {"value": "50.5"}, {"value": "4"}, {"value": "200"}]},
    {"dimensionValues": [{"value": "ga-1"}, {"value": "Summer"}, {"value": "20250802"}],
     "metricValues": [{"value": "60"}, {"value": "2500"}, {"value": "70"}, {"value": "3"}, {"value": "150"}]}
  ],
  "rowCount": 2,
  "metadata": {"currencyCode": "USD", "timeZone": "UTC"}
}`

// GoogleAdsCustomers is a listAccessibleCustomers response.
const GoogleAdsCustomers = `{"resourceNames": ["customers/1234567890", "customers/2222222222"]}`

// GoogleAdsStream is a searchStream response of two chunks.
const GoogleAdsStream = `[
  {"results": [{
    "customer": {"resourceName": "customers/1234567890", "currencyCode": "USD"},
    "campaign": {"resourceName": "customers/1234567890/campaigns/111", "id": "111", "name": "Brand"},
    "segments": {"date": "2025-08-01"},
    "metrics": {"impressions": "1000", "clicks": "50", "costMicros": "12500000", "conversions": 2.5, "conversionsValue": 80}
  }]},
  {"results": [{
    "customer": {"resourceName": "customers/1234567890", "currencyCode": "USD"},
    "campaign": {"resourceName": "customers/1234567890/campaigns/111", "id": "111", "name": "Brand"},
    "segments": {"date": "2025-08-02"},
    "metrics": {"impressions": "1200", "clicks": "70", "costMicros": "15000000", "conversions": 3, "conversionsValue": 95.5}
  }], "requestId": "r1"}
]`

// MetaAdAccounts is a /me/adaccounts response.
const MetaAdAccounts = `{"data": [{"account_id": "555", "id": "act_555"}], "paging": {}}`

// MetaInsights returns an insights page for one campaign-day; next is the
// paging.next cursor, empty on the last page.
func MetaInsights(day, next string) string {
	paging := `{}`
	if next != "" {
		paging = fmt.Sprintf(`{"next": %q}`, next)
	}
	return fmt.Sprintf(`{
  "data": [{
    "campaign_id": "m-1", "campaign_name": "Prospecting", "date_start": %q, "date_stop": %q,
    "impressions": "2000", "clicks": "40", "spend": "55.10", "account_currency": "USD",
    "actions": [{"action_type": "link_click", "value": "40"}, {"action_type": "purchase", "value": "4"}],
    "action_values": [{"action_type": "purchase", "value": "210.5"}]
  }],
  "paging": %s
}`, day, day, paging)
}

// MetaError is a Graph API error envelope.
func MetaError(code int) string {
	return fmt.Sprintf(`{"error": {"message": "error", "type": "OAuthException", "code": %d, "fbtrace_id": "x"}}`, code)
}

// LinkedInAccounts is an adAccounts search response.
const LinkedInAccounts = `{"elements": [{"id": 503000001, "currency": "USD", "status": "ACTIVE"}]}`

// LinkedInAccount is one adAccounts entity.
const LinkedInAccount = `{"id": 503000001, "currency": "USD", "name": "Acme"}`

// LinkedInAnalytics is an adAnalytics response.
const LinkedInAnalytics = `{"elements": [
  {"pivotValues": ["urn:li:sponsoredCampaign:987"],
   "dateRange": {"start": {"year": 2025, "month": 8, "day": 1}, "end": {"year": 2025, "month": 8, "day": 1}},
   "impressions": 300, "clicks": 9, "costInLocalCurrency": "45.00",
   "externalWebsiteConversions": 1, "conversionValueInLocalCurrency": "120.00"},
  {"pivotValues": ["urn:li:sponsoredCampaign:987"],
   "dateRange": {"start": {"year": 2025, "month": 8, "day": 2}, "end": {"year": 2025, "month": 8, "day": 2}},
   "impressions": 280, "clicks": 7, "costInLocalCurrency": "41.30",
   "externalWebsiteConversions": 0, "conversionValueInLocalCurrency": "0"}
]}`

// TikTokAdvertisers is an advertiser/get response.
const TikTokAdvertisers = `{"code": 0, "message": "OK", "request_id": "1",
  "data": {"list": [{"advertiser_id": "7000000001", "advertiser_name": "Acme"}]}}`

// TikTokReport returns one page of the integrated report.
func TikTokReport(page, totalPages int, day string) string {
	return fmt.Sprintf(`{"code": 0, "message": "OK", "request_id": "2", "data": {
  "list": [{
    "dimensions": {"campaign_id": "1790000000000001", "stat_time_day": "%s 00:00:00"},
    "metrics": {"campaign_name": "Spark", "impressions": "5000", "clicks": "75", "spend": "30.00",
                "conversion": "5", "total_complete_payment_rate": "140.00", "currency": "USD"}
  }],
  "page_info": {"page": %d, "page_size": 1000, "total_number": %d, "total_page": %d}
}}`, day, page, totalPages, totalPages)
}

// TikTokError is a non-zero code envelope.
func TikTokError(code int) string {
	return fmt.Sprintf(`{"code": %d, "message": "failure", "request_id": "3", "data": {}}`, code)
}
