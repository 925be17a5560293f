// Package model contains the canonical domain types passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Platform identifies a connected advertising or analytics provider.
type Platform string

// Supported platforms. The set is closed.
const (
	GoogleAnalytics Platform = "google_analytics"
	GoogleAds       Platform = "google_ads"
	MetaAds         Platform = "meta_ads"
	LinkedInAds     Platform = "linkedin_ads"
	TikTokAds       Platform = "tiktok_ads"
)

// Platforms lists every supported platform in a stable order.
func Platforms() []Platform {
	return []Platform{GoogleAnalytics, GoogleAds, MetaAds, LinkedInAds, TikTokAds}
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case GoogleAnalytics, GoogleAds, MetaAds, LinkedInAds, TikTokAds:
		return true
	}
	return false
}

func (p Platform) String() string { return string(p) }

// Channel is the marketing channel a platform reports for.
func (p Platform) Channel() string {
	switch p {
	case GoogleAnalytics:
		return "web_analytics"
	case GoogleAds:
		return "search"
	case MetaAds, TikTokAds:
		return "social"
	case LinkedInAds:
		return "professional_social"
	}
	return "unknown"
}

// ParsePlatform accepts canonical names plus a few common aliases.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "google_analytics", "ga", "ga4":
		return GoogleAnalytics, nil
	case "google_ads", "adwords":
		return GoogleAds, nil
	case "meta_ads", "meta", "facebook":
		return MetaAds, nil
	case "linkedin_ads", "linkedin":
		return LinkedInAds, nil
	case "tiktok_ads", "tiktok":
		return TikTokAds, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
}
