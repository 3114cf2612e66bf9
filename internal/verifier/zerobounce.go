package verifier

import (
	"context"
	"fmt"
	"net/url"
)

const ZeroBounceAPIBase = "https://api.zerobounce.net/v2"

type ZeroBounce struct {
	settings Settings
}

func init() {
	Register("zerobounce", func(s Settings) Verifier {
		return NewZeroBounce(s)
	})
}

func NewZeroBounce(s Settings) *ZeroBounce {
	return &ZeroBounce{settings: s}
}

func (z *ZeroBounce) Verify(ctx context.Context, email string) (bool, error) {
	q := url.Values{}
	q.Set("api_key", z.settings.APIKey)
	q.Set("email", email)
	reqURL := fmt.Sprintf("%s/validate?%s", z.settings.base(ZeroBounceAPIBase), q.Encode())

	var result struct {
		Status string `json:"status"` // "valid", "invalid", "catch-all", ...
	}
	if err := getJSON(ctx, z.settings.client(), reqURL, &result); err != nil {
		return false, fmt.Errorf("zerobounce: %w", err)
	}
	return result.Status == "valid", nil
}
