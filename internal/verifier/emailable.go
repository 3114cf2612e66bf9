package verifier

import (
	"context"
	"fmt"
	"net/url"
)

const EmailableAPIBase = "https://api.emailable.com/v1"

type Emailable struct {
	settings Settings
}

func init() {
	Register("emailable", func(s Settings) Verifier {
		return NewEmailable(s)
	})
}

func NewEmailable(s Settings) *Emailable {
	return &Emailable{settings: s}
}

func (e *Emailable) Verify(ctx context.Context, email string) (bool, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("api_key", e.settings.APIKey)
	reqURL := fmt.Sprintf("%s/verify?%s", e.settings.base(EmailableAPIBase), q.Encode())

	var result struct {
		State string `json:"state"` // "deliverable", "undeliverable", ...
	}
	if err := getJSON(ctx, e.settings.client(), reqURL, &result); err != nil {
		return false, fmt.Errorf("emailable: %w", err)
	}
	return result.State == "deliverable", nil
}
