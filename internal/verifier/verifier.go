package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
)

var (
	ErrUnknownProvider  = errors.New("unknown verifier")
	ErrUnexpectedStatus = errors.New("unexpected verifier status")
)

// Verifier asks an external service whether an address can receive mail.
type Verifier interface {
	Verify(ctx context.Context, email string) (bool, error)
}

// Settings configures a provider. Empty BaseURL selects the provider's
// public API; nil Client means http.DefaultClient.
type Settings struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func (s Settings) client() *http.Client {
	if s.Client == nil {
		return http.DefaultClient
	}
	return s.Client
}

func (s Settings) base(fallback string) string {
	if s.BaseURL == "" {
		return fallback
	}
	return s.BaseURL
}

type Factory func(Settings) Verifier

var registry = map[string]Factory{}

func Register(name string, factory Factory) {
	if _, exists := registry[name]; exists {
		panic("verifier " + name + " already registered")
	}
	registry[name] = factory
}

func NewFromProvider(name string, settings Settings) (Verifier, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return factory(settings), nil
}

// Providers lists the registered provider names.
func Providers() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func getJSON(ctx context.Context, client *http.Client, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
