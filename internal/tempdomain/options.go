package tempdomain

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultUpdateInterval is used when Options.UpdateInterval is not set.
const DefaultUpdateInterval = 24 * time.Hour

// Options configures a Service.
type Options struct {
	// CustomDomains are merged in at startup and never removed by a refresh.
	CustomDomains []string
	// AutoUpdate arms the background refresh schedule.
	AutoUpdate bool
	// UpdateInterval is the refresh period; zero means DefaultUpdateInterval.
	UpdateInterval time.Duration
	// StoragePath is the snapshot file. Empty keeps the list in memory only.
	StoragePath string
	// LocalListPath is a line-delimited domain list merged in at startup when
	// there is no persisted snapshot. A missing or unreadable file is logged
	// and skipped.
	LocalListPath string
	// Sources are URLs of plaintext domain lists.
	Sources []string
	// FetchTimeout bounds each source download; zero means DefaultFetchTimeout.
	FetchTimeout time.Duration

	// HTTPClient is used by the default fetcher.
	HTTPClient *http.Client
	// Fetcher replaces the HTTP fetcher when set.
	Fetcher SourceFetcher
	// Defaults replaces the built-in list when non-nil. An empty, non-nil
	// slice means no built-in domains at all.
	Defaults []string
	Logger   *zap.Logger
}

// normalize fills defaults and rejects unusable values.
func (o Options) normalize() (Options, error) {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.UpdateInterval < 0 {
		return o, fmt.Errorf("update interval must not be negative, got %s", o.UpdateInterval)
	}
	if o.UpdateInterval == 0 {
		o.UpdateInterval = DefaultUpdateInterval
	}
	if o.FetchTimeout < 0 {
		return o, fmt.Errorf("fetch timeout must not be negative, got %s", o.FetchTimeout)
	}
	if o.FetchTimeout == 0 {
		o.FetchTimeout = DefaultFetchTimeout
	}
	if o.Defaults == nil {
		o.Defaults = DefaultDomains()
	}

	sources := make([]string, 0, len(o.Sources))
	seen := make(map[string]struct{}, len(o.Sources))
	for _, raw := range o.Sources {
		src := strings.TrimSpace(raw)
		if src == "" {
			continue
		}
		u, err := url.Parse(src)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return o, fmt.Errorf("invalid source url %q", raw)
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	o.Sources = sources
	o.LocalListPath = strings.TrimSpace(o.LocalListPath)

	custom := make([]string, 0, len(o.CustomDomains))
	for _, raw := range o.CustomDomains {
		d, ok := Normalize(raw)
		if !ok {
			o.Logger.Debug("ignoring invalid custom domain", zap.String("domain", raw))
			continue
		}
		custom = append(custom, d)
	}
	o.CustomDomains = custom

	return o, nil
}
