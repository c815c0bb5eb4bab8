package endpoint

import (
	"net/http"
	"sort"

	"github.com/brojonat/chainfeed/service/ledger"
)

// AuthScheme describes how a credential is attached to a provider request.
type AuthScheme int

const (
	AuthNone AuthScheme = iota
	AuthHeaderKey
	AuthQueryKey
)

func (s AuthScheme) String() string {
	switch s {
	case AuthHeaderKey:
		return "header"
	case AuthQueryKey:
		return "query"
	default:
		return "none"
	}
}

// Endpoint is one network's base URL plus its authentication requirements.
type Endpoint struct {
	Network  string
	BaseURL  string
	Auth     AuthScheme
	KeyName  string // header or query parameter carrying the credential
	Required bool   // the provider rejects unauthenticated requests
	// Credential is resolved from configuration when the registry is built.
	Credential string
}

// Apply attaches the credential to req according to the auth scheme.
// An empty credential leaves the request untouched.
func (e Endpoint) Apply(req *http.Request) {
	if e.Credential == "" || e.KeyName == "" {
		return
	}
	switch e.Auth {
	case AuthHeaderKey:
		req.Header.Set(e.KeyName, e.Credential)
	case AuthQueryKey:
		q := req.URL.Query()
		q.Set(e.KeyName, e.Credential)
		req.URL.RawQuery = q.Encode()
	}
}

// Registry maps network names to endpoints for a single provider.
// It is immutable once built and safe for concurrent use.
type Registry struct {
	provider  string
	endpoints map[string]Endpoint
}

// NewRegistry builds a registry for provider from the given endpoints.
func NewRegistry(provider string, endpoints ...Endpoint) *Registry {
	r := &Registry{
		provider:  provider,
		endpoints: make(map[string]Endpoint, len(endpoints)),
	}
	for _, ep := range endpoints {
		r.endpoints[ep.Network] = ep
	}
	return r
}

// Provider returns the name of the provider the registry belongs to.
func (r *Registry) Provider() string {
	return r.provider
}

// Lookup resolves a network name. Unknown names fail with a ConfigurationError.
func (r *Registry) Lookup(network string) (Endpoint, error) {
	ep, ok := r.endpoints[network]
	if !ok {
		return Endpoint{}, &ledger.ConfigurationError{
			Provider: r.provider,
			Network:  network,
			Reason:   "unknown network",
		}
	}
	return ep, nil
}

// Networks returns the registered network names in sorted order.
func (r *Registry) Networks() []string {
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithCredential returns a copy with cred bound to every keyed endpoint.
func (r *Registry) WithCredential(cred string) *Registry {
	out := r.clone()
	for name, ep := range out.endpoints {
		if ep.Auth != AuthNone {
			ep.Credential = cred
			out.endpoints[name] = ep
		}
	}
	return out
}

// WithBaseURL returns a copy with the base URL of one network replaced.
// Unknown networks are added with no authentication.
func (r *Registry) WithBaseURL(network, baseURL string) *Registry {
	out := r.clone()
	ep, ok := out.endpoints[network]
	if !ok {
		ep = Endpoint{Network: network}
	}
	ep.BaseURL = baseURL
	out.endpoints[network] = ep
	return out
}

func (r *Registry) clone() *Registry {
	out := &Registry{
		provider:  r.provider,
		endpoints: make(map[string]Endpoint, len(r.endpoints)),
	}
	for name, ep := range r.endpoints {
		out.endpoints[name] = ep
	}
	return out
}

// Validate reports a ConfigurationError for any endpoint that requires a
// credential but has none bound.
func (r *Registry) Validate() error {
	for _, name := range r.Networks() {
		ep := r.endpoints[name]
		if ep.Required && ep.Credential == "" {
			return &ledger.ConfigurationError{
				Provider: r.provider,
				Network:  name,
				Reason:   "credential required but not configured",
			}
		}
		if ep.BaseURL == "" {
			return &ledger.ConfigurationError{
				Provider: r.provider,
				Network:  name,
				Reason:   "base URL is empty",
			}
		}
	}
	return nil
}
