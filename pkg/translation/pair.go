package translation

import (
	"fmt"
	"strings"
)

// LanguagePair selects the remote model and the host serving it.
// Nothing here has a compiled-in default; it all comes from configuration.
type LanguagePair struct {
	Name      string `json:"name"`
	Model     string `json:"model"`
	Endpoint  string `json:"endpoint"`
	MasterKey string `json:"master_key"`
	// Relay is an optional proxy URL prefixed to every request URL
	Relay string `json:"relay,omitempty"`
}

// Validate reports the first missing field
func (p LanguagePair) Validate() error {
	switch {
	case p.Model == "":
		return fmt.Errorf("language pair %q: model is required", p.Name)
	case p.Endpoint == "":
		return fmt.Errorf("language pair %q: endpoint is required", p.Name)
	case p.MasterKey == "":
		return fmt.Errorf("language pair %q: master key is required", p.Name)
	}
	return nil
}

// BaseURL returns the URL all endpoints are resolved against
func (p LanguagePair) BaseURL() string {
	endpoint := strings.TrimSuffix(p.Endpoint, "/")
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	if p.Relay == "" {
		return endpoint
	}
	return strings.TrimSuffix(p.Relay, "/") + "/" + endpoint
}
