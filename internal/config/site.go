package config

// SiteConfig holds per-host request settings.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers sent with every request to this host.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent for this host.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Concurrency overrides the global asset concurrency for this host.
	// If zero, the global value is used.
	Concurrency int `yaml:"concurrency,omitempty"`
}

// File represents the structure of the .pageloader configuration file.
type File struct {
	// Sites maps hosts (e.g. "example.com" or "localhost:8080") to their
	// configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults applies to every host unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host, merged over defaults.
// Headers are merged key by key; other fields are replaced when set.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Headers = make(map[string]string, len(cf.Defaults.Headers))
	for k, v := range cf.Defaults.Headers {
		result.Headers[k] = v
	}

	if siteConfig, ok := cf.Sites[host]; ok {
		if siteConfig.Cookie != "" {
			result.Cookie = siteConfig.Cookie
		}
		if siteConfig.UserAgent != "" {
			result.UserAgent = siteConfig.UserAgent
		}
		if siteConfig.Concurrency != 0 {
			result.Concurrency = siteConfig.Concurrency
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}

	if len(result.Headers) == 0 {
		result.Headers = nil
	}
	return result
}
