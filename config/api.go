package config

// GetAuthSkipperPaths returns a list of paths to skip authentication for
func GetAuthSkipperPaths() []string {
	// health and metrics are scraped without credentials
	return []string{"/health", "/metrics", "/version"}
}
