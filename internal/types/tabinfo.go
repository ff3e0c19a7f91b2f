package types

import "strings"

// TabInfo describes a page target that can be captured.
type TabInfo struct {
	TargetID   string `json:"target_id"`
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	Restricted bool   `json:"restricted"`
}

// restrictedPrefixes are pages the browser refuses to capture or script.
var restrictedPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"chrome-search://",
	"chrome-untrusted://",
	"devtools://",
	"edge://",
	"about:",
	"view-source:",
	"https://chromewebstore.google.com",
	"https://chrome.google.com/webstore",
}

// IsRestrictedURL reports whether captures of url will be denied.
func IsRestrictedURL(url string) bool {
	u := strings.ToLower(strings.TrimSpace(url))
	if u == "" {
		return true
	}
	for _, p := range restrictedPrefixes {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}
