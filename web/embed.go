package web

import "embed"

// FS holds the HTML templates (templates/) and the static assets (static/)
// served by the web server.
//
//go:embed templates static
var FS embed.FS
