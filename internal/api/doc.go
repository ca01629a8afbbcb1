// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET /healthz and /readyz for health checks.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/scrape to preview a profile without storing it.
//   - /v1/sites for the site lifecycle: create, generate, patch, headshot
//     upload, export and delete.
//   - GET /sites/{slug} for the live page.
package api
