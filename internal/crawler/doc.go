// Package crawler implements the resumable NAV ingestion engine: the typed
// page results returned by the retrying page fetcher, the retry policies, and
// the Engine that walks the entity catalog page by page while persisting a
// progress cursor before every fetch.
package crawler
