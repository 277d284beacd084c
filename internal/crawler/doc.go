// Package crawler defines the message, document and product types shared by
// the pipeline, together with the collaborator interfaces (queues, fetchers,
// set stores, sinks and per-domain components) the pipeline dispatches through.
package crawler
