// Package services contains the services sitting between callers (the web server, the demo command) and the database.
//
// Current services include:
//   - UserService:
//     Is the main handler for user operations. It delegates to a UserStore, logs each outcome and publishes change events.
//   - AMPQService:
//     Is an ampq 0.9.1 broker-agnostic publisher that delivers user change events to a queue for downstream consumers.
package services
