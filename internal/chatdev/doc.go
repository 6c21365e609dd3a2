// Package chatdev provides an HTTP client for the code-generation service API.
//
// # Overview
//
// The service accepts natural-language prompts, runs a generation task per
// prompt and exposes the resulting projects. This package translates typed
// method calls into requests against the service's fixed REST endpoints,
// validates inputs locally and classifies failures into a small error taxonomy.
//
// # Client Usage
//
//	client, err := chatdev.NewClient("http://localhost:8000", apiKey,
//		chatdev.WithLogger(logger),
//		chatdev.WithTimeout(15*time.Second),
//	)
//	if err != nil {
//		return err
//	}
//
//	created, err := client.GenerateProject(ctx, chatdev.GenerateRequest{
//		Task: "A todo list app with reminders",
//		Name: "Todo",
//	})
//
// # API Endpoints
//
// Paths are relative to the versioned prefix api/v1/:
//
//   - POST generate: start a task
//   - GET status/{id}: task snapshot
//   - GET tasks?status&limit&offset: paged task list
//   - POST cancel/{id}: cancel a pending or running task
//   - DELETE task/{id}: delete a task record (header auth only)
//   - POST build-apk: package a completed project
//   - GET health: versioned health check
//
// SimpleHealthCheck calls the unversioned GET /health.
//
// # Base URL Normalization
//
// The base URL always ends with "/api/v1/". A missing scheme defaults to
// http, a trailing slash is appended and the prefix is added unless the URL
// already contains it:
//
//   - "localhost:8000" → http://localhost:8000/api/v1/
//   - "http://host:8000/" → http://host:8000/api/v1/
//   - "http://host:8000/api/v1" → http://host:8000/api/v1/
//
// # Authentication
//
// Write operations carry the key as the api_key body field. DeleteTask and
// BuildAPK also send it as the api-key header; the delete endpoint accepts
// nothing else.
//
// # Error Handling
//
// Every failure is an *Error with a Kind:
//
//   - KindInvalidArgument: rejected locally, no request was sent
//   - KindAuthentication: HTTP 401
//   - KindNotFound: HTTP 404, TaskID set for task endpoints
//   - KindValidation: HTTP 422 with the server's detail
//   - KindConflict: HTTP 400 on cancel, e.g. the task is already terminal
//   - KindTransport: connection failures and undecodable payloads
//   - KindUnexpectedStatus: any other non-2xx response
//
// Use errors.Is with the Err* sentinels, KindOf, or TaskIDOf.
//
// # Logging and Tracing
//
// The client logs through the injected *slog.Logger (discarded by default)
// and opens one span per operation on the global OpenTelemetry tracer.
// Each request carries a fresh X-Request-ID.
//
// # Thread Safety
//
// The Client is safe for concurrent use. SetBaseURL and SetAPIKey are each
// atomic; a request reads both values once before it is built.
package chatdev
