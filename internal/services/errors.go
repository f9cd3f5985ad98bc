// Package services implements the CRM workflows: webhook ingestion,
// enrichment, automatic replies, and the operator actions behind the HTTP
// API. This file centralizes the service-level error values so handlers can
// map them to HTTP results consistently.
package services

import "errors"

var (
	// ErrChatNotFound indicates that the requested chat does not exist.
	ErrChatNotFound = errors.New("chat not found")

	// ErrNotManager is returned when an action that only applies to the
	// manager queue (pin, finish) targets a BOT chat.
	ErrNotManager = errors.New("chat is not in MANAGER status")

	// ErrNotLinked is returned when a chat has no marketplace chat id and
	// therefore cannot receive outbound messages.
	ErrNotLinked = errors.New("chat has no avito chat id")

	// ErrSendFailed wraps a provider failure while sending a message.
	ErrSendFailed = errors.New("avito send failed")

	// ErrProviderFailed wraps a provider failure during a synchronous read
	// such as a history refresh.
	ErrProviderFailed = errors.New("avito request failed")

	// ErrEmptyText is returned when a send request carries no text.
	ErrEmptyText = errors.New("text is empty")

	// ErrDevOnly is returned by development helpers in production.
	ErrDevOnly = errors.New("not available in production")

	// ErrBadJSON is returned when a webhook body is not valid JSON.
	ErrBadJSON = errors.New("bad json")

	// ErrNothingToUpdate is returned when a settings update changes nothing.
	ErrNothingToUpdate = errors.New("nothing to update")

	// ErrNoWebhookURL is returned when no subscription URL was given and
	// PUBLIC_BASE_URL is not configured.
	ErrNoWebhookURL = errors.New("webhook url is not configured")
)
