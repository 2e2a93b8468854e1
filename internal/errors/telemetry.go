// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
	capture func(*sentry.Event)
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{
		enabled: enabled,
		capture: func(e *sentry.Event) { sentry.CaptureEvent(e) },
	}
}

// InitSentry initializes the Sentry SDK and installs a reporter.
func InitSentry(dsn, environment, release string) error {
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	SetTelemetryReporter(NewSentryReporter(true))
	return nil
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError sends high-value errors to Sentry with scrubbed messages.
// Validation and not-found errors are client mistakes and are never sent.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() || !shouldReport(ee) {
		return
	}

	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Error()))

	event := sentry.NewEvent()
	event.Message = message
	event.Level = levelFor(ee.Category)
	event.Tags = map[string]string{
		"component": ee.Component,
		"category":  string(ee.Category),
	}
	event.Fingerprint = []string{ee.Component, string(ee.Category)}
	event.Exception = []sentry.Exception{{
		Type:  titleFor(ee),
		Value: message,
	}}

	extra := make(map[string]any, len(ee.Context))
	for key, value := range ee.GetContext() {
		if s, ok := value.(string); ok {
			value = scrubMessage(s)
		}
		extra[key] = value
	}
	event.Extra = extra

	sr.capture(event)
	ee.MarkReported()
}

func shouldReport(ee *EnhancedError) bool {
	switch ee.Category {
	case CategoryValidation, CategoryNotFound:
		return false
	}
	return true
}

func titleFor(ee *EnhancedError) string {
	parts := []string{}
	if ee.Component != "" && ee.Component != ComponentUnknown {
		parts = append(parts, strings.ToUpper(ee.Component[:1])+ee.Component[1:])
	}
	parts = append(parts, strings.ReplaceAll(string(ee.Category), "-", " "), "error")
	return strings.Join(parts, " ")
}

func levelFor(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryNetwork, CategoryHTTP, CategoryTimeout, CategoryMQTTPublish:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	reporterMu     sync.RWMutex
	globalReporter TelemetryReporter
)

// SetTelemetryReporter sets the global telemetry reporter. nil disables reporting.
func SetTelemetryReporter(reporter TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	globalReporter = reporter
	hasActiveReporting.Store(reporter != nil && reporter.IsEnabled())
}

func reportToTelemetry(ee *EnhancedError) {
	reporterMu.RLock()
	reporter := globalReporter
	reporterMu.RUnlock()
	if reporter != nil && reporter.IsEnabled() {
		reporter.ReportError(ee)
	}
}

var (
	urlQueryPattern = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	secretPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`(?i)appid[=:]\S+`),
		regexp.MustCompile(`(?i)api[_-]?key[=:]\S+`),
		regexp.MustCompile(`(?i)token[=:]\S+`),
		regexp.MustCompile(`(?i)password[=:]\S+`),
	}
)

// scrubMessage removes query strings and credentials from messages bound for telemetry.
func scrubMessage(message string) string {
	scrubbed := urlQueryPattern.ReplaceAllString(message, "$1?[REDACTED]")
	for _, p := range secretPatterns {
		scrubbed = p.ReplaceAllString(scrubbed, "[REDACTED]")
	}
	return scrubbed
}
