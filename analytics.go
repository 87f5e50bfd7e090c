package devstore

import (
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
)

const (
	posthogAPIKey = "phc_Qm3rEaY7xJd0vP1sKfT8nWl2cGh5iBu9zAoX4eSvD6t"
	posthogHost   = "https://us.i.posthog.com"
)

var (
	analyticsClient      posthog.Client
	analyticsOnce        sync.Once
	analyticsEnabled     = true
	analyticsInitialized = false
	analyticsDistinctID  string
)

// initAnalytics initializes the PostHog client (lazy, called once).
func initAnalytics() {
	analyticsOnce.Do(func() {
		// Check if analytics is disabled via environment variable
		if os.Getenv("DEVSTORE_DISABLE_ANALYTICS") == "true" {
			analyticsEnabled = false
			return
		}

		client, err := posthog.NewWithConfig(
			posthogAPIKey,
			posthog.Config{
				Endpoint: posthogHost,
			},
		)
		if err != nil {
			// Failed to initialize, disable analytics
			analyticsEnabled = false
			return
		}

		analyticsClient = client
		analyticsInitialized = true
		// Random per-process id; no stable user identifier is kept.
		analyticsDistinctID = uuid.NewString()
	})
}

// trackEvent sends an event to PostHog with static metadata only.
func trackEvent(eventName string, properties map[string]interface{}) {
	initAnalytics()

	if !analyticsEnabled || !analyticsInitialized {
		return
	}

	if properties == nil {
		properties = make(map[string]interface{})
	}
	properties["sdk_version"] = Version
	properties["sdk_language"] = "go"

	// Enqueue event (non-blocking)
	_ = analyticsClient.Enqueue(posthog.Capture{
		DistinctId: analyticsDistinctID,
		Event:      eventName,
		Properties: properties,
	})
}

// trackError tracks error events with error type and location.
func trackError(errorType, location string) {
	trackEvent(errorType, map[string]interface{}{
		"error_type": errorType,
		"location":   location,
	})
}

// CloseAnalytics flushes and closes the telemetry client. Hosts that
// unload the shared library should call this first.
func CloseAnalytics() {
	if analyticsInitialized && analyticsClient != nil {
		_ = analyticsClient.Close()
	}
}
