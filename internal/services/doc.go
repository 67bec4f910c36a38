// Package services assembles the components each experimentd process runs.
//
// There is no global container. BuildAPI and BuildWeb read the process
// configuration, construct the dependencies in order (telemetry, logger,
// storage or API client, event publisher) and hand them back as a Registry
// that owns their shutdown.
package services
