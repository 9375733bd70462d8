package kafka

// Topic constants for the application
const (
	// TopicReadings carries raw sensor readings published by the campus
	// gateways and the simulator.
	TopicReadings = "energia-readings"
	// TopicAlerts carries alert-created events for downstream consumers.
	TopicAlerts = "energia-alerts"
)
