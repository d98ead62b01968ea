package config

// Check reports whether one piece of configuration is present. Values are
// never exposed.
type Check struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// Health lists configuration presence for the message processor. It does not
// test connectivity.
func (c *Config) Health() []Check {
	store := c.Storage.ConnectionString != ""
	if c.Storage.Backend == EventStoreSQLite {
		store = c.Storage.SQLitePath != ""
	}
	queue := c.Queue.Name != ""
	if c.Queue.Backend == QueueBackendAzure {
		queue = queue && c.Storage.ConnectionString != ""
	}
	return []Check{
		{Name: "queue", Configured: queue},
		{Name: "event_store", Configured: store},
		{Name: "aws_endpoint", Configured: c.AWS.Endpoint != ""},
		{Name: "aws_credentials", Configured: c.AWS.AccessKeyID != "" && c.AWS.SecretAccessKey != ""},
		{Name: "report_sender", Configured: c.Report.From != ""},
		{Name: "report_recipient", Configured: c.Report.To != ""},
	}
}

// Healthy is true when every check passed.
func Healthy(checks []Check) bool {
	for _, ch := range checks {
		if !ch.Configured {
			return false
		}
	}
	return true
}
