package config

import "time"

// RunSettings are the resolved [run] options.
type RunSettings struct {
	Interval time.Duration
	MaxTicks int
	StopOn   string
}

// SinkSettings are the resolved [sinks] options. Empty paths disable the
// corresponding sink.
type SinkSettings struct {
	Console        bool
	JSONL          string
	JSONLMaxSizeMB int
	JSONLMaxFiles  int
	SQLite         string
	MQTTBroker     string
	MQTTTopic      string
	MQTTClientID   string
	BufferSize     int
	FlushInterval  time.Duration
}

// Run resolves the [run] section.
func (c *Config) Run() RunSettings {
	return RunSettings{
		Interval: c.Duration(SectionRun, "interval"),
		MaxTicks: c.Int(SectionRun, "max-ticks"),
		StopOn:   c.String(SectionRun, "stop-on"),
	}
}

// Sinks resolves the [sinks] section.
func (c *Config) Sinks() SinkSettings {
	return SinkSettings{
		Console:        c.Bool(SectionSinks, "console"),
		JSONL:          c.String(SectionSinks, "jsonl"),
		JSONLMaxSizeMB: c.Int(SectionSinks, "jsonl-max-size-mb"),
		JSONLMaxFiles:  c.Int(SectionSinks, "jsonl-max-files"),
		SQLite:         c.String(SectionSinks, "sqlite"),
		MQTTBroker:     c.String(SectionSinks, "mqtt-broker"),
		MQTTTopic:      c.String(SectionSinks, "mqtt-topic"),
		MQTTClientID:   c.String(SectionSinks, "mqtt-client-id"),
		BufferSize:     c.Int(SectionSinks, "buffer-size"),
		FlushInterval:  c.Duration(SectionSinks, "flush-interval"),
	}
}
