package mirror

// Settings is the [mirror] configuration section.
type Settings struct {
	Config  `mapstructure:",squash"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	Redis   RedisConfig   `mapstructure:"redis"`
	File    FileConfig    `mapstructure:"file"`
}

// BuildSinks returns a sink for every enabled target.
func BuildSinks(s Settings) []Sink {
	var sinks []Sink
	if s.Webhook.Enabled && s.Webhook.URL != "" {
		sinks = append(sinks, NewWebhookSink(s.Webhook))
	}
	if s.Redis.Enabled && s.Redis.Addr != "" {
		sinks = append(sinks, NewRedisSink(s.Redis))
	}
	if s.File.Enabled && s.File.Path != "" {
		sinks = append(sinks, NewFileSink(s.File))
	}
	return sinks
}
