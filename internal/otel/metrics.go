package otel

import "go.opentelemetry.io/otel/metric"

// Metrics holds the Golabot metric instruments.
type Metrics struct {
	InboundMessages metric.Int64Counter
	LLMCallDuration metric.Float64Histogram
	TaskExecutions  metric.Int64Counter
	TaskDuration    metric.Float64Histogram
	ToolErrors      metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.InboundMessages, err = meter.Int64Counter("golabot.channel.inbound",
		metric.WithDescription("Inbound channel events processed"),
	)
	if err != nil {
		return nil, err
	}

	m.LLMCallDuration, err = meter.Float64Histogram("golabot.llm.duration",
		metric.WithDescription("LLM API call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.TaskExecutions, err = meter.Int64Counter("golabot.task.executions",
		metric.WithDescription("Scheduled task executions by status"),
	)
	if err != nil {
		return nil, err
	}

	m.TaskDuration, err = meter.Float64Histogram("golabot.task.duration",
		metric.WithDescription("Scheduled task execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.ToolErrors, err = meter.Int64Counter("golabot.tool.errors",
		metric.WithDescription("Tool calls that reported an error block"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
