package services

import (
	"context"
	"sync"

	"finbuddy/internal/amqp"
	"finbuddy/internal/analysis"
)

// QueueTrigger enqueues automatic runs onto the worker queue. The single
// consumer on that queue serializes them.
type QueueTrigger struct {
	client *amqp.Client
}

func NewQueueTrigger(client *amqp.Client) *QueueTrigger {
	return &QueueTrigger{client: client}
}

func (t *QueueTrigger) TriggerAutoAnalysis(ctx context.Context, reason string) error {
	return t.client.PublishAnalysisRun(ctx, reason)
}

// InlineTrigger runs the automatic analysis synchronously in-process, for
// deployments without a message broker. The mutex serializes concurrent
// triggers the way the worker queue would.
type InlineTrigger struct {
	mu           sync.Mutex
	orchestrator *analysis.Orchestrator
}

func NewInlineTrigger(orchestrator *analysis.Orchestrator) *InlineTrigger {
	return &InlineTrigger{orchestrator: orchestrator}
}

func (t *InlineTrigger) TriggerAutoAnalysis(ctx context.Context, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.orchestrator.RunAuto(ctx)
	return err
}

var (
	_ AnalysisTrigger = (*QueueTrigger)(nil)
	_ AnalysisTrigger = (*InlineTrigger)(nil)
)
