package hook

import (
	"context"
	"fmt"

	"bulkhook-backend/internal/broker"
)

// DocResolver loads the full document view for (doctype, name).
type DocResolver func(ctx context.Context, doctype, name string) (map[string]any, error)

// AuditSink records the outcome of every publication attempt.
type AuditSink interface {
	Record(ctx context.Context, topic, configRef string, payload any, response, status string)
}

// ErrorSink records failures that must not interrupt processing.
type ErrorSink interface {
	Log(ctx context.Context, title string, err error)
}

// DefinitionGetter is the slice of the definition store the publisher
// needs.
type DefinitionGetter interface {
	Get(ctx context.Context, name string) (*KafkaHook, error)
}

// Publisher executes dequeued dispatch tasks: resolve the document,
// build the payload, send it to the broker, and audit the outcome.
// Broker failures are caught and audited, never re-raised; delivery is
// best effort with a full audit trail and no automatic retry.
type Publisher struct {
	defs    DefinitionGetter
	resolve DocResolver
	builder *Builder
	sender  broker.Sender
	audit   AuditSink
	errors  ErrorSink
}

func NewPublisher(defs DefinitionGetter, resolve DocResolver, builder *Builder, sender broker.Sender, audit AuditSink, errors ErrorSink) *Publisher {
	return &Publisher{
		defs:    defs,
		resolve: resolve,
		builder: builder,
		sender:  sender,
		audit:   audit,
		errors:  errors,
	}
}

// Run executes one task. The returned error is non-nil only for failures
// that should surface to the caller: missing definitions, or document
// resolution failures on request-originated tasks.
func (p *Publisher) Run(ctx context.Context, task *DispatchTask) error {
	def, err := p.defs.Get(ctx, task.HookName)
	if err != nil {
		return fmt.Errorf("load kafka hook %s: %w", task.HookName, err)
	}

	doc := task.Doc
	if doc == nil {
		doc, err = p.resolve(ctx, task.Doctype, task.DocName)
		if err != nil {
			if task.FromRequest {
				return fmt.Errorf("resolve %s/%s: %w", task.Doctype, task.DocName, err)
			}
			p.errors.Log(ctx, "Error running Kafka hook "+def.Name, err)
			return nil
		}
	}

	p.publish(ctx, def, doc)
	return nil
}

// RunBatch executes one hook over many documents. Resolution failures
// propagate only when the batch originated from a live request; otherwise
// they are logged and the batch continues.
func (p *Publisher) RunBatch(ctx context.Context, hookName, doctype string, docNames []string, fromRequest bool) error {
	def, err := p.defs.Get(ctx, hookName)
	if err != nil {
		return fmt.Errorf("load kafka hook %s: %w", hookName, err)
	}

	for _, name := range docNames {
		doc, err := p.resolve(ctx, doctype, name)
		if err != nil {
			if fromRequest {
				return fmt.Errorf("resolve %s/%s: %w", doctype, name, err)
			}
			p.errors.Log(ctx, "Error running Kafka hook "+def.Name, err)
			continue
		}
		p.publish(ctx, def, doc)
	}
	return nil
}

// publish builds and sends one message. All failures end here: logged,
// audited under the error-prefixed topic, and swallowed so a bad broker
// never fails the business transaction.
func (p *Publisher) publish(ctx context.Context, def *KafkaHook, doc map[string]any) {
	payload, err := p.builder.Build(doc, def)
	if err != nil {
		p.errors.Log(ctx, "Kafka hook payload failed: "+def.Name, err)
		p.audit.Record(ctx, "Error: "+def.Topic, def.Settings, nil, "", StatusFailed)
		return
	}

	key := ""
	if payload.Structured && payload.Key != "" {
		key = payload.Key
	}

	response, err := p.sender.Send(ctx, def.Settings, def.Topic, key, payload.Data, payload.ProtoObj, payload.Structured)
	if err != nil {
		p.errors.Log(ctx, "Kafka hook send failed: "+def.Name, err)
		p.audit.Record(ctx, "Error: "+def.Topic, def.Settings, payload.Data, "", StatusFailed)
		return
	}

	p.audit.Record(ctx, def.Topic, def.Settings, payload.Data, response, StatusDelivered)
}
