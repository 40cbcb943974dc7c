package hook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/CloudyKit/jet/v6"
	"github.com/spf13/cast"
)

// Payload is the built outbound message.
type Payload struct {
	Data       any    // business payload (template JSON or producer data)
	ProtoObj   []byte // alternate serialized representation, if any
	Key        string // extraction key for broker partitioning
	Structured bool   // typed object rather than a generic JSON map
}

// ProducerResult is what a payload producer returns.
type ProducerResult struct {
	Data     any
	ProtoObj []byte
}

// Keyed is implemented by producer data that exposes a partition key.
type Keyed interface {
	PayloadID() string
}

// PayloadProducer builds a payload from a document view. Implementations
// are registered by name at startup and referenced from Method-mode
// definitions.
type PayloadProducer interface {
	Produce(doc map[string]any) (*ProducerResult, error)
}

// ProducerRegistry maps producer names to implementations.
type ProducerRegistry struct {
	mu        sync.RWMutex
	producers map[string]PayloadProducer
}

func NewProducerRegistry() *ProducerRegistry {
	return &ProducerRegistry{producers: make(map[string]PayloadProducer)}
}

func (r *ProducerRegistry) Register(name string, p PayloadProducer) {
	r.mu.Lock()
	r.producers[name] = p
	r.mu.Unlock()
}

func (r *ProducerRegistry) Resolve(name string) (PayloadProducer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.producers[name]
	return p, ok
}

func (r *ProducerRegistry) Has(name string) bool {
	_, ok := r.Resolve(name)
	return ok
}

// Builder produces the outbound payload for a definition and document.
type Builder struct {
	producers *ProducerRegistry
}

func NewBuilder(producers *ProducerRegistry) *Builder {
	return &Builder{producers: producers}
}

// Build renders the payload. Errors propagate to the caller; the
// publisher decides how to record them.
func (b *Builder) Build(doc map[string]any, def *KafkaHook) (*Payload, error) {
	if def.ProcessData == ProcessMethod {
		return b.buildFromProducer(doc, def)
	}
	return buildFromTemplate(doc, def)
}

func (b *Builder) buildFromProducer(doc map[string]any, def *KafkaHook) (*Payload, error) {
	producer, ok := b.producers.Resolve(def.Method)
	if !ok {
		return nil, fmt.Errorf("payload producer %q not registered", def.Method)
	}
	result, err := producer.Produce(doc)
	if err != nil {
		return nil, fmt.Errorf("producer %s: %w", def.Method, err)
	}
	return &Payload{
		Data:       result.Data,
		ProtoObj:   result.ProtoObj,
		Key:        extractKey(result.Data),
		Structured: true,
	}, nil
}

func buildFromTemplate(doc map[string]any, def *KafkaHook) (*Payload, error) {
	rendered, err := RenderTemplate(def.RequestJSON, CoerceDates(doc))
	if err != nil {
		return nil, fmt.Errorf("render template for %s: %w", def.Name, err)
	}
	var data any
	if err := json.Unmarshal([]byte(rendered), &data); err != nil {
		return nil, fmt.Errorf("parse rendered payload for %s: %w", def.Name, err)
	}
	return &Payload{Data: data}, nil
}

// extractKey pulls the partition key off producer data: either the Keyed
// interface or an "id" entry on a map payload.
func extractKey(data any) string {
	switch v := data.(type) {
	case Keyed:
		return v.PayloadID()
	case map[string]any:
		if id, ok := v["id"]; ok {
			return cast.ToString(id)
		}
	}
	return ""
}

// RenderTemplate renders a payload template against a document view plus
// the safe-utils namespace.
func RenderTemplate(body string, doc map[string]any) (string, error) {
	loader := jet.NewInMemLoader()
	loader.Set("payload", body)
	set := jet.NewSet(loader)

	tmpl, err := set.GetTemplate("payload")
	if err != nil {
		return "", err
	}

	vars := make(jet.VarMap)
	vars.Set("doc", doc)
	vars.Set("utils", SafeUtils())

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars, nil); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ValidateTemplate parses a template body without rendering it. Used at
// definition save time.
func ValidateTemplate(body string) error {
	loader := jet.NewInMemLoader()
	loader.Set("payload", body)
	set := jet.NewSet(loader)
	_, err := set.GetTemplate("payload")
	return err
}

// CoerceDates returns a copy of the document view with all time values
// converted to strings, so templates see uniform scalar fields.
func CoerceDates(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = coerceValue(v)
	}
	return out
}

func coerceValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339)
	case map[string]any:
		return CoerceDates(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = coerceValue(item)
		}
		return out
	default:
		return v
	}
}
