package event

import (
	"fmt"
	"sync"

	"github.com/openclearing/bountyledger/internal/platform/errors"
)

// Definition describes one appendable event type.
type Definition struct {
	Type Type
}

// Registry tracks the event types the ledger accepts.
type Registry struct {
	mu    sync.RWMutex
	types map[Type]Definition
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[Type]Definition)}
}

// NewEconomyRegistry constructs a registry with every economic event type
// registered.
func NewEconomyRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []Type{TypeGenesis, TypeMint, TypeTransfer, TypePayout, TypeBurn} {
		if err := r.Register(Definition{Type: t}); err != nil {
			panic(fmt.Sprintf("register builtin event type: %v", err))
		}
	}
	return r
}

// Register adds a definition to the registry.
func (r *Registry) Register(def Definition) error {
	if !def.Type.IsValid() {
		return fmt.Errorf("event type %q is not registrable", def.Type)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[def.Type]; ok {
		return fmt.Errorf("event type %q is already registered", def.Type)
	}
	r.types[def.Type] = def
	return nil
}

// ValidateForAppend checks an event before it is sealed into the chain:
// the type must be registered and the payload must decode into its tagged
// variant and pass variant validation.
func (r *Registry) ValidateForAppend(evt Event) (Event, error) {
	r.mu.RLock()
	_, ok := r.types[evt.Type]
	r.mu.RUnlock()
	if !ok {
		return Event{}, errors.New(errors.CodeEventInvalid, fmt.Sprintf("event type %q is not registered", evt.Type))
	}
	if len(evt.PayloadJSON) == 0 {
		return Event{}, errors.New(errors.CodeEventInvalid, "event payload is required")
	}
	payload, err := DecodePayload(evt)
	if err != nil {
		return Event{}, err
	}
	if err := payload.Validate(); err != nil {
		return Event{}, err
	}
	return evt, nil
}
