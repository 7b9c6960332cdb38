// Package contracts defines the shared data contracts of the execution spine:
// events, attestations, authority scopes, decision contexts, and the closed
// command set. Everything derived from these types is recomputed on read;
// nothing derived is ever persisted as truth.
package contracts

import "time"

// EventType identifies an event in the append-only log.
type EventType string

const (
	EventTransactionStateAdvanced EventType = "TransactionStateAdvanced"
	EventAuthorityGranted         EventType = "AuthorityGranted"
	EventAuthorityRevoked         EventType = "AuthorityRevoked"
	EventContingencyCreated       EventType = "ContingencyCreated"
	EventContingencyResolved      EventType = "ContingencyResolved"
	EventContingencyFailed        EventType = "ContingencyFailed"
)

// Event is a single immutable record from the external event store.
// Events are totally ordered by OccurredAt within an entity and are never
// mutated or deleted. The spine only reads them.
type Event struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	EventType  EventType      `json:"event_type"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	ActorID    string         `json:"actor_id,omitempty"`
}

// StateAdvancedPayload is the decoded payload of a TransactionStateAdvanced event.
type StateAdvancedPayload struct {
	ToState TransactionState
}

// AuthorityGrantedPayload is the decoded payload of an AuthorityGranted event.
// A nil ValidUntil means "no upper bound", not "expired"; a nil ValidFrom means
// the grant is effective from the event itself.
type AuthorityGrantedPayload struct {
	ActorID    string
	Scope      []string
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// AuthorityRevokedPayload is the decoded payload of an AuthorityRevoked event.
type AuthorityRevokedPayload struct {
	ActorID string
}

// DecodeStateAdvanced extracts the typed payload of a state-advance event.
// Malformed payloads report ok=false and the event is ignored by the fold.
func (e Event) DecodeStateAdvanced() (StateAdvancedPayload, bool) {
	if e.EventType != EventTransactionStateAdvanced {
		return StateAdvancedPayload{}, false
	}
	raw, ok := e.Payload["to_state"].(string)
	if !ok {
		return StateAdvancedPayload{}, false
	}
	state := TransactionState(raw)
	if !state.Valid() {
		return StateAdvancedPayload{}, false
	}
	return StateAdvancedPayload{ToState: state}, true
}

// DecodeAuthorityGranted extracts the typed payload of a grant event.
func (e Event) DecodeAuthorityGranted() (AuthorityGrantedPayload, bool) {
	if e.EventType != EventAuthorityGranted {
		return AuthorityGrantedPayload{}, false
	}
	p := AuthorityGrantedPayload{}
	p.ActorID, _ = e.Payload["actor_id"].(string)
	if p.ActorID == "" {
		return AuthorityGrantedPayload{}, false
	}
	switch scope := e.Payload["scope"].(type) {
	case []string:
		p.Scope = scope
	case []any:
		for _, v := range scope {
			if s, ok := v.(string); ok {
				p.Scope = append(p.Scope, s)
			}
		}
	default:
		return AuthorityGrantedPayload{}, false
	}
	p.ValidFrom = decodeTime(e.Payload["valid_from"])
	p.ValidUntil = decodeTime(e.Payload["valid_until"])
	return p, true
}

// DecodeAuthorityRevoked extracts the typed payload of a revocation event.
func (e Event) DecodeAuthorityRevoked() (AuthorityRevokedPayload, bool) {
	if e.EventType != EventAuthorityRevoked {
		return AuthorityRevokedPayload{}, false
	}
	actor, _ := e.Payload["actor_id"].(string)
	if actor == "" {
		return AuthorityRevokedPayload{}, false
	}
	return AuthorityRevokedPayload{ActorID: actor}, true
}

func decodeTime(v any) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return &parsed
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return &parsed
		}
	}
	return nil
}
