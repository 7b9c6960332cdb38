package fold

import (
	"time"

	"github.com/deedgrid/spine/pkg/contracts"
)

// Authority folds the permission scope of one actor from grant and revocation
// events. Grants accumulate tokens and tighten the temporal window to the most
// recent grant's bounds. A revocation clears the entire accumulated scope and
// window regardless of what preceded it; revocation is absolute, not
// selective. Temporal expiry is enforced here at read time: if now falls
// outside the folded [valid_from, valid_until) window the returned scope is
// empty.
func Authority(events []contracts.Event, actorID string, now time.Time) contracts.AuthorityScope {
	scope := contracts.AuthorityScope{}
	for _, e := range ordered(events) {
		switch e.EventType {
		case contracts.EventAuthorityGranted:
			payload, ok := e.DecodeAuthorityGranted()
			if !ok || payload.ActorID != actorID {
				continue
			}
			for _, token := range payload.Scope {
				if !scope.Has(token) {
					scope.Tokens = append(scope.Tokens, token)
				}
			}
			scope.ValidFrom = payload.ValidFrom
			scope.ValidUntil = payload.ValidUntil
		case contracts.EventAuthorityRevoked:
			payload, ok := e.DecodeAuthorityRevoked()
			if !ok || payload.ActorID != actorID {
				continue
			}
			scope = contracts.AuthorityScope{}
		}
	}
	if !scope.ActiveAt(now) {
		return contracts.AuthorityScope{}
	}
	return scope
}
