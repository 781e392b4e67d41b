// Package session implements encrypted, tamper-evident sessions carried
// entirely in a client cookie. The server holds no session-id-indexed
// store; an optional revocation side-channel records identifiers of
// sessions that must no longer be honored.
package session

// Reserved session fields.
const (
	// FieldUser holds the browser-visible identity. Only public-safe
	// data belongs here.
	FieldUser = "user"

	// FieldSecure holds server-only data. It travels inside the sealed
	// blob but is stripped from every browser-visible view.
	FieldSecure = "secure"

	// FieldLoggedInAt is stamped (unix milliseconds) when a session is
	// first created.
	FieldLoggedInAt = "loggedInAt"

	// fieldID is the session identifier used for revocation. Assigned at
	// creation, never exposed to the browser-visible view.
	fieldID = "id"
)

// Session is the decrypted session payload: an open map of fields with a
// few reserved keys.
type Session map[string]any

// ID returns the session identifier, or "" for a session that has never
// been committed.
func (s Session) ID() string {
	id, _ := s[fieldID].(string)
	return id
}

// Clone returns a deep copy. Nested map[string]any values are copied
// recursively; other values are copied by assignment.
func (s Session) Clone() Session {
	if s == nil {
		return Session{}
	}
	out := make(Session, len(s))
	for k, v := range s {
		if m, ok := v.(map[string]any); ok {
			out[k] = map[string]any(Session(m).Clone())
			continue
		}
		out[k] = v
	}
	return out
}

// PublicView returns the browser-visible projection of the session:
// everything except the secure payload and the internal identifier.
func (s Session) PublicView() Session {
	out := s.Clone()
	delete(out, FieldSecure)
	delete(out, fieldID)
	return out
}

// Merge deep-merges src over dst and returns dst. Where both sides hold a
// map for the same key the maps are merged recursively; on any other
// conflict src wins. Non-conflicting keys from both sides are preserved.
func Merge(dst, src Session) Session {
	if dst == nil {
		dst = Session{}
	}
	for k, v := range src {
		sm, srcIsMap := v.(map[string]any)
		dm, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = map[string]any(Merge(Session(dm), Session(sm)))
			continue
		}
		dst[k] = v
	}
	return dst
}
