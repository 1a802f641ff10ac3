package saraAuth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CreateCodeSession stores metadata under a fresh session id and a
// uniformly drawn numeric code of codeLength digits (4..12). The code must
// reach the user out of band; it is never logged or audited.
func (e *Engine) CreateCodeSession(ctx context.Context, kind SessionKind, metadata SessionMetadata, codeLength int, ttl time.Duration) (CodeSession, error) {
	if e == nil || e.codeStore == nil {
		return CodeSession{}, ErrEngineNotReady
	}
	if err := checkCodeKind(kind); err != nil {
		return CodeSession{}, err
	}
	if ttl <= 0 {
		return CodeSession{}, ErrSessionTTLInvalid
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return CodeSession{}, fmt.Errorf("encode session metadata: %w", err)
	}

	created, err := e.codeStore.CreateOne(ctx, kind.String(), payload, codeLength, ttl)
	if err != nil {
		return CodeSession{}, mapSessionError(err)
	}

	e.metricInc(MetricCodeSessionCreated)
	e.emitAudit(ctx, auditEventCodeSessionCreated, true, metadata["user_id"], created.SessionID, kind, nil, nil)
	return CodeSession{
		Kind:      kind,
		SessionID: created.SessionID,
		Code:      created.Code,
		ExpiresAt: e.now().Add(ttl),
		Handle:    SessionHandle{kind: kind, key: created.Key},
	}, nil
}

// GetCodeSession returns the metadata without consuming the session. A
// wrong code, an expired session and a consumed one all yield
// [ErrSessionNotFound].
//
// GetCodeSession followed by [Engine.ConsumeSession] is not atomic: two
// callers can both read before either deletes. Use [Engine.TakeCodeSession]
// when the session must be single-use.
func (e *Engine) GetCodeSession(ctx context.Context, kind SessionKind, sessionID, code string) (SessionMetadata, SessionHandle, error) {
	if e == nil || e.codeStore == nil {
		return nil, SessionHandle{}, ErrEngineNotReady
	}
	if err := checkCodeKind(kind); err != nil {
		return nil, SessionHandle{}, err
	}

	payload, key, err := e.codeStore.GetOne(ctx, kind.String(), sessionID, code)
	if err != nil {
		return nil, SessionHandle{}, e.sessionMiss(err, MetricCodeSessionMiss)
	}
	metadata, err := decodeSessionMetadata(payload)
	if err != nil {
		return nil, SessionHandle{}, err
	}
	return metadata, SessionHandle{kind: kind, key: key}, nil
}

// TakeCodeSession atomically reads and deletes a code session.
func (e *Engine) TakeCodeSession(ctx context.Context, kind SessionKind, sessionID, code string) (SessionMetadata, error) {
	if e == nil || e.codeStore == nil {
		return nil, ErrEngineNotReady
	}
	if err := checkCodeKind(kind); err != nil {
		return nil, err
	}

	payload, err := e.codeStore.TakeOne(ctx, kind.String(), sessionID, code)
	if err != nil {
		return nil, e.sessionMiss(err, MetricCodeSessionMiss)
	}
	metadata, err := decodeSessionMetadata(payload)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricCodeSessionConsumed)
	e.emitAudit(ctx, auditEventCodeSessionConsumed, true, metadata["user_id"], sessionID, kind, nil, nil)
	return metadata, nil
}

// DeleteCodeSession removes a session and reports whether it existed.
// Deleting twice is not an error.
func (e *Engine) DeleteCodeSession(ctx context.Context, kind SessionKind, sessionID, code string) (bool, error) {
	if e == nil || e.codeStore == nil {
		return false, ErrEngineNotReady
	}
	if err := checkCodeKind(kind); err != nil {
		return false, err
	}
	deleted, err := e.codeStore.DeleteOne(ctx, kind.String(), sessionID, code)
	if err != nil {
		return false, mapSessionError(err)
	}
	return deleted, nil
}

// CreatePasskeySession stores a WebAuthn ceremony under a fresh session id.
func (e *Engine) CreatePasskeySession(ctx context.Context, kind SessionKind, metadata PasskeyMetadata, ttl time.Duration) (PasskeySession, error) {
	if e == nil || e.passkeyStore == nil {
		return PasskeySession{}, ErrEngineNotReady
	}
	if err := checkPasskeyKind(kind); err != nil {
		return PasskeySession{}, err
	}
	if ttl <= 0 {
		return PasskeySession{}, ErrSessionTTLInvalid
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return PasskeySession{}, fmt.Errorf("encode passkey metadata: %w", err)
	}

	sessionID, key, err := e.passkeyStore.CreateOne(ctx, kind.String(), payload, ttl)
	if err != nil {
		return PasskeySession{}, mapSessionError(err)
	}

	e.metricInc(MetricPasskeySessionCreated)
	e.emitAudit(ctx, auditEventPasskeySessionCreated, true, metadata.UserID, sessionID, kind, nil, nil)
	return PasskeySession{
		Kind:      kind,
		SessionID: sessionID,
		ExpiresAt: e.now().Add(ttl),
		Handle:    SessionHandle{kind: kind, key: key},
	}, nil
}

// GetPasskeySession returns the ceremony without consuming it.
func (e *Engine) GetPasskeySession(ctx context.Context, kind SessionKind, sessionID string) (PasskeyMetadata, SessionHandle, error) {
	if e == nil || e.passkeyStore == nil {
		return PasskeyMetadata{}, SessionHandle{}, ErrEngineNotReady
	}
	if err := checkPasskeyKind(kind); err != nil {
		return PasskeyMetadata{}, SessionHandle{}, err
	}

	payload, key, err := e.passkeyStore.GetOne(ctx, kind.String(), sessionID)
	if err != nil {
		return PasskeyMetadata{}, SessionHandle{}, mapSessionError(err)
	}
	metadata, err := decodePasskeyMetadata(payload)
	if err != nil {
		return PasskeyMetadata{}, SessionHandle{}, err
	}
	return metadata, SessionHandle{kind: kind, key: key}, nil
}

// TakePasskeySession atomically reads and deletes a ceremony.
func (e *Engine) TakePasskeySession(ctx context.Context, kind SessionKind, sessionID string) (PasskeyMetadata, error) {
	if e == nil || e.passkeyStore == nil {
		return PasskeyMetadata{}, ErrEngineNotReady
	}
	if err := checkPasskeyKind(kind); err != nil {
		return PasskeyMetadata{}, err
	}

	payload, err := e.passkeyStore.TakeOne(ctx, kind.String(), sessionID)
	if err != nil {
		return PasskeyMetadata{}, mapSessionError(err)
	}
	metadata, err := decodePasskeyMetadata(payload)
	if err != nil {
		return PasskeyMetadata{}, err
	}

	e.metricInc(MetricPasskeySessionConsumed)
	e.emitAudit(ctx, auditEventPasskeySessionConsumed, true, metadata.UserID, sessionID, kind, nil, nil)
	return metadata, nil
}

// DeletePasskeySession removes a passkey session and reports whether it
// existed. Deleting twice is not an error; code kinds are rejected.
func (e *Engine) DeletePasskeySession(ctx context.Context, kind SessionKind, sessionID string) (bool, error) {
	if e == nil || e.passkeyStore == nil {
		return false, ErrEngineNotReady
	}
	if err := checkPasskeyKind(kind); err != nil {
		return false, err
	}
	deleted, err := e.passkeyStore.DeleteOne(ctx, kind.String(), sessionID)
	if err != nil {
		return false, mapSessionError(err)
	}
	return deleted, nil
}

// ConsumeSession deletes the session named by handle and reports whether
// it still existed.
func (e *Engine) ConsumeSession(ctx context.Context, handle SessionHandle) (bool, error) {
	if e == nil || e.codeStore == nil || e.passkeyStore == nil {
		return false, ErrEngineNotReady
	}
	if handle.IsZero() || !handle.kind.Valid() {
		return false, ErrSessionNotFound
	}

	var (
		deleted bool
		err     error
	)
	if handle.kind.passkey() {
		deleted, err = e.passkeyStore.DeleteKey(ctx, handle.key)
	} else {
		deleted, err = e.codeStore.DeleteKey(ctx, handle.key)
	}
	if err != nil {
		return false, mapSessionError(err)
	}
	return deleted, nil
}

func (e *Engine) sessionMiss(err error, metric MetricID) error {
	mapped := mapSessionError(err)
	if mapped == ErrSessionNotFound {
		e.metricInc(metric)
	}
	return mapped
}

func checkCodeKind(kind SessionKind) error {
	if !kind.Valid() || kind.passkey() {
		return ErrSessionKindInvalid
	}
	return nil
}

func checkPasskeyKind(kind SessionKind) error {
	if !kind.Valid() || !kind.passkey() {
		return ErrSessionKindInvalid
	}
	return nil
}

// decodeSessionMetadata treats an undecodable payload as a miss.
func decodeSessionMetadata(payload []byte) (SessionMetadata, error) {
	metadata := SessionMetadata{}
	if len(payload) == 0 {
		return metadata, nil
	}
	if err := json.Unmarshal(payload, &metadata); err != nil {
		return nil, ErrSessionNotFound
	}
	return metadata, nil
}

func decodePasskeyMetadata(payload []byte) (PasskeyMetadata, error) {
	var metadata PasskeyMetadata
	if err := json.Unmarshal(payload, &metadata); err != nil {
		return PasskeyMetadata{}, ErrSessionNotFound
	}
	return metadata, nil
}
