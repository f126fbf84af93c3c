package repository

import (
	"context"
	"fmt"

	"localhaven-cms/internal/model"
	"localhaven-cms/internal/storage"
)

// SessionKey holds the single local session record.
const SessionKey = "session"

// SessionRepository holds the auth mutators.
type SessionRepository struct {
	store storage.Store
}

func NewSessionRepository(store storage.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// SetSession overwrites the local session.
func (r *SessionRepository) SetSession(ctx context.Context, session model.Session) error {
	return r.store.Mutate(ctx, model.MutatorSetSession, session, func(ctx context.Context, tx storage.WriteTx) error {
		return tx.Set(ctx, SessionKey, session)
	})
}

// ClearSession removes the local session. Clearing an absent session is a no-op.
func (r *SessionRepository) ClearSession(ctx context.Context) error {
	return r.store.Mutate(ctx, model.MutatorClearSession, nil, func(ctx context.Context, tx storage.WriteTx) error {
		_, err := tx.Delete(ctx, SessionKey)
		return err
	})
}

// UpdateUser writes the patch over the session user and returns the new session.
// It fails with model.ErrNoActiveSession when no session is stored.
func (r *SessionRepository) UpdateUser(ctx context.Context, patch model.UserPatch) (*model.Session, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var updated model.Session
	err := r.store.Mutate(ctx, model.MutatorUpdateUser, patch, func(ctx context.Context, tx storage.WriteTx) error {
		session, err := CurrentSession(ctx, tx)
		if err != nil {
			return err
		}
		if session == nil {
			return model.ErrNoActiveSession
		}

		session.User = patch.Apply(session.User)
		updated = *session
		return tx.Set(ctx, SessionKey, session)
	})
	if err != nil {
		return nil, err
	}

	return &updated, nil
}

// Get returns the stored session, or nil when signed out.
func (r *SessionRepository) Get(ctx context.Context) (*model.Session, error) {
	var session *model.Session
	err := r.store.Read(ctx, func(ctx context.Context, tx storage.ReadTx) error {
		s, err := CurrentSession(ctx, tx)
		session = s
		return err
	})
	return session, err
}

// CurrentSession reads the session inside tx; nil when absent.
func CurrentSession(ctx context.Context, tx storage.ReadTx) (*model.Session, error) {
	session, ok, err := storage.GetJSON[model.Session](ctx, tx, SessionKey)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &session, nil
}
