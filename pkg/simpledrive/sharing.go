package simpledrive

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

const sharedLinkTokenBytes = 32

// CreateSharedLink issues a new unguessable link token, replacing any
// previous one. Validity is evaluated on every read against ExpiresAt.
func (s *service) CreateSharedLink(ctx context.Context, req CreateSharedLinkRequest) (*Item, error) {
	if _, err := s.authorize(ctx, req.ItemID, req.Actor, PermissionWrite, "share"); err != nil {
		return nil, err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, validationError("expiration date must be in the future")
	}

	token, err := newLinkToken()
	if err != nil {
		return nil, &ItemError{ItemID: req.ItemID, Op: "share", Err: err}
	}

	return s.persist(ctx, req.ItemID, req.Actor, "share", true, func(fresh *Item) error {
		fresh.SharedLink = &token
		fresh.ExpirationDate = clonePtr(req.ExpiresAt)
		return nil
	})
}

// RemoveSharedLink clears the link token and its expiration
func (s *service) RemoveSharedLink(ctx context.Context, itemID, actor uuid.UUID) (*Item, error) {
	if _, err := s.authorize(ctx, itemID, actor, PermissionWrite, "unshare"); err != nil {
		return nil, err
	}
	return s.persist(ctx, itemID, actor, "unshare", true, func(fresh *Item) error {
		fresh.SharedLink = nil
		fresh.ExpirationDate = nil
		return nil
	})
}

// OpenSharedLink resolves a link token for anonymous access. Unknown and
// expired tokens are both reported as ErrNotFound.
func (s *service) OpenSharedLink(ctx context.Context, token string) (*ItemView, error) {
	if token == "" {
		return nil, fmt.Errorf("shared link: %w", ErrNotFound)
	}
	item, err := s.repository.GetItemBySharedLink(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("shared link: %w", err)
	}
	if !item.SharedLinkValid(s.now()) {
		return nil, fmt.Errorf("shared link expired: %w", ErrNotFound)
	}

	view, err := s.present(ctx, item)
	if err != nil {
		return nil, err
	}
	view.Access = nil
	view.LastModifiedBy = uuid.Nil
	return view, nil
}

func newLinkToken() (string, error) {
	buf := make([]byte, sharedLinkTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate link token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
