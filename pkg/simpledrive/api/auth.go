package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
)

// DeviceIDHeader carries the id of the device an upload originates from
const DeviceIDHeader = "X-Device-ID"

var errNoActor = errors.New("token has no valid subject")

// NewAuth returns the HS256 token authority used to verify bearer tokens
func NewAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// IssueToken signs a token whose subject is userID
func IssueToken(auth *jwtauth.JWTAuth, userID uuid.UUID) (string, error) {
	_, token, err := auth.Encode(map[string]interface{}{"sub": userID.String()})
	return token, err
}

// actorFrom returns the user identified by the verified token of r
func actorFrom(r *http.Request) (uuid.UUID, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return uuid.Nil, err
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errNoActor
	}
	return id, nil
}
