package service

import (
	"context"

	"github.com/spec-kit/thelewala-agent/internal/domain"
)

// ProfileAPI reads the signed-in actor's profile.
type ProfileAPI interface {
	Me(ctx context.Context, role domain.ActorRole, bearer string) (map[string]any, error)
}

// ProfileService fetches the profile record of the session's actor.
type ProfileService struct {
	role    domain.ActorRole
	api     ProfileAPI
	session BearerSource
}

func NewProfileService(role domain.ActorRole, api ProfileAPI, session BearerSource) *ProfileService {
	return &ProfileService{role: role, api: api, session: session}
}

// Me returns the profile as the server sends it.
func (s *ProfileService) Me(ctx context.Context) (map[string]any, error) {
	token, err := s.session.BearerToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.api.Me(ctx, s.role, token)
}
