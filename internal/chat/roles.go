package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/npezzotti/staffchat/internal/types"
)

// OpenRoomRequest names the other participant of a room. Which field is
// required depends on the caller's role.
type OpenRoomRequest struct {
	OwnerId    string `json:"ownerId,omitempty"`
	EmployeeId string `json:"employeeId,omitempty"`
}

// roomResolver turns a caller and request into the room's (owner, employee)
// pair for one role.
type roomResolver interface {
	resolve(ctx context.Context, s *Service, caller types.Identity, req OpenRoomRequest) (ownerId, employeeId string, err error)
}

var roomResolvers = map[types.Role]roomResolver{
	types.RoleOwner:    ownerRoomResolver{},
	types.RoleEmployee: employeeRoomResolver{},
}

// ownerRoomResolver requires the owner to name the employee.
type ownerRoomResolver struct{}

func (ownerRoomResolver) resolve(_ context.Context, _ *Service, caller types.Identity, req OpenRoomRequest) (string, string, error) {
	employeeId := strings.TrimSpace(req.EmployeeId)
	if employeeId == "" {
		return "", "", ErrEmployeeRequired
	}

	return caller.UserId, employeeId, nil
}

// employeeRoomResolver pairs the employee with the deployment's owner. A
// single owner per deployment is assumed, so any ownerId in the request is
// ignored.
type employeeRoomResolver struct{}

func (employeeRoomResolver) resolve(ctx context.Context, s *Service, caller types.Identity, _ OpenRoomRequest) (string, string, error) {
	owner, err := s.db.FindFirstUserByRole(ctx, string(types.RoleOwner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", ErrNoOwner
		}
		return "", "", fmt.Errorf("find owner: %w", err)
	}

	return owner.Id, caller.UserId, nil
}

func (s *Service) resolveParticipants(ctx context.Context, caller types.Identity, req OpenRoomRequest) (string, string, error) {
	resolver, ok := roomResolvers[caller.Role]
	if !ok {
		return "", "", ErrForbiddenRole
	}

	return resolver.resolve(ctx, s, caller, req)
}
