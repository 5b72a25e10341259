package services

import (
	"context"
	"errors"

	"github.com/samber/lo"
)

type Permission string

const (
	PermManageRestaurant Permission = "manage_restaurant"
	PermManageTables     Permission = "manage_tables"
	PermManageMenu       Permission = "manage_menu"
	PermManageSessions   Permission = "manage_sessions"
	PermManageOrders     Permission = "manage_orders"
	PermManageStaff      Permission = "manage_staff"
)

var AllPermissions = []Permission{
	PermManageRestaurant,
	PermManageTables,
	PermManageMenu,
	PermManageSessions,
	PermManageOrders,
	PermManageStaff,
}

func ParsePermissions(raw []string) ([]Permission, error) {
	perms := make([]Permission, 0, len(raw))
	for _, p := range lo.Uniq(raw) {
		if !lo.Contains(AllPermissions, Permission(p)) {
			return nil, Validation("unknown permission %q", p)
		}
		perms = append(perms, Permission(p))
	}
	return perms, nil
}

// Authorizer answers every restaurant-scoped permission question. Owners hold
// all permissions; other members hold the union of their active roles.
type Authorizer struct {
	store Store
}

func NewAuthorizer(store Store) *Authorizer {
	return &Authorizer{store: store}
}

// Permissions returns what userID may do in restaurantID. Non-members get
// Forbidden.
func (a *Authorizer) Permissions(ctx context.Context, restaurantID, userID uint) ([]Permission, error) {
	member, err := a.store.GetMember(ctx, restaurantID, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, Forbidden("user %d is not a member of restaurant %d", userID, restaurantID)
	}
	if err != nil {
		return nil, wrapStore(err, "failed to load membership")
	}
	if !member.IsActive {
		return nil, Forbidden("membership of user %d is inactive", userID)
	}
	if member.IsOwner {
		return AllPermissions, nil
	}

	roles, err := a.store.ListMemberRoles(ctx, restaurantID, userID)
	if err != nil {
		return nil, wrapStore(err, "failed to load roles")
	}
	var perms []Permission
	for _, role := range roles {
		if !role.IsActive {
			continue
		}
		for _, p := range role.Permissions {
			perms = append(perms, Permission(p))
		}
	}
	return lo.Uniq(perms), nil
}

// Require fails with Forbidden unless userID holds perm in restaurantID.
func (a *Authorizer) Require(ctx context.Context, restaurantID, userID uint, perm Permission) error {
	perms, err := a.Permissions(ctx, restaurantID, userID)
	if err != nil {
		return err
	}
	if !lo.Contains(perms, perm) {
		return Forbidden("missing permission %s", perm)
	}
	return nil
}

// RequireMember fails with Forbidden unless userID is an active member.
func (a *Authorizer) RequireMember(ctx context.Context, restaurantID, userID uint) error {
	_, err := a.Permissions(ctx, restaurantID, userID)
	return err
}

// Attribution identifies who performs an operation: a staff user or a
// diner's device. Exactly one of the two is set.
type Attribution struct {
	staffID  uint
	deviceID string
}

func Staff(userID uint) Attribution {
	return Attribution{staffID: userID}
}

func Customer(deviceID string) Attribution {
	return Attribution{deviceID: deviceID}
}

func (a Attribution) IsStaff() bool {
	return a.staffID != 0
}

func (a Attribution) StaffID() uint {
	return a.staffID
}

func (a Attribution) DeviceID() string {
	return a.deviceID
}

func (a Attribution) validate() error {
	switch {
	case a.staffID != 0 && a.deviceID != "":
		return Validation("attribution must name either a staff user or a device")
	case a.staffID == 0:
		return validateDeviceID(a.deviceID)
	}
	return nil
}

const maxDeviceIDLength = 128

func validateDeviceID(deviceID string) error {
	if deviceID == "" {
		return Validation("device id is required")
	}
	if len(deviceID) > maxDeviceIDLength {
		return Validation("device id exceeds %d characters", maxDeviceIDLength)
	}
	return nil
}
