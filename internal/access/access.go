package access

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/compliance/internal/ir"
	"github.com/roach88/compliance/internal/store"
)

// ErrAlreadyBootstrapped is returned when Bootstrap names an account other
// than the one already holding the default admin role.
var ErrAlreadyBootstrapped = errors.New("access: already bootstrapped by another account")

// Controller owns role state in a store.
//
// Every mutation runs in a single store transaction, so a failed check
// leaves no trace.
type Controller struct {
	store  *store.Store
	logger *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for grant, revoke and denial events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Controller over s.
func New(s *store.Store, opts ...Option) *Controller {
	c := &Controller{
		store:  s,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RolesFor returns the three tokens of (id, variant).
func RolesFor(id ir.Bytes32, variant ir.RoleVariant) ir.RoleSet {
	return ir.RolesFor(id, variant)
}

// RoleFor returns the single token of (id, variant, access).
func RoleFor(id ir.Bytes32, variant ir.RoleVariant, access ir.RoleAccess) ir.Bytes32 {
	return ir.RoleToken(id, variant, access)
}

// Bootstrap grants the default admin role and CREATE_ROLE to admin.
// Repeating it for the same account is a no-op.
func (c *Controller) Bootstrap(ctx context.Context, admin ir.Address) error {
	return c.store.Update(ctx, func(tx *store.Tx) error {
		admins, err := tx.Members(ctx, ir.DefaultAdminRole)
		if err != nil {
			return err
		}
		for _, a := range admins {
			if a != admin {
				return ErrAlreadyBootstrapped
			}
		}

		if _, err := tx.AddMember(ctx, ir.DefaultAdminRole, admin); err != nil {
			return err
		}
		if _, err := tx.AddMember(ctx, ir.CreateRole, admin); err != nil {
			return err
		}
		c.logger.Info("access bootstrapped", zap.Stringer("admin", admin))
		return nil
	})
}

// CreateRole derives the role set of (id, variant) and makes its ADMIN
// token the administrator of its READ and WRITE tokens. The ADMIN token
// stays under the default admin role. Existing grants are untouched.
func (c *Controller) CreateRole(ctx context.Context, caller ir.Address, id ir.Bytes32, variant ir.RoleVariant) (ir.RoleSet, error) {
	if !variant.Valid() {
		return ir.RoleSet{}, fmt.Errorf("create role: invalid variant %d", variant)
	}

	set := ir.RolesFor(id, variant)
	err := c.store.Update(ctx, func(tx *store.Tx) error {
		if err := c.requireGlobal(ctx, tx, "createRole", caller, ir.CreateRole); err != nil {
			return err
		}
		if err := tx.SetRoleAdmin(ctx, set.Read, set.Admin); err != nil {
			return err
		}
		return tx.SetRoleAdmin(ctx, set.Write, set.Admin)
	})
	if err != nil {
		return ir.RoleSet{}, err
	}

	c.logger.Debug("role set created",
		zap.Stringer("caller", caller),
		zap.Stringer("id", id),
		zap.Stringer("variant", variant),
	)
	return set, nil
}

// GrantRole gives account the (id, variant, access) token. The caller must
// hold the token's administrator.
func (c *Controller) GrantRole(ctx context.Context, caller, account ir.Address, id ir.Bytes32, variant ir.RoleVariant, access ir.RoleAccess) error {
	return c.changeMembership(ctx, "grantRole", caller, account, Capability{ID: id, Variant: variant, Access: access}, true)
}

// RevokeRole takes the (id, variant, access) token away from account. The
// caller must hold the token's administrator.
func (c *Controller) RevokeRole(ctx context.Context, caller, account ir.Address, id ir.Bytes32, variant ir.RoleVariant, access ir.RoleAccess) error {
	return c.changeMembership(ctx, "revokeRole", caller, account, Capability{ID: id, Variant: variant, Access: access}, false)
}

func (c *Controller) changeMembership(ctx context.Context, op string, caller, account ir.Address, target Capability, grant bool) error {
	if !target.Variant.Valid() {
		return fmt.Errorf("%s: invalid variant %d", op, target.Variant)
	}
	if !target.Access.Valid() {
		return fmt.Errorf("%s: invalid access %d", op, target.Access)
	}

	token := target.Token()
	var changed bool
	err := c.store.Update(ctx, func(tx *store.Tx) error {
		admin, err := tx.RoleAdmin(ctx, token)
		if err != nil {
			return err
		}
		held, err := tx.HasMember(ctx, admin, caller)
		if err != nil {
			return err
		}
		if !held {
			return c.deny(c.adminError(op, caller, target, admin))
		}

		if grant {
			changed, err = tx.AddMember(ctx, token, account)
		} else {
			changed, err = tx.RemoveMember(ctx, token, account)
		}
		return err
	})
	if err != nil {
		return err
	}

	c.logger.Debug("role membership changed",
		zap.String("op", op),
		zap.Stringer("caller", caller),
		zap.Stringer("account", account),
		zap.Stringer("capability", target),
		zap.Bool("changed", changed),
	)
	return nil
}

// adminError describes the administrator token the caller lacked.
func (c *Controller) adminError(op string, caller ir.Address, target Capability, admin ir.Bytes32) *AuthorizationError {
	if name := globalName(admin); name != "" {
		return &AuthorizationError{Op: op, Caller: caller, Global: name}
	}
	adminCap := Capability{ID: target.ID, Variant: target.Variant, Access: ir.AccessAdmin}
	if admin == adminCap.Token() {
		return &AuthorizationError{Op: op, Caller: caller, Missing: []Capability{adminCap}}
	}
	return &AuthorizationError{Op: op, Caller: caller, Global: "role " + admin.Hex()}
}

// GrantCreateRole gives account CREATE_ROLE. The caller must hold it.
func (c *Controller) GrantCreateRole(ctx context.Context, caller, account ir.Address) error {
	var changed bool
	err := c.store.Update(ctx, func(tx *store.Tx) error {
		if err := c.requireGlobal(ctx, tx, "grantCreateRole", caller, ir.CreateRole); err != nil {
			return err
		}
		var err error
		changed, err = tx.AddMember(ctx, ir.CreateRole, account)
		return err
	})
	if err != nil {
		return err
	}

	c.logger.Debug("create role granted",
		zap.Stringer("caller", caller),
		zap.Stringer("account", account),
		zap.Bool("changed", changed),
	)
	return nil
}

// RenounceRole drops the (id, variant, access) token from caller. Anyone
// may renounce a token they hold; renouncing one they don't is a no-op.
func (c *Controller) RenounceRole(ctx context.Context, caller ir.Address, id ir.Bytes32, variant ir.RoleVariant, access ir.RoleAccess) error {
	token := ir.RoleToken(id, variant, access)
	return c.store.Update(ctx, func(tx *store.Tx) error {
		removed, err := tx.RemoveMember(ctx, token, caller)
		if err != nil {
			return err
		}
		c.logger.Debug("role renounced",
			zap.Stringer("caller", caller),
			zap.Stringer("capability", Capability{ID: id, Variant: variant, Access: access}),
			zap.Bool("changed", removed),
		)
		return nil
	})
}

// HasRole reports whether account holds (id, variant, access).
func (c *Controller) HasRole(ctx context.Context, account ir.Address, id ir.Bytes32, variant ir.RoleVariant, access ir.RoleAccess) (bool, error) {
	var held bool
	err := c.store.View(ctx, func(tx *store.Tx) error {
		var err error
		held, err = tx.HasMember(ctx, ir.RoleToken(id, variant, access), account)
		return err
	})
	return held, err
}

// HasAnyRoleFor reports whether account holds access on the entity, the
// resource or the organization, each in its own namespace.
func (c *Controller) HasAnyRoleFor(ctx context.Context, account ir.Address, entity, resource, org ir.Bytes32, access ir.RoleAccess) (bool, error) {
	var held bool
	err := c.store.View(ctx, func(tx *store.Tx) error {
		var err error
		held, err = HasAnyRoleForTx(ctx, tx, account, entity, resource, org, access)
		return err
	})
	return held, err
}

// HasAnyRoleForTx is HasAnyRoleFor inside an existing transaction.
func HasAnyRoleForTx(ctx context.Context, tx *store.Tx, account ir.Address, entity, resource, org ir.Bytes32, access ir.RoleAccess) (bool, error) {
	return tx.HasAnyMember(ctx, account,
		ir.RoleToken(entity, ir.VariantEntity, access),
		ir.RoleToken(resource, ir.VariantResource, access),
		ir.RoleToken(org, ir.VariantOrganization, access),
	)
}

// CheckAnyRoleFor returns an AuthorizationError unless caller holds access
// on at least one of the three identifiers.
func (c *Controller) CheckAnyRoleFor(ctx context.Context, tx *store.Tx, op string, caller ir.Address, entity, resource, org ir.Bytes32, access ir.RoleAccess) error {
	held, err := HasAnyRoleForTx(ctx, tx, caller, entity, resource, org, access)
	if err != nil {
		return err
	}
	if held {
		return nil
	}
	return c.deny(&AuthorizationError{
		Op:     op,
		Caller: caller,
		Missing: []Capability{
			{ID: entity, Variant: ir.VariantEntity, Access: access},
			{ID: resource, Variant: ir.VariantResource, Access: access},
			{ID: org, Variant: ir.VariantOrganization, Access: access},
		},
	})
}

// RoleAdmin returns the administrator token of token.
func (c *Controller) RoleAdmin(ctx context.Context, token ir.Bytes32) (ir.Bytes32, error) {
	var admin ir.Bytes32
	err := c.store.View(ctx, func(tx *store.Tx) error {
		var err error
		admin, err = tx.RoleAdmin(ctx, token)
		return err
	})
	return admin, err
}

// Members lists the accounts holding token.
func (c *Controller) Members(ctx context.Context, token ir.Bytes32) ([]ir.Address, error) {
	var members []ir.Address
	err := c.store.View(ctx, func(tx *store.Tx) error {
		var err error
		members, err = tx.Members(ctx, token)
		return err
	})
	return members, err
}

func (c *Controller) requireGlobal(ctx context.Context, tx *store.Tx, op string, caller ir.Address, token ir.Bytes32) error {
	held, err := tx.HasMember(ctx, token, caller)
	if err != nil {
		return err
	}
	if !held {
		return c.deny(&AuthorizationError{Op: op, Caller: caller, Global: globalName(token)})
	}
	return nil
}

func (c *Controller) deny(err *AuthorizationError) error {
	c.logger.Warn("authorization denied",
		zap.String("op", err.Op),
		zap.Stringer("caller", err.Caller),
		zap.Error(err),
	)
	return err
}
