package access

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/compliance/internal/ir"
)

// Capability names one scoped token by its derivation inputs.
type Capability struct {
	ID      ir.Bytes32
	Variant ir.RoleVariant
	Access  ir.RoleAccess
}

// Token returns the role token for the capability.
func (c Capability) Token() ir.Bytes32 {
	return ir.RoleToken(c.ID, c.Variant, c.Access)
}

func (c Capability) String() string {
	return fmt.Sprintf("%s on %s %s", c.Access, strings.ToLower(c.Variant.String()), c.ID.Hex())
}

// AuthorizationError reports that Caller lacked the capability an
// operation required. Missing lists the scoped capabilities of which any
// one would have sufficed; Global names a global role instead.
type AuthorizationError struct {
	Op      string
	Caller  ir.Address
	Missing []Capability
	Global  string
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s lacks ", e.Op, e.Caller.Hex())
	switch {
	case e.Global != "":
		b.WriteString(e.Global)
	case len(e.Missing) == 1:
		b.WriteString(e.Missing[0].String())
	default:
		b.WriteString("any of ")
		for i, c := range e.Missing {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(c.String())
		}
	}
	return b.String()
}

// IsAuthorizationError returns true if err is, or wraps, an
// AuthorizationError.
func IsAuthorizationError(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

// Global role names used in AuthorizationError.Global.
const (
	NameDefaultAdmin = "DEFAULT_ADMIN_ROLE"
	NameCreateRole   = "CREATE_ROLE"
)

// globalName returns the display name of a global token, or "" for a
// scoped one.
func globalName(token ir.Bytes32) string {
	switch token {
	case ir.DefaultAdminRole:
		return NameDefaultAdmin
	case ir.CreateRole:
		return NameCreateRole
	}
	return ""
}
