package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"

	"github.com/roach88/compliance/internal/ir"
)

// RoleAdmin returns the administrator token of role. A role without an
// explicit administrator is administered by ir.DefaultAdminRole.
func (t *Tx) RoleAdmin(ctx context.Context, role ir.Bytes32) (ir.Bytes32, error) {
	var admin string
	err := t.tx.GetContext(ctx, &admin, `SELECT admin_role FROM role_admins WHERE role = ?`, role.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return ir.DefaultAdminRole, nil
	}
	if err != nil {
		return ir.Bytes32{}, fmt.Errorf("read role admin: %w", err)
	}
	return common.HexToHash(admin), nil
}

// SetRoleAdmin makes admin the administrator token of role.
func (t *Tx) SetRoleAdmin(ctx context.Context, role, admin ir.Bytes32) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO role_admins (role, admin_role)
		VALUES (?, ?)
		ON CONFLICT(role) DO UPDATE SET admin_role = excluded.admin_role
	`, role.Hex(), admin.Hex())
	if err != nil {
		return fmt.Errorf("write role admin: %w", err)
	}
	return nil
}

// HasMember reports whether account holds role.
func (t *Tx) HasMember(ctx context.Context, role ir.Bytes32, account ir.Address) (bool, error) {
	var count int
	err := t.tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM role_members WHERE role = ? AND account = ?
	`, role.Hex(), addressHex(account))
	if err != nil {
		return false, fmt.Errorf("check role member: %w", err)
	}
	return count > 0, nil
}

// HasAnyMember reports whether account holds at least one of roles.
func (t *Tx) HasAnyMember(ctx context.Context, account ir.Address, roles ...ir.Bytes32) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}
	hexRoles := make([]string, len(roles))
	for i, r := range roles {
		hexRoles[i] = r.Hex()
	}

	query, args, err := sqlx.In(`
		SELECT COUNT(*) FROM role_members WHERE account = ? AND role IN (?)
	`, addressHex(account), hexRoles)
	if err != nil {
		return false, fmt.Errorf("check any role member: %w", err)
	}

	var count int
	if err := t.tx.GetContext(ctx, &count, t.tx.Rebind(query), args...); err != nil {
		return false, fmt.Errorf("check any role member: %w", err)
	}
	return count > 0, nil
}

// AddMember grants role to account. Returns false if account already held it.
func (t *Tx) AddMember(ctx context.Context, role ir.Bytes32, account ir.Address) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO role_members (role, account)
		VALUES (?, ?)
		ON CONFLICT(role, account) DO NOTHING
	`, role.Hex(), addressHex(account))
	if err != nil {
		return false, fmt.Errorf("add role member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add role member: rows affected: %w", err)
	}
	return n > 0, nil
}

// RemoveMember revokes role from account. Returns false if account did not
// hold it.
func (t *Tx) RemoveMember(ctx context.Context, role ir.Bytes32, account ir.Address) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM role_members WHERE role = ? AND account = ?
	`, role.Hex(), addressHex(account))
	if err != nil {
		return false, fmt.Errorf("remove role member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove role member: rows affected: %w", err)
	}
	return n > 0, nil
}

// Members returns the accounts holding role, in binary order.
func (t *Tx) Members(ctx context.Context, role ir.Bytes32) ([]ir.Address, error) {
	var rows []string
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT account FROM role_members WHERE role = ? ORDER BY account COLLATE BINARY ASC
	`, role.Hex())
	if err != nil {
		return nil, fmt.Errorf("read role members: %w", err)
	}

	members := make([]ir.Address, len(rows))
	for i, r := range rows {
		members[i] = common.HexToAddress(r)
	}
	return members, nil
}
