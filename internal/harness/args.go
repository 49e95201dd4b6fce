package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/compliance/internal/ir"
)

// argReader reads typed step arguments.
type argReader struct {
	h   *Harness
	raw map[string]interface{}
}

func (a argReader) str(name string, required bool) (string, error) {
	v, ok := a.raw[name]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("argument %q is required", name)
		}
		return "", nil
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case int, int64, bool:
		return fmt.Sprint(s), nil
	}
	return "", fmt.Errorf("argument %q: want string, got %T", name, v)
}

// bytes32 reads an identifier: a $name reference, 0x-hex, or a plain
// string left-aligned into 32 bytes. Missing optional identifiers are zero.
func (a argReader) bytes32(name string, required bool) (ir.Bytes32, error) {
	s, err := a.str(name, required)
	if err != nil || s == "" {
		return ir.Bytes32{}, err
	}
	return a.h.identifier(s)
}

func (a argReader) account(name string) (ir.Address, error) {
	s, err := a.str(name, true)
	if err != nil {
		return ir.Address{}, err
	}
	return a.h.account(s)
}

func (a argReader) variant(name string) (ir.RoleVariant, error) {
	s, err := a.str(name, true)
	if err != nil {
		return 0, err
	}
	return ir.ParseRoleVariant(s)
}

func (a argReader) access(name string) (ir.RoleAccess, error) {
	s, err := a.str(name, true)
	if err != nil {
		return 0, err
	}
	return ir.ParseRoleAccess(s)
}

func (a argReader) int64(name string) (int64, error) {
	v, ok := a.raw[name]
	if !ok {
		return 0, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return 0, fmt.Errorf("argument %q: want integer, got %T", name, v)
}

func (a argReader) idVariant() (ir.Bytes32, ir.RoleVariant, error) {
	id, err := a.bytes32("id", true)
	if err != nil {
		return ir.Bytes32{}, 0, err
	}
	variant, err := a.variant("variant")
	if err != nil {
		return ir.Bytes32{}, 0, err
	}
	return id, variant, nil
}

func (a argReader) capability() (ir.Bytes32, ir.RoleVariant, ir.RoleAccess, error) {
	id, variant, err := a.idVariant()
	if err != nil {
		return ir.Bytes32{}, 0, 0, err
	}
	access, err := a.access("access")
	if err != nil {
		return ir.Bytes32{}, 0, 0, err
	}
	return id, variant, access, nil
}

// triple reads the entity, resource and organization identifiers. Each
// is optional and defaults to zero.
func (a argReader) triple() (entity, resource, org ir.Bytes32, err error) {
	if entity, err = a.bytes32("entity", false); err != nil {
		return
	}
	if resource, err = a.bytes32("resource", false); err != nil {
		return
	}
	org, err = a.bytes32("organization", false)
	return
}

func (a argReader) entryInput() (ir.EntryInput, error) {
	var in ir.EntryInput
	var err error

	if in.Key, err = a.str("key", true); err != nil {
		return in, err
	}
	if in.ReceivingEntityID, in.ResourceID, in.OrganizationID, err = a.triple(); err != nil {
		return in, err
	}
	if in.Ref, err = a.str("ref", false); err != nil {
		return in, err
	}
	if in.Status, err = a.bytes32("status", false); err != nil {
		return in, err
	}
	if in.StatusIssueDate, err = a.int64("status_issue_date"); err != nil {
		return in, err
	}
	if _, ok := a.raw["owner"]; ok {
		if in.Owner, err = a.account("owner"); err != nil {
			return in, err
		}
	}
	return in, nil
}

// identifier resolves a $name reference or parses s as an identifier.
func (h *Harness) identifier(s string) (ir.Bytes32, error) {
	if name, ok := strings.CutPrefix(s, "$"); ok {
		id, found := h.saved[name]
		if !found {
			return ir.Bytes32{}, fmt.Errorf("unknown reference %q", s)
		}
		return id, nil
	}
	return ir.ParseBytes32(s)
}

// account resolves an alias or parses s as an address.
func (h *Harness) account(s string) (ir.Address, error) {
	if addr, ok := h.accounts[s]; ok {
		return addr, nil
	}
	if strings.HasPrefix(s, "0x") {
		return ir.ParseAddress(s)
	}
	return ir.Address{}, fmt.Errorf("unknown account %q", s)
}

// convertArgsToIRObject converts a map[string]interface{} to ir.IRObject.
// This handles YAML-parsed values and converts them to proper IRValue types.
func convertArgsToIRObject(args map[string]interface{}) (ir.IRObject, error) {
	if args == nil {
		return ir.IRObject{}, nil
	}

	result := make(ir.IRObject)
	for key, val := range args {
		irVal, err := convertToIRValue(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		result[key] = irVal
	}
	return result, nil
}

// convertToIRValue converts a YAML-parsed value to an IRValue.
// Nulls and non-integral numbers are rejected: canonical JSON has neither.
func convertToIRValue(val interface{}) (ir.IRValue, error) {
	if val == nil {
		return nil, fmt.Errorf("null values are not allowed")
	}

	switch v := val.(type) {
	case string:
		return ir.IRString(v), nil
	case int:
		return ir.IRInt(int64(v)), nil
	case int64:
		return ir.IRInt(v), nil
	case uint64:
		if v > 1<<63-1 {
			return nil, fmt.Errorf("integer %d overflows int64", v)
		}
		return ir.IRInt(int64(v)), nil
	case float64:
		if v == float64(int64(v)) {
			return ir.IRInt(int64(v)), nil
		}
		return nil, fmt.Errorf("floats are not allowed: %v", v)
	case bool:
		return ir.IRBool(v), nil
	case []interface{}:
		arr := make(ir.IRArray, len(v))
		for i, elem := range v {
			irElem, err := convertToIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]interface{}:
		return convertArgsToIRObject(v)
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}
}
