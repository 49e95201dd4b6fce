package harness

import (
	"bytes"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/compliance/internal/ir"
)

// SentinelSymbol renders the "no previous record" marker.
const SentinelSymbol = "sentinel"

// symbol returns the trace name of a record id, assigning $#n on first
// sight.
func (h *Harness) symbol(id ir.Bytes32) string {
	if id == ir.Sentinel {
		return SentinelSymbol
	}
	if s, ok := h.symbols[id]; ok {
		return s
	}
	s := fmt.Sprintf("$#%d", len(h.symbols)+1)
	h.symbols[id] = s
	return s
}

func (h *Harness) symbolList(records []ir.Record) ir.IRArray {
	ids := make(ir.IRArray, len(records))
	for i, rec := range records {
		ids[i] = ir.IRString(h.symbol(rec.ID))
	}
	return ids
}

// renderAccount returns the alias of addr, or its hex form.
func (h *Harness) renderAccount(addr ir.Address) string {
	if alias, ok := h.aliases[addr]; ok {
		return alias
	}
	return addr.Hex()
}

// renderLabel reverses ir.StringToBytes32 when b holds printable text
// followed by zero padding, and falls back to hex otherwise. Text that
// would read back as hex or as a reference is also rendered as hex.
func renderLabel(b ir.Bytes32) string {
	text := bytes.TrimRight(b[:], "\x00")
	if !utf8.Valid(text) || bytes.IndexByte(text, 0) >= 0 {
		return b.Hex()
	}
	for _, r := range string(text) {
		if !unicode.IsPrint(r) {
			return b.Hex()
		}
	}
	if bytes.HasPrefix(text, []byte("0x")) || bytes.HasPrefix(text, []byte("$")) {
		return b.Hex()
	}
	return string(text)
}

func (h *Harness) renderRecord(rec ir.Record) ir.IRObject {
	if !rec.Exists {
		return ir.IRObject{"exists": ir.IRBool(false)}
	}
	return ir.IRObject{
		"exists":            ir.IRBool(true),
		"id":                ir.IRString(h.symbol(rec.ID)),
		"key":               ir.IRString(rec.Key),
		"entity":            ir.IRString(renderLabel(rec.ReceivingEntityID)),
		"resource":          ir.IRString(renderLabel(rec.ResourceID)),
		"organization":      ir.IRString(renderLabel(rec.OrganizationID)),
		"ref":               ir.IRString(rec.Ref),
		"status":            ir.IRString(renderLabel(rec.Status)),
		"owner":             ir.IRString(h.renderAccount(rec.Owner)),
		"status_issue_date": ir.IRInt(rec.StatusIssueDate),
		"timestamp":         ir.IRInt(rec.Timestamp),
		"nonce":             ir.IRInt(int64(rec.Nonce)),
		"previous":          ir.IRString(h.symbol(rec.Previous)),
	}
}

func (h *Harness) renderKeyIndex(idx ir.KeyIndex) ir.IRObject {
	if !idx.Exists {
		return ir.IRObject{"exists": ir.IRBool(false)}
	}
	return ir.IRObject{
		"exists": ir.IRBool(true),
		"head":   ir.IRString(h.symbol(idx.Head)),
		"length": ir.IRInt(int64(idx.Length)),
	}
}
