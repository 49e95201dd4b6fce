// Package access implements role-based access control over records.
//
// Every identifier carries three capability tokens per namespace
// (ENTITY, RESOURCE, ORGANIZATION), one per access level (READ, WRITE,
// ADMIN). Tokens are derived, never stored as objects: see ir.RoleToken.
// What is stored is membership (token, account) and, for each token, the
// token that administers it.
//
// The capability graph is rooted at Bootstrap, which hands the default
// admin role and CREATE_ROLE to one account. CREATE_ROLE holders mint
// role sets; the ADMIN token of a set administers its READ and WRITE
// tokens; the default admin role administers everything else.
package access
