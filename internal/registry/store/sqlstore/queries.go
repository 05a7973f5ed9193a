package sqlstore

const identityColumns = `owner, display_name, role, commitment, status, registered_at_height, updated_at_height, verified_by`

const roleColumns = `principal, role, status, assigned_by, assigned_at_height, decided_by, decided_at_height`

const eventColumns = `seq, id, height, type, principal, actor, role, status, prior_status, display_name, commitment, prior_commitment`

var rawQueries = map[string]string{
	"findIdentity":   `SELECT ` + identityColumns + ` FROM registry_identities WHERE owner = ?`,
	"listIdentities": `SELECT ` + identityColumns + ` FROM registry_identities ORDER BY owner`,
	"insertIdentity": `INSERT INTO registry_identities (` + identityColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	"updateIdentity": `UPDATE registry_identities
SET display_name = ?, commitment = ?, status = ?, updated_at_height = ?, verified_by = ?
WHERE owner = ?`,

	"findRole":   `SELECT ` + roleColumns + ` FROM registry_roles WHERE principal = ?`,
	"listRoles":  `SELECT ` + roleColumns + ` FROM registry_roles ORDER BY principal`,
	"insertRole": `INSERT INTO registry_roles (` + roleColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	"updateRole": `UPDATE registry_roles SET status = ?, decided_by = ?, decided_at_height = ? WHERE principal = ?`,

	"insertEvent": `INSERT INTO registry_events (` + eventColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	"listEvents":  `SELECT ` + eventColumns + ` FROM registry_events WHERE seq > ? ORDER BY seq LIMIT ?`,
	"lastSeq":     `SELECT COALESCE(MAX(seq), 0) FROM registry_events`,

	"chainHeight":    `SELECT COALESCE(MAX(height), 0) FROM registry_chain`,
	"setChainHeight": `INSERT INTO registry_chain (id, height) VALUES (1, ?) ON CONFLICT (id) DO UPDATE SET height = excluded.height`,
}
