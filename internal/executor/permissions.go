package executor

import "github.com/hyperledger/iroha-sub010/internal/ids"

// Permission tokens recognized by DefaultExecutor's built-in policy. Each is
// represented as a role id granted directly to a holder account; a role
// carrying exactly this permission is registered once (from the genesis
// role list, or by RenameDomainLifecycleToken for the new token) and
// granted/revoked like any other role.
const (
	PermissionCanUnregisterDomain  ids.RoleId = "can_unregister_domain"
	PermissionCanControlDomainLives ids.RoleId = "can_control_domain_lives"
)
