package domain

// OperatorRole gates operator HTTP commands when auth is enabled.
type OperatorRole string

const (
	RoleViewer   OperatorRole = "viewer"
	RoleOperator OperatorRole = "operator"
)

// Allows reports whether r grants at least the required role.
func (r OperatorRole) Allows(required OperatorRole) bool {
	rank := map[OperatorRole]int{RoleViewer: 1, RoleOperator: 2}
	return rank[r] >= rank[required] && rank[r] > 0
}
