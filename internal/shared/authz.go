package shared

// Role enumerates caller roles threaded through service inputs.
type Role string

const (
	RoleClerk   Role = "CLERK"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
)

// Actor identifies the caller performing an operation.
type Actor struct {
	ID   int64
	Role Role
}

// CanApprove reports whether the actor may approve, reject, post, process,
// void or cancel documents past the draft stage.
func (a Actor) CanApprove() bool {
	return a.Role == RoleManager || a.Role == RoleAdmin
}

// RequireApprover returns ErrForbidden unless the actor holds an elevated role.
func RequireApprover(actor Actor) error {
	if !actor.CanApprove() {
		return ErrForbidden
	}
	return nil
}
