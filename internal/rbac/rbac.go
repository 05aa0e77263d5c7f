package rbac

type Role string
type Action string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionEdit    Action = "edit"
	ActionSave    Action = "save"
	ActionPublish Action = "publish"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionEdit || action == ActionSave
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

// Normalize maps unknown or empty roles to viewer.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
