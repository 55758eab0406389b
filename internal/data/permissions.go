package data

// Permissions 用户拥有的权限代码，如 "catalog:read" 和 "catalog:write"
type Permissions []string

// Include 检查是否在 slice 中
func (p Permissions) Include(code string) bool {
	for i := range p {
		if code == p[i] {
			return true
		}
	}

	return false
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	PermissionCatalogRead  = "catalog:read"
	PermissionCatalogWrite = "catalog:write"
	PermissionUsersWrite   = "users:write"
)

var rolePermissions = map[string]Permissions{
	RoleUser:  {PermissionCatalogRead},
	RoleAdmin: {PermissionCatalogRead, PermissionCatalogWrite, PermissionUsersWrite},
}

// PermissionsForRole 未知角色没有任何权限
func PermissionsForRole(role string) Permissions {
	return rolePermissions[role]
}

// PermissionModel 权限由角色推导，不单独建表
type PermissionModel struct{}

// GetAllForUser 返回用户当前角色对应的权限，已停用的账号没有权限
func (m PermissionModel) GetAllForUser(user *User) Permissions {
	if user == nil || !user.IsActive {
		return nil
	}
	return PermissionsForRole(user.Role)
}
