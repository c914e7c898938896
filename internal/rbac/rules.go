package rbac

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	RoleUser: {
		"test:create",
		"test:view-own",
		"test:edit-own",
		"test:delete-own",
		"question:*",
		"profile:*",
	},
	RoleAdmin: {
		"*", // everything
	},
}

// RolePages lists the client routes (by name) each role may see in menus.
var RolePages = map[string][]string{
	RoleUser:  {"dashboard", "question-management", "edit-test", "profile"},
	RoleAdmin: {"dashboard", "question-management", "edit-test", "profile", "admin"},
}
