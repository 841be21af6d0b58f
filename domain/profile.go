package domain

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSenior  Role = "senior"
	RoleStudent Role = "student"
)

type Profile struct {
	UserID      string
	DisplayName string
	Role        Role
	AvatarURL   string
}
