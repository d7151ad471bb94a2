package entity

// Permission is a user's access level. Higher levels include the lower ones.
type Permission int

const (
	PermissionAll   Permission = 0
	PermissionAdmin Permission = 1
	PermissionDev   Permission = 2
)

// User represents an account row in the `users` table. The id is the
// external identity id and never changes.
type User struct {
	ID                string     `json:"id" db:"id"`
	Permissions       Permission `json:"permissions" db:"permissions"`
	BotToken          *string    `json:"-" db:"bot_token"`
	DisplayName       string     `json:"displayName" db:"display_name"`
	MinecraftUUID     *string    `json:"minecraftUuid,omitempty" db:"minecraft_uuid"`
	MinecraftUsername *string    `json:"minecraftUsername,omitempty" db:"minecraft_username"`
}

// Identity is what the OAuth provider tells us about the signed-in account.
type Identity struct {
	ID          string
	DisplayName string
}

// Linked reports whether a Minecraft account is bound to the user.
func (u *User) Linked() bool { return u.MinecraftUUID != nil }
