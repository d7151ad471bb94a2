package entity

// VerifyCode is an outstanding claim on a Minecraft account. Expiration is
// in unix seconds.
type VerifyCode struct {
	MinecraftUUID     string `db:"minecraft_uuid"`
	Code              string `db:"code"`
	MinecraftUsername string `db:"minecraft_username"`
	Expiration        int64  `db:"expiration"`
}

// Expired reports whether the code is past its expiration at now (unix seconds).
func (c VerifyCode) Expired(now int64) bool {
	return now > c.Expiration
}
