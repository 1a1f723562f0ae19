package model

// BanUser はBANレコードに埋め込まれたDiscordユーザー情報。
type BanUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Avatar        string `json:"avatar"`
}

// BanRecord はモデレーションAPIが保持するBAN情報のスナップショット。
// レコードが存在しないことは「BANされていない」ことを意味する。
type BanRecord struct {
	Reason string  `json:"reason"`
	User   BanUser `json:"user"`
}

// UserProfile はモデレーションAPI側のユーザー。
// IDはストア内部のIDで、DiscordのユーザーIDとは異なる。
type UserProfile struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}
