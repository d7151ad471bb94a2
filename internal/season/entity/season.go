package entity

// Season is the presentation record of one numbered season.
type Season struct {
	Number   int     `json:"-" db:"number"`
	Logo     string  `json:"logo" db:"logo"`
	Color    int64   `json:"color" db:"color"`
	Champion *string `json:"champion,omitempty" db:"champion"`
}
