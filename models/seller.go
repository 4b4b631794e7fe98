package models

// NewSeller holds the fields of a seller row at creation time.
type NewSeller struct {
	Username    string
	Rating      string
	Level       string
	ReviewCount int64
	Description string
}

// SellerStat is one line of the seller card, e.g. "From" -> "Kenya".
type SellerStat struct {
	Key   string
	Value string
}
