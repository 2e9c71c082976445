package playfeed

// Field dimensions in yards, end zones included.
const (
	FieldLength  = 120.0
	FieldWidth   = 53.3
	EndZoneDepth = 10.0
)

// DefaultSeason is the season printed in play titles.
const DefaultSeason = 2022

// wrapWidth is the column at which play descriptions are broken.
const wrapWidth = 70
