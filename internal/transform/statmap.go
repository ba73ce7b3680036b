package transform

// statFields maps a position to the stat columns that are meaningful for
// it. Columns outside the position's set are dropped during
// transformation rather than failing the row; sources ship wide sheets
// with every column present for every player.
var statFields = map[string][]string{
	"QB": {"pass_attempts", "pass_completions", "pass_yards", "pass_tds", "interceptions_thrown", "rush_attempts", "rush_yards", "rush_tds"},
	"RB": {"rush_attempts", "rush_yards", "rush_tds", "receptions", "rec_yards", "rec_tds", "fumbles"},
	"FB": {"rush_attempts", "rush_yards", "rush_tds", "receptions", "rec_yards", "rec_tds"},
	"WR": {"receptions", "targets", "rec_yards", "rec_tds", "rush_attempts", "rush_yards", "drops"},
	"TE": {"receptions", "targets", "rec_yards", "rec_tds", "drops"},

	"OT": {"games_started", "sacks_allowed", "penalties"},
	"OG": {"games_started", "sacks_allowed", "penalties"},
	"C":  {"games_started", "sacks_allowed", "penalties"},

	"DT":   {"tackles", "tackles_for_loss", "sacks", "qb_hurries", "forced_fumbles"},
	"DE":   {"tackles", "tackles_for_loss", "sacks", "qb_hurries", "forced_fumbles"},
	"EDGE": {"tackles", "tackles_for_loss", "sacks", "qb_hurries", "forced_fumbles"},
	"LB":   {"tackles", "tackles_for_loss", "sacks", "interceptions", "pass_breakups", "forced_fumbles"},
	"CB":   {"tackles", "interceptions", "pass_breakups", "tds_allowed", "forced_fumbles"},
	"S":    {"tackles", "tackles_for_loss", "interceptions", "pass_breakups", "forced_fumbles"},

	"K":  {"fg_attempts", "fg_made", "fg_long", "xp_attempts", "xp_made"},
	"P":  {"punts", "punt_yards", "punt_long", "inside_20"},
	"LS": {"games_started", "penalties"},
}

// StatFieldsFor returns the stat columns meaningful for a position.
func StatFieldsFor(position string) []string {
	return statFields[position]
}
