package sync

import (
	"strings"

	"github.com/shadedclan/killboard/internal/clients/pubg"
)

// trackedModes are the only game modes that count toward the leaderboard:
// solo/duo/squad in TPP and FPP. Everything else (arcade, event, lab modes)
// is discarded at ingestion.
var trackedModes = map[string]bool{
	"solo":      true,
	"duo":       true,
	"squad":     true,
	"solo-fpp":  true,
	"duo-fpp":   true,
	"squad-fpp": true,
}

func isTrackedMode(gameMode string) bool {
	return gameMode != "" && trackedModes[gameMode]
}

// classifyFlags derives (is_ranked, is_custom, is_casual) from a match
// detail. The explicit isRanked boolean wins when present; otherwise ranked
// is inferred from a "ranked" substring in the mode name. Casual has no
// explicit flag upstream and always uses the substring rule.
func classifyFlags(m *pubg.MatchDetail) (isRanked, isCustom, isCasual bool) {
	mode := strings.ToLower(m.GameMode)

	if m.IsRanked != nil {
		isRanked = *m.IsRanked
	} else {
		isRanked = strings.Contains(mode, "ranked")
	}

	isCustom = m.IsCustomMatch
	isCasual = strings.Contains(mode, "casual")
	return isRanked, isCustom, isCasual
}
