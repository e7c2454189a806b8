package webhooks

import "sigscore/internal/model"

// Event payloads are not uniformly shaped across event types: a score-change
// event nests its data differently than a signal-creation event. Each logical
// filter field therefore resolves through an ordered list of paths; the first
// present value wins. The tables below are the resolution contract.
var (
    scorePaths = [][]string{
        {"score"},
        {"newScore"},
        {"data", "newScore"},
        {"data", "score"},
    }
    tierPaths = [][]string{
        {"tier"},
        {"newTier"},
        {"data", "newTier"},
        {"data", "tier"},
    }
    signalTypePaths = [][]string{
        {"signalType"},
        {"type"},
        {"data", "signalType"},
        {"data", "type"},
    }
    accountIDPaths = [][]string{
        {"accountId"},
        {"data", "accountId"},
    }
)

// MatchFilters reports whether payload satisfies every declared predicate.
// A nil or empty filter set always matches. A predicate whose field cannot be
// resolved from the payload fails closed.
func MatchFilters(f *model.SubscriptionFilters, payload map[string]any) bool {
    if f.Empty() {
        return true
    }
    if f.ScoreAbove != nil || f.ScoreBelow != nil {
        score, ok := resolveNumber(payload, scorePaths)
        if !ok {
            return false
        }
        if f.ScoreAbove != nil && score <= *f.ScoreAbove {
            return false
        }
        if f.ScoreBelow != nil && score >= *f.ScoreBelow {
            return false
        }
    }
    if len(f.Tiers) > 0 {
        tier, ok := resolveString(payload, tierPaths)
        if !ok || !containsString(f.Tiers, tier) {
            return false
        }
    }
    if len(f.SignalTypes) > 0 {
        st, ok := resolveString(payload, signalTypePaths)
        if !ok || !containsString(f.SignalTypes, st) {
            return false
        }
    }
    if len(f.AccountIDs) > 0 {
        id, ok := resolveString(payload, accountIDPaths)
        if !ok || !containsString(f.AccountIDs, id) {
            return false
        }
    }
    return true
}

// lookup walks one path of map keys through nested objects.
func lookup(payload map[string]any, path []string) (any, bool) {
    var cur any = payload
    for _, key := range path {
        m, ok := cur.(map[string]any)
        if !ok {
            return nil, false
        }
        cur, ok = m[key]
        if !ok {
            return nil, false
        }
    }
    return cur, true
}

func resolveNumber(payload map[string]any, paths [][]string) (float64, bool) {
    for _, p := range paths {
        v, ok := lookup(payload, p)
        if !ok {
            continue
        }
        switch n := v.(type) {
        case float64:
            return n, true
        case int:
            return float64(n), true
        case int64:
            return float64(n), true
        }
    }
    return 0, false
}

func resolveString(payload map[string]any, paths [][]string) (string, bool) {
    for _, p := range paths {
        v, ok := lookup(payload, p)
        if !ok {
            continue
        }
        if s, ok := v.(string); ok {
            return s, true
        }
    }
    return "", false
}

func containsString(set []string, v string) bool {
    for _, s := range set {
        if s == v {
            return true
        }
    }
    return false
}
