package persist

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnsupportedVersion is returned for documents written by a newer build.
var ErrUnsupportedVersion = errors.New("persist: unsupported snapshot version")

// upgraders[v] turns a raw document of version v into version v+1.
var upgraders = map[int]func(doc map[string]any) (map[string]any, error){
	1: upgradeV1,
}

// decode parses a stored document of any known version into the current
// layout.
func decode(raw []byte) (RunSnapshot, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return RunSnapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	if doc == nil {
		return RunSnapshot{}, errors.New("parse snapshot: not an object")
	}

	version := documentVersion(doc)
	if version > SchemaVersion {
		return RunSnapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	for v := version; v < SchemaVersion; v++ {
		up, ok := upgraders[v]
		if !ok {
			return RunSnapshot{}, fmt.Errorf("%w: no upgrade from %d", ErrUnsupportedVersion, v)
		}
		next, err := up(doc)
		if err != nil {
			return RunSnapshot{}, fmt.Errorf("upgrade snapshot from v%d: %w", v, err)
		}
		doc = next
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return RunSnapshot{}, fmt.Errorf("re-encode snapshot: %w", err)
	}
	var rs RunSnapshot
	if err := json.Unmarshal(b, &rs); err != nil {
		return RunSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return rs, nil
}

// documentVersion reads the version field. Documents without one are the
// legacy layout, version 1.
func documentVersion(doc map[string]any) int {
	if v, ok := doc["version"].(float64); ok && v >= 1 {
		return int(v)
	}
	return 1
}

// v1Keys maps the legacy camelCase run and profile keys to their v2 names.
var v1Keys = map[string]string{
	"practiceMode":             "mode",
	"questions":                "questions",
	"currentIndex":             "index",
	"attemptId":                "attempt_id",
	"sessionXp":                "xp",
	"sessionCorrect":           "correct",
	"sessionWrong":             "wrong",
	"sessionBonusXp":           "bonus_xp",
	"usedQuestionIdsThisRun":   "used_ids",
	"isDailyRun":               "daily",
	"lifelines":                "lifelines",
	"activeDoubleXp":           "double_armed",
	"spareQuestions":           "spares",
	"history":                  "history",
	"streak":                   "streak",
	"lastActiveDate":           "last_active_date",
	"lastMissionCompletedDate": "last_mission_completed_date",
}

// upgradeV1 converts the legacy browser blob. The blob may be wrapped as
// {"state": {...}, "version": 0}.
func upgradeV1(doc map[string]any) (map[string]any, error) {
	if inner, ok := doc["state"].(map[string]any); ok {
		doc = inner
	}

	out := map[string]any{"version": 2}
	for from, to := range v1Keys {
		if v, ok := doc[from]; ok && v != nil {
			out[to] = v
		}
	}

	if raw, ok := doc["ladderLevels"].([]any); ok {
		ladder := make([]any, 0, len(raw))
		for i, item := range raw {
			lvl, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("ladder level %d: not an object", i)
			}
			ladder = append(ladder, map[string]any{
				"level":     lvl["levelNumber"],
				"question":  lvl["question"],
				"status":    lvl["status"],
				"xp_reward": lvl["xpReward"],
			})
		}
		out["ladder"] = ladder
	}

	if raw, ok := doc["results"].([]any); ok {
		results := make([]any, 0, len(raw))
		for i, item := range raw {
			r, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("result %d: not an object", i)
			}
			results = append(results, map[string]any{
				"question_id": r["questionId"],
				"is_correct":  r["is_correct"],
				"xp_awarded":  r["xp_awarded"],
				"time_ms":     r["time_ms"],
			})
		}
		out["results"] = results
	}
	return out, nil
}
