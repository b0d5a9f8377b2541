package queue

// Dedupe collapses actions that share a Key, keeping the most recent
// occurrence of each. Survivors keep their original relative order.
//
// If the user toggles "wore item X" on, off, and on again while
// offline, only the final intended action should replay; submitting
// all three would double-count wear events upstream.
func Dedupe(actions []Action) []Action {
	if len(actions) < 2 {
		return actions
	}

	lastIdx := make(map[string]int, len(actions))
	for i, a := range actions {
		lastIdx[a.Key()] = i
	}

	out := make([]Action, 0, len(lastIdx))
	for i, a := range actions {
		if lastIdx[a.Key()] == i {
			out = append(out, a)
		}
	}
	return out
}
