package chat

// addReaction puts userID under emoji. It reports false when the user had
// already reacted with that emoji.
func addReaction(reactions map[string][]string, emoji, userID string) bool {
	for _, id := range reactions[emoji] {
		if id == userID {
			return false
		}
	}
	reactions[emoji] = append(reactions[emoji], userID)
	return true
}

// removeReaction takes userID out of emoji and drops the key once nobody is
// left under it.
func removeReaction(reactions map[string][]string, emoji, userID string) bool {
	users, ok := reactions[emoji]
	if !ok {
		return false
	}

	kept := users[:0:0]
	for _, id := range users {
		if id != userID {
			kept = append(kept, id)
		}
	}
	if len(kept) == len(users) {
		return false
	}

	if len(kept) == 0 {
		delete(reactions, emoji)
	} else {
		reactions[emoji] = kept
	}
	return true
}
