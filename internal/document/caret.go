package document

// guessCaretAfterEdit infers the caret after a ranged edit that replaced
// [from, to) of the old text with inserted. Replacements are ambiguous.
func guessCaretAfterEdit(updated *Snapshot, from, to int, inserted string) *Position {
	switch {
	case from == to:
		p := updated.PositionOf(from + len(inserted))
		return &p
	case inserted == "":
		p := updated.PositionOf(from)
		return &p
	default:
		return nil
	}
}

// guessCaretAfterReplace infers the caret after a whole-buffer replacement
// from the unchanged prefix and suffix. It gives up when less than half of
// either text is unchanged.
func guessCaretAfterReplace(oldText string, updated *Snapshot) *Position {
	newText := updated.Text

	prefix := 0
	for prefix < len(oldText) && prefix < len(newText) && oldText[prefix] == newText[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldText)-prefix && suffix < len(newText)-prefix &&
		oldText[len(oldText)-suffix-1] == newText[len(newText)-suffix-1] {
		suffix++
	}

	equal := prefix + suffix
	if 2*equal < len(oldText) || 2*equal < len(newText) {
		return nil
	}
	p := updated.PositionOf(len(newText) - suffix)
	return &p
}
