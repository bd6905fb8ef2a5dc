package domain

import "strings"

// ValidateNewTask checks a create request against the layout.
func ValidateNewTask(layout Layout, n NewTask) error {
	const op = "create"
	if n.Title == "" {
		return Errorf(KindValidationFailed, op, "", "title is required")
	}
	if n.Reporter == "" {
		return Errorf(KindValidationFailed, op, "", "reporter is required")
	}
	if !layout.Has(n.Status) {
		return Errorf(KindValidationFailed, op, "", "unknown column %q", n.Status)
	}
	if !n.Priority.Valid() {
		return Errorf(KindValidationFailed, op, "", "unknown priority %q", n.Priority)
	}
	return nil
}

// ValidatePatch checks the fields a patch sets.
func ValidatePatch(id ID, p TaskPatch) error {
	const op = "update"
	if p.Empty() {
		return Errorf(KindValidationFailed, op, id, "patch has no fields")
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return Errorf(KindValidationFailed, op, id, "title cannot be empty")
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return Errorf(KindValidationFailed, op, id, "unknown priority %q", *p.Priority)
	}
	return nil
}

// ValidateComment trims the input and requires both commenter and text.
func ValidateComment(id ID, in CommentInput) (CommentInput, error) {
	const op = "comment"
	in.Commenter = strings.TrimSpace(in.Commenter)
	in.Text = strings.TrimSpace(in.Text)
	if in.Commenter == "" {
		return in, Errorf(KindValidationFailed, op, id, "commenter is required")
	}
	if in.Text == "" {
		return in, Errorf(KindValidationFailed, op, id, "comment is required")
	}
	return in, nil
}
