package client

import "strings"

// FeedbackForm holds the user's draft feedback: a narrative plus a list of
// discrete requested changes, each independently editable before submission.
// The form always keeps at least one slot so there is something to type into.
type FeedbackForm struct {
	Narrative string
	Changes   []string
}

func NewFeedbackForm() FeedbackForm {
	return FeedbackForm{Changes: []string{""}}
}

func (f *FeedbackForm) AddChange() {
	f.Changes = append(f.Changes, "")
}

func (f *FeedbackForm) SetChange(index int, value string) {
	if index < 0 || index >= len(f.Changes) {
		return
	}
	f.Changes[index] = value
}

func (f *FeedbackForm) RemoveChange(index int) {
	if index < 0 || index >= len(f.Changes) {
		return
	}
	f.Changes = append(f.Changes[:index], f.Changes[index+1:]...)
	if len(f.Changes) == 0 {
		f.Changes = []string{""}
	}
}

// CanSubmit blocks submission while a previous action is still in flight or
// while the narrative is empty.
func (f *FeedbackForm) CanSubmit(busy bool) bool {
	return !busy && strings.TrimSpace(f.Narrative) != ""
}

// RequestedChanges returns the change list with blank entries stripped, the
// shape actually sent to the server.
func (f *FeedbackForm) RequestedChanges() []string {
	out := make([]string, 0, len(f.Changes))
	for _, change := range f.Changes {
		if trimmed := strings.TrimSpace(change); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Reset clears the narrative and leaves a single blank change slot.
func (f *FeedbackForm) Reset() {
	f.Narrative = ""
	f.Changes = []string{""}
}
