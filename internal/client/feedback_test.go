package client

import (
	"reflect"
	"testing"
)

func TestFeedbackFormSubmitGuards(t *testing.T) {
	form := NewFeedbackForm()
	if form.CanSubmit(false) {
		t.Fatalf("empty narrative must not be submittable")
	}
	form.Narrative = "   "
	if form.CanSubmit(false) {
		t.Fatalf("whitespace narrative must not be submittable")
	}
	form.Narrative = "reduce the budget"
	if !form.CanSubmit(false) {
		t.Fatalf("non-empty narrative should be submittable")
	}
	if form.CanSubmit(true) {
		t.Fatalf("busy session must block submission")
	}
}

func TestFeedbackFormChangeEditing(t *testing.T) {
	form := NewFeedbackForm()
	if len(form.Changes) != 1 || form.Changes[0] != "" {
		t.Fatalf("new form should have one blank slot, got %v", form.Changes)
	}

	form.SetChange(0, "cut budget by 30%")
	form.AddChange()
	form.SetChange(1, "  shorten timeline  ")
	form.AddChange()

	got := form.RequestedChanges()
	want := []string{"cut budget by 30%", "shorten timeline"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("requested changes: got %v want %v", got, want)
	}

	form.RemoveChange(0)
	form.RemoveChange(0)
	form.RemoveChange(0)
	if len(form.Changes) != 1 || form.Changes[0] != "" {
		t.Fatalf("removing all changes should leave one blank slot, got %v", form.Changes)
	}

	form.SetChange(5, "out of range")
	form.RemoveChange(-1)
	if len(form.Changes) != 1 {
		t.Fatalf("out of range edits must be ignored, got %v", form.Changes)
	}
}

func TestFeedbackFormReset(t *testing.T) {
	form := NewFeedbackForm()
	form.Narrative = "tone it down"
	form.SetChange(0, "softer copy")
	form.AddChange()

	form.Reset()
	if form.Narrative != "" {
		t.Fatalf("narrative should clear on reset, got %q", form.Narrative)
	}
	if len(form.Changes) != 1 || form.Changes[0] != "" {
		t.Fatalf("reset should leave one blank slot, got %v", form.Changes)
	}
}
