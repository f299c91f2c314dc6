package pathway

import (
	"maps"
	"slices"

	"pathways-backend/internal/models"
)

// Overlay holds caregiver edits keyed by draft id. Base drafts are never
// mutated; an edit is only ever read merged onto the current base draft of
// the same id. It is single-writer and not safe for concurrent use.
type Overlay map[string]models.PathwayDraft

// Save stores or overwrites the edit for draftID.
func (o Overlay) Save(draftID string, edited models.PathwayDraft) {
	edited.ID = draftID
	edited.Days = cloneDays(edited.Days)
	o[draftID] = edited
}

func (o Overlay) Discard(draftID string) {
	delete(o, draftID)
}

// EditedIDs lists the draft ids carrying edits, sorted.
func (o Overlay) EditedIDs() []string {
	return slices.Sorted(maps.Keys(o))
}

// Effective returns the base draft with id draftID, with any edited
// rationale and day headlines/summaries applied. ok is false when no base
// draft has that id.
func (o Overlay) Effective(draftID string, base []models.PathwayDraft) (draft models.PathwayDraft, ok bool) {
	for _, b := range base {
		if b.ID == draftID {
			return applyEdit(b, o[draftID], o.has(draftID)), true
		}
	}
	return models.PathwayDraft{}, false
}

// EffectiveAll maps Effective over every base draft, keeping order.
func (o Overlay) EffectiveAll(base []models.PathwayDraft) []models.PathwayDraft {
	out := make([]models.PathwayDraft, len(base))
	for i, b := range base {
		out[i] = applyEdit(b, o[b.ID], o.has(b.ID))
	}
	return out
}

// Reconcile re-points edits onto a freshly generated draft set. Edits whose
// id survives are carried onto the new draft's day skeleton by day index;
// edits for vanished ids, or whose day count no longer matches, are dropped.
func (o Overlay) Reconcile(fresh []models.PathwayDraft) Overlay {
	next := make(Overlay, len(o))
	for _, d := range fresh {
		edit, ok := o[d.ID]
		if !ok || len(edit.Days) != len(d.Days) {
			continue
		}
		days := cloneDays(d.Days)
		for i := range days {
			days[i].Headline = edit.Days[i].Headline
			days[i].Summary = edit.Days[i].Summary
		}
		rebased := d
		rebased.Days = days
		rebased.Rationale = edit.Rationale
		next[d.ID] = rebased
	}
	return next
}

func (o Overlay) has(id string) bool {
	_, ok := o[id]
	return ok
}

func applyEdit(base, edit models.PathwayDraft, hasEdit bool) models.PathwayDraft {
	out := base
	out.Days = cloneDays(base.Days)
	if !hasEdit {
		return out
	}
	if edit.Rationale != "" {
		out.Rationale = edit.Rationale
	}
	for i := range out.Days {
		if i >= len(edit.Days) {
			break
		}
		if h := edit.Days[i].Headline; h != "" {
			out.Days[i].Headline = h
		}
		if s := edit.Days[i].Summary; s != "" {
			out.Days[i].Summary = s
		}
	}
	return out
}
