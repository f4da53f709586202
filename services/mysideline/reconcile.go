package mysideline

import (
	"time"

	"oldmanfooty-backend/lib/carnivalstore"
)

// storeSnapshot indexes the canonical store as it stood when
// reconciliation started. The whole run classifies against this one
// view so writes within the run can't influence later candidates.
type storeSnapshot struct {
	bySourceId    map[string]carnivalstore.Carnival
	byFingerprint map[string][]carnivalstore.Carnival
}

func indexSnapshot(rows []carnivalstore.Carnival) storeSnapshot {
	snap := storeSnapshot{
		bySourceId:    map[string]carnivalstore.Carnival{},
		byFingerprint: map[string][]carnivalstore.Carnival{},
	}
	for _, row := range rows {
		if row.SourceId != "" {
			snap.bySourceId[row.SourceId] = row
			continue
		}
		// unlinked rows are matchable by fingerprint only
		if row.Date == "" || row.State == "" {
			continue
		}
		fp := fingerprint(canonicalTitle(row.Title), row.State, row.Date)
		snap.byFingerprint[fp] = append(snap.byFingerprint[fp], row)
	}
	return snap
}

// classify decides what the pipeline may do with one candidate. It is
// deterministic given the candidate, the snapshot and the clock.
func classify(c Candidate, snap storeSnapshot, cfg Config, now time.Time) Action {
	if c.State == "" {
		return Action{Kind: ActionSkip, Candidate: c, Reason: ReasonNoState}
	}
	if c.Date.IsZero() {
		return Action{Kind: ActionSkip, Candidate: c, Reason: ReasonNoDate}
	}
	if c.Date.Before(now.AddDate(0, 0, -cfg.StaleDays)) {
		return Action{Kind: ActionSkip, Candidate: c, Reason: ReasonStale}
	}

	if stored, ok := snap.bySourceId[c.SourceId]; ok {
		if stored.IsManuallyEntered {
			return Action{Kind: ActionBlocked, Candidate: c, Reason: ReasonManualOwned, TargetId: stored.Id}
		}
		patch, lockedDiff := computePatch(c, stored)
		if len(patch) == 0 {
			reason := ReasonNoChange
			if lockedDiff {
				reason = ReasonFieldLocked
			}
			return Action{Kind: ActionSkip, Candidate: c, Reason: reason, TargetId: stored.Id}
		}
		return Action{Kind: ActionUpdate, Candidate: c, TargetId: stored.Id, Patch: patch}
	}

	if matches := snap.byFingerprint[c.Fingerprint]; len(matches) > 0 {
		if len(matches) > 1 {
			return Action{Kind: ActionSkip, Candidate: c, Reason: ReasonAmbiguous}
		}
		stored := matches[0]
		if stored.IsManuallyEntered {
			return Action{Kind: ActionBlocked, Candidate: c, Reason: ReasonManualOwned, TargetId: stored.Id}
		}
		patch, _ := computePatch(c, stored)
		return Action{
			Kind:          ActionUpdate,
			Candidate:     c,
			TargetId:      stored.Id,
			Patch:         patch,
			AdoptSourceId: c.SourceId,
		}
	}

	return Action{Kind: ActionCreate, Candidate: c}
}

// computePatch builds the field-level update for an update-safe
// candidate. A field enters the patch only when the candidate actually
// has a value for it, the value differs, and the website hasn't marked
// the field as hand-edited. lockedDiff reports whether some difference
// was withheld because of an override.
func computePatch(c Candidate, stored carnivalstore.Carnival) (carnivalstore.Patch, bool) {
	desired := map[string]string{
		carnivalstore.FieldTitle:                 c.Title,
		carnivalstore.FieldDate:                  c.Date.Format("2006-01-02"),
		carnivalstore.FieldState:                 c.State,
		carnivalstore.FieldLocationAddress:       c.LocationAddress,
		carnivalstore.FieldRegistrationLink:      c.RegistrationLink,
		carnivalstore.FieldOrganiserContactName:  c.OrganiserContactName,
		carnivalstore.FieldOrganiserContactEmail: c.OrganiserContactEmail,
		carnivalstore.FieldOrganiserContactPhone: c.OrganiserContactPhone,
		carnivalstore.FieldLogoUrl:               c.LogoUrl,
		carnivalstore.FieldDescription:           c.Description,
	}
	current := map[string]string{
		carnivalstore.FieldTitle:                 stored.Title,
		carnivalstore.FieldDate:                  stored.Date,
		carnivalstore.FieldState:                 stored.State,
		carnivalstore.FieldLocationAddress:       stored.LocationAddress,
		carnivalstore.FieldRegistrationLink:      stored.RegistrationLink,
		carnivalstore.FieldOrganiserContactName:  stored.OrganiserContactName,
		carnivalstore.FieldOrganiserContactEmail: stored.OrganiserContactEmail,
		carnivalstore.FieldOrganiserContactPhone: stored.OrganiserContactPhone,
		carnivalstore.FieldLogoUrl:               stored.LogoUrl,
		carnivalstore.FieldDescription:           stored.Description,
	}

	patch := carnivalstore.Patch{}
	lockedDiff := false
	for field, value := range desired {
		// the import never blanks out data the site already has
		if value == "" || value == current[field] {
			continue
		}
		if stored.HasOverride(field) {
			lockedDiff = true
			continue
		}
		patch[field] = value
	}
	return patch, lockedDiff
}

// asCarnival maps a create-classified candidate onto a fresh row.
func asCarnival(c Candidate, importedAt time.Time) carnivalstore.Carnival {
	return carnivalstore.Carnival{
		SourceId:              c.SourceId,
		Title:                 c.Title,
		Date:                  c.Date.Format("2006-01-02"),
		State:                 c.State,
		LocationAddress:       c.LocationAddress,
		RegistrationLink:      c.RegistrationLink,
		OrganiserContactName:  c.OrganiserContactName,
		OrganiserContactEmail: c.OrganiserContactEmail,
		OrganiserContactPhone: c.OrganiserContactPhone,
		LogoUrl:               c.LogoUrl,
		Description:           c.Description,
		IsManuallyEntered:     false,
		LastImportedAt:        importedAt,
		IsActive:              true,
	}
}
