// Package tips computes the "current" version of a subtitle language under
// the public and private visibility filters. The functions here are pure;
// Resolver adds an explicitly-invalidated read-through cache on top.
package tips

import (
	"github.com/captionflow/captionflow/pkg/models"
)

// PublicTip returns the version with the highest version number among
// public, non-deleted versions, or nil when there is none.
func PublicTip(versions []*models.SubtitleVersion) *models.SubtitleVersion {
	var tip *models.SubtitleVersion
	for _, v := range versions {
		if !v.IsPublic() {
			continue
		}
		if tip == nil || v.VersionNumber > tip.VersionNumber {
			tip = v
		}
	}
	return tip
}

// PrivateTip returns the version with the highest version number among all
// non-deleted versions regardless of visibility, or nil when there is none.
func PrivateTip(versions []*models.SubtitleVersion) *models.SubtitleVersion {
	var tip *models.SubtitleVersion
	for _, v := range versions {
		if v.IsDeleted() {
			continue
		}
		if tip == nil || v.VersionNumber > tip.VersionNumber {
			tip = v
		}
	}
	return tip
}

// Tip selects the public or private tip.
func Tip(versions []*models.SubtitleVersion, public bool) *models.SubtitleVersion {
	if public {
		return PublicTip(versions)
	}
	return PrivateTip(versions)
}

// EarliestReviewer returns the reviewer recorded on the EARLIEST version
// that set one. Later reviewers never win; this matches longstanding
// behavior that downstream consumers depend on, so do not change the
// tie-break without a product decision.
func EarliestReviewer(versions []*models.SubtitleVersion) string {
	return earliestField(versions, func(v *models.SubtitleVersion) string { return v.ReviewedByID })
}

// EarliestApprover returns the approver recorded on the earliest version
// that set one. Same tie-break as EarliestReviewer.
func EarliestApprover(versions []*models.SubtitleVersion) string {
	return earliestField(versions, func(v *models.SubtitleVersion) string { return v.ApprovedByID })
}

func earliestField(versions []*models.SubtitleVersion, field func(*models.SubtitleVersion) string) string {
	var earliest *models.SubtitleVersion
	for _, v := range versions {
		if field(v) == "" {
			continue
		}
		if earliest == nil || v.VersionNumber < earliest.VersionNumber {
			earliest = v
		}
	}
	if earliest == nil {
		return ""
	}
	return field(earliest)
}
