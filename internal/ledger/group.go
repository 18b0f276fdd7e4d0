package ledger

import (
	"sort"
	"time"

	"stock-ledger/internal/models"
)

// GroupKey identifies a reservation group: one customer on one day.
// Groups are a presentation concept and are never persisted.
type GroupKey struct {
	CustomerID string    `json:"customer_id"`
	Date       time.Time `json:"date"`
}

func (k GroupKey) String() string {
	return k.CustomerID + "|" + k.Date.Format(models.DateLayout)
}

// KeyOf returns the group r belongs to.
func KeyOf(r *models.Reservation) GroupKey {
	return GroupKey{CustomerID: r.CustomerID, Date: models.TruncateDay(r.ReservationDate)}
}

// Group is a set of reservations sharing a customer and date.
type Group struct {
	Key          GroupKey             `json:"key"`
	Reservations []models.Reservation `json:"reservations"`
}

// GroupReservations buckets reservations by (customer, date), newest date
// first. Members keep their input order.
func GroupReservations(rs []models.Reservation) []Group {
	index := make(map[GroupKey]int)
	var groups []Group
	for _, r := range rs {
		key := KeyOf(&r)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Reservations = append(groups[i].Reservations, r)
	}

	sort.SliceStable(groups, func(a, b int) bool {
		ka, kb := groups[a].Key, groups[b].Key
		if !ka.Date.Equal(kb.Date) {
			return ka.Date.After(kb.Date)
		}
		return ka.CustomerID < kb.CustomerID
	})
	return groups
}

// DesiredMember is one line of the desired group contents. ID is empty for
// lines the caller wants created.
type DesiredMember struct {
	ID           string `json:"id,omitempty"`
	ProductID    string `json:"product_id"`
	PackageLabel string `json:"package_label"`
	Quantity     int    `json:"quantity"`
}

// MemberUpdate pairs an existing member with the desired line it matched.
type MemberUpdate struct {
	Existing models.Reservation
	Desired  DesiredMember
}

// Changed reports whether applying Desired would modify Existing.
func (u MemberUpdate) Changed() bool {
	return u.Existing.ProductID != u.Desired.ProductID ||
		u.Existing.PackageLabel != u.Desired.PackageLabel ||
		u.Existing.Quantity != u.Desired.Quantity
}

// GroupPlan is the diff between a group's members and the desired list.
type GroupPlan struct {
	Updates []MemberUpdate
	Creates []DesiredMember
	Deletes []models.Reservation
}

// PlanGroupEdit diffs existing members against desired lines. Lines with an
// ID match that member; lines without one match a still-unmatched Active
// member on the same (product, package) pair, so re-applying an edit never
// duplicates creates. Delivered and cancelled members are only matched by ID.
// Unmatched members are deleted and unmatched lines created.
func PlanGroupEdit(existing []models.Reservation, desired []DesiredMember) (GroupPlan, error) {
	byID := make(map[string]int, len(existing))
	for i, r := range existing {
		byID[r.ID] = i
	}

	matched := make([]bool, len(existing))
	var plan GroupPlan
	var pending []DesiredMember

	for _, d := range desired {
		if err := ValidateQuantity(d.Quantity); err != nil {
			return GroupPlan{}, err
		}
		if d.ID == "" {
			pending = append(pending, d)
			continue
		}
		i, ok := byID[d.ID]
		if !ok {
			return GroupPlan{}, ErrUnknownGroupMember
		}
		if matched[i] {
			return GroupPlan{}, ErrDuplicateGroupMember
		}
		matched[i] = true
		plan.Updates = append(plan.Updates, MemberUpdate{Existing: existing[i], Desired: d})
	}

	for _, d := range pending {
		found := -1
		for i, r := range existing {
			if !matched[i] && r.Status == models.ReservationStatusActive &&
				r.ProductID == d.ProductID && r.PackageLabel == d.PackageLabel {
				found = i
				break
			}
		}
		if found < 0 {
			plan.Creates = append(plan.Creates, d)
			continue
		}
		matched[found] = true
		d.ID = existing[found].ID
		plan.Updates = append(plan.Updates, MemberUpdate{Existing: existing[found], Desired: d})
	}

	for i, r := range existing {
		if !matched[i] {
			plan.Deletes = append(plan.Deletes, r)
		}
	}
	return plan, nil
}
