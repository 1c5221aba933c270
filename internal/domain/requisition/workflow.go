package requisition

import (
	"fmt"

	"github.com/erp/chemstock/internal/domain/identity"
	"github.com/erp/chemstock/internal/domain/shared"
)

// Workflow refusals. Returned errors carry a specific message and match these with errors.Is.
var (
	ErrTransitionNotAllowed = shared.NewDomainError("TRANSITION_NOT_ALLOWED", "Status transition is not allowed")
	ErrNotPermitted         = shared.NewDomainError("NOT_PERMITTED", "User is not permitted to perform this transition")
	ErrItemsNotReceived     = shared.NewDomainError("ITEMS_NOT_RECEIVED", "Not all items have been received")
)

// actor selects who may fire a transition
type actor int

const (
	actorCreator actor = iota
	actorStaff
)

type transition struct {
	to      Status
	by      actor
	label   string
	confirm string
}

// transitions lists outgoing edges per status in display order.
// Terminal statuses have no entry.
var transitions = map[Status][]transition{
	StatusDraft: {
		{to: StatusSubmitted, by: actorCreator, label: "Отправить на рассмотрение"},
	},
	StatusSubmitted: {
		{to: StatusReviewing, by: actorStaff, label: "Взять на рассмотрение"},
	},
	StatusReviewing: {
		{to: StatusApproved, by: actorStaff, label: "Утвердить"},
		{to: StatusNeedsRevision, by: actorStaff, label: "Вернуть на доработку"},
		{to: StatusCancelled, by: actorStaff, label: "Отклонить", confirm: "Отклонить заявку? Это действие нельзя отменить."},
	},
	StatusNeedsRevision: {
		{to: StatusSubmitted, by: actorCreator, label: "Отправить повторно"},
	},
	StatusApproved: {
		{to: StatusInProgress, by: actorStaff, label: "Взять в исполнение"},
		{to: StatusSubmitted, by: actorStaff, label: "Отозвать утверждение"},
	},
	StatusInProgress: {
		{to: StatusCompleted, by: actorStaff, label: "Завершить выполнение", confirm: "Завершить заявку? Это действие нельзя отменить."},
		{to: StatusApproved, by: actorStaff, label: "Вернуть на утверждение"},
	},
	StatusPartiallyCompleted: {
		{to: StatusCompleted, by: actorStaff, label: "Завершить выполнение", confirm: "Завершить заявку? Это действие нельзя отменить."},
		{to: StatusApproved, by: actorStaff, label: "Вернуть на утверждение"},
	},
}

// Action is a status change offered to the viewer
type Action struct {
	Target   Status `json:"target"`
	Label    string `json:"label"`
	Confirm  string `json:"confirm"`
	Disabled bool   `json:"disabled"`
	Reason   string `json:"reason,omitempty"`
}

// AvailableActions returns the transitions the viewer may fire from the current
// status, in display order. Completion is listed but disabled while items are
// still outstanding.
func AvailableActions(req *Requisition, viewer *identity.User) []Action {
	if req == nil || viewer == nil {
		return nil
	}

	var actions []Action
	for _, t := range transitions[req.Status] {
		if !permitted(t.by, req, viewer) {
			continue
		}
		a := Action{
			Target:  t.to,
			Label:   t.label,
			Confirm: t.confirm,
		}
		if a.Confirm == "" {
			a.Confirm = fmt.Sprintf("Вы уверены, что хотите изменить статус на %q?", t.to.Label())
		}
		if t.to == StatusCompleted && !req.FullyReceived() {
			a.Disabled = true
			a.Reason = fmt.Sprintf("не приняты позиции: %d", len(req.PendingItems()))
		}
		actions = append(actions, a)
	}
	return actions
}

// CanTransition checks whether the viewer may move the requisition to target
func CanTransition(req *Requisition, viewer *identity.User, target Status) error {
	if req == nil {
		return shared.ErrInvalidInput
	}
	if viewer == nil {
		return shared.NewDomainError(ErrNotPermitted.Code, "No signed-in user")
	}
	if !target.IsValid() {
		return shared.NewDomainError(ErrTransitionNotAllowed.Code, fmt.Sprintf("Unknown status %q", target))
	}

	for _, t := range transitions[req.Status] {
		if t.to != target {
			continue
		}
		if !permitted(t.by, req, viewer) {
			return shared.NewDomainError(ErrNotPermitted.Code,
				fmt.Sprintf("Role %s cannot move requisition from %s to %s", viewer.Role, req.Status, target))
		}
		if target == StatusCompleted && !req.FullyReceived() {
			return shared.NewDomainError(ErrItemsNotReceived.Code,
				fmt.Sprintf("%d item(s) are not fully received", len(req.PendingItems())))
		}
		return nil
	}

	return shared.NewDomainError(ErrTransitionNotAllowed.Code,
		fmt.Sprintf("Cannot move requisition from %s to %s", req.Status, target))
}

func permitted(by actor, req *Requisition, viewer *identity.User) bool {
	switch by {
	case actorCreator:
		return req.IsCreatedBy(viewer)
	case actorStaff:
		return viewer.IsStaff()
	}
	return false
}
