// state.go
//
// Tenant-scoped intake forms and application review service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-intakedb.
// jam-build-intakedb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-intakedb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-intakedb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package lifecycle holds the application status graph. Persistence applies the
// resulting status with a conditional update on the prior one.
package lifecycle

import (
	"errors"
	"fmt"
)

// Status of an application.
type Status string

const (
	Draft     Status = "draft"
	Submitted Status = "submitted"
	Accepted  Status = "accepted"
	Rejected  Status = "rejected"
	Withdrawn Status = "withdrawn"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case Draft, Submitted, Accepted, Rejected, Withdrawn:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	switch s {
	case Accepted, Rejected, Withdrawn:
		return true
	default:
		return false
	}
}

// IsEditable reports whether the payload may still change.
func IsEditable(s Status) bool {
	return s == Draft
}

// Action is a requested transition.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionWithdraw Action = "withdraw"
	ActionReview   Action = "review"
)

var (
	// ErrIllegalTransition is returned when the current status does not allow the action.
	ErrIllegalTransition = errors.New("illegal status transition")
	// ErrInvalidReviewStatus is returned when a review names a status other than accepted, rejected or submitted.
	ErrInvalidReviewStatus = errors.New("review status must be accepted or rejected")
)

// TransitionError describes a refused transition.
type TransitionError struct {
	From   Status
	To     Status
	Action Action
	Kind   error
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("cannot %s an application that is %s", e.Action, e.From)
	}
	return fmt.Sprintf("cannot %s an application that is %s (to %s)", e.Action, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return e.Kind }

func isAllowedTransition(from, to Status) bool {
	switch from {
	case Draft:
		return to == Submitted || to == Withdrawn
	case Submitted:
		return to == Accepted || to == Rejected || to == Withdrawn
	default:
		return false
	}
}

// Next resolves the status that action moves from into. reviewTarget is only
// read for ActionReview. A review targeting Submitted records stage progress
// and leaves the status unchanged; it is still only legal while submitted.
// Terminal states refuse every action before its arguments are looked at.
func Next(from Status, action Action, reviewTarget Status) (Status, error) {
	if IsTerminal(from) {
		return from, &TransitionError{From: from, Action: action, Kind: ErrIllegalTransition}
	}

	var to Status
	switch action {
	case ActionSubmit:
		to = Submitted
	case ActionWithdraw:
		to = Withdrawn
	case ActionReview:
		switch reviewTarget {
		case Accepted, Rejected:
			to = reviewTarget
		case Submitted:
			if from != Submitted {
				return from, &TransitionError{From: from, Action: action, Kind: ErrIllegalTransition}
			}
			return Submitted, nil
		default:
			return from, &TransitionError{From: from, To: reviewTarget, Action: action, Kind: ErrInvalidReviewStatus}
		}
	default:
		return from, &TransitionError{From: from, Action: action, Kind: ErrIllegalTransition}
	}

	if !isAllowedTransition(from, to) {
		return from, &TransitionError{From: from, To: to, Action: action, Kind: ErrIllegalTransition}
	}
	return to, nil
}

// CanEdit returns an error unless the payload of an application in s may change.
func CanEdit(s Status) error {
	if IsEditable(s) {
		return nil
	}
	return &TransitionError{From: s, Action: "edit", Kind: ErrIllegalTransition}
}

// Statuses lists every status, for filter validation.
func Statuses() []Status {
	return []Status{Draft, Submitted, Accepted, Rejected, Withdrawn}
}
