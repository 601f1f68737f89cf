package model

import (
	"sort"
	"time"
)

// ActivityKind names the workflow action an Activity records.
type ActivityKind string

const (
	ActivitySubmit  ActivityKind = "submit"
	ActivityVerify  ActivityKind = "verify"
	ActivityResolve ActivityKind = "resolve"
	ActivityDecline ActivityKind = "decline"
	ActivityDelete  ActivityKind = "delete"
)

func (k ActivityKind) Valid() bool {
	switch k {
	case ActivitySubmit, ActivityVerify, ActivityResolve, ActivityDecline, ActivityDelete:
		return true
	}
	return false
}

// ActivityForStatus maps a transition target to the ledger kind recorded for it.
func ActivityForStatus(s Status) (ActivityKind, bool) {
	switch s {
	case StatusVerified:
		return ActivityVerify, true
	case StatusResolved:
		return ActivityResolve, true
	case StatusDeclined:
		return ActivityDecline, true
	}
	return "", false
}

// Activity is one immutable ledger entry.
//
// TargetTitle is a snapshot of the report title at the time of the action;
// the report itself may be gone by the time the entry is read.
type Activity struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	Type         ActivityKind `json:"type"`
	TargetTitle  string       `json:"targetTitle"`
	PointsChange int          `json:"pointsChange"`
	Date         time.Time    `json:"date"`
}

// SortActivitiesByRecency orders newest first, ties broken by ID.
func SortActivitiesByRecency(activities []Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		if !activities[i].Date.Equal(activities[j].Date) {
			return activities[i].Date.After(activities[j].Date)
		}
		return activities[i].ID > activities[j].ID
	})
}
