package domain

import (
	"strconv"
	"strings"
	"time"
)

type ActionToken struct {
	ID        int64
	UserID    int64
	Value     string
	Kind      string
	CreatedAt time.Time
}

// Action kinds accepted by the token service.
const (
	ActionWatchAd       = "watchAd"
	ActionPreSpin       = "preSpin"
	ActionSpinResult    = "spinResult"
	ActionWithdraw      = "withdraw"
	ActionCreateTask    = "createTask"
	ActionDeleteTask    = "deleteTask"
	ActionSearchUser    = "searchUser"
	ActionListPending   = "getPendingWithdrawals"
	ActionUpdateBalance = "updateBalance"
	ActionToggleBan     = "toggleBan"
	ActionAdmin         = "adminAction"

	completeTaskPrefix = "completeTask_"
)

var adminActions = map[string]bool{
	ActionCreateTask:    true,
	ActionDeleteTask:    true,
	ActionSearchUser:    true,
	ActionListPending:   true,
	ActionUpdateBalance: true,
	ActionToggleBan:     true,
	ActionAdmin:         true,
}

// CompleteTaskAction returns the token scope for completing one task.
func CompleteTaskAction(taskID int64) string {
	return completeTaskPrefix + strconv.FormatInt(taskID, 10)
}

// IsAdminAction reports whether kind is scoped to a privileged operation.
func IsAdminAction(kind string) bool {
	return adminActions[kind]
}

// ValidActionKind reports whether a token may be issued for kind.
func ValidActionKind(kind string) bool {
	switch kind {
	case ActionWatchAd, ActionPreSpin, ActionSpinResult, ActionWithdraw:
		return true
	}
	if adminActions[kind] {
		return true
	}
	id, ok := strings.CutPrefix(kind, completeTaskPrefix)
	if !ok {
		return false
	}
	n, err := strconv.ParseInt(id, 10, 64)
	return err == nil && n > 0
}
