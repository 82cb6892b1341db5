// Package policy decides whether an actor may perform an action on a
// resource. Authorize is pure: the decision depends only on its arguments.
package policy

import (
	"github.com/modern-blog/internal/errs"
	"github.com/modern-blog/internal/models"
)

// Action is an operation an actor asks to perform
type Action string

const (
	ActionListContent    Action = "list-content"
	ActionViewContent    Action = "view-content"
	ActionCreateContent  Action = "create-content"
	ActionModifyContent  Action = "modify-content"
	ActionDeleteContent  Action = "delete-content"
	ActionListOwnContent Action = "list-own-content"
	ActionViewDashboard  Action = "view-dashboard"
	ActionViewAccount    Action = "view-account-detail"
	ActionModifyAccount  Action = "modify-account"
	ActionCreateComment  Action = "create-comment"
	ActionModifyComment  Action = "modify-comment"
	ActionRegister       Action = "register-as"
)

// Reason is a stable deny code
type Reason string

const (
	ReasonAuthenticationRequired Reason = "authentication_required"
	ReasonInsufficientRole       Reason = "insufficient_role"
	ReasonNotVisible             Reason = "not_visible"
	ReasonNotOwner               Reason = "not_owner"
)

var writeActions = map[Action]bool{
	ActionCreateContent: true,
	ActionModifyContent: true,
	ActionDeleteContent: true,
	ActionCreateComment: true,
	ActionModifyComment: true,
	ActionModifyAccount: true,
}

var contentMutations = map[Action]bool{
	ActionCreateContent: true,
	ActionModifyContent: true,
	ActionDeleteContent: true,
}

var adminViews = map[Action]bool{
	ActionViewDashboard:  true,
	ActionListOwnContent: true,
}

// Actor is the resolved identity making a request
type Actor struct {
	ID       string
	Username string
	Role     models.Role
}

// Anonymous is the actor of requests without a valid session
var Anonymous = Actor{}

// ActorFor builds the actor of a stored account
func ActorFor(u *models.User) Actor {
	return Actor{ID: u.ID, Username: u.Username, Role: u.Role}
}

func (a Actor) IsAnonymous() bool { return a.ID == "" }

func (a Actor) IsAdmin() bool {
	return !a.IsAnonymous() && a.Role == models.RoleAdministrator
}

// Resource describes the target of an action. Only the fields relevant
// to the action need to be set.
type Resource struct {
	OwnerID string               // article or comment author, or the account itself
	Status  models.ArticleStatus // article status for view-content
	Role    models.Role          // requested role for register-as
}

// Decision is the outcome of Authorize
type Decision struct {
	Allowed bool
	Reason  Reason
	// QuotaGuarded is set when the action is allowed only if the
	// administrator quota has room.
	QuotaGuarded bool
}

func allow() Decision { return Decision{Allowed: true} }

func deny(r Reason) Decision { return Decision{Reason: r} }

// Authorize evaluates the access rules in order; the first match wins.
func Authorize(actor Actor, action Action, res Resource) Decision {
	if actor.IsAnonymous() && writeActions[action] {
		return deny(ReasonAuthenticationRequired)
	}

	if contentMutations[action] || adminViews[action] {
		if !actor.IsAdmin() {
			return deny(ReasonInsufficientRole)
		}
		return allow()
	}

	switch action {
	case ActionViewContent:
		if res.Status != models.StatusPublished && !actor.IsAdmin() && !owns(actor, res) {
			return deny(ReasonNotVisible)
		}
	case ActionViewAccount:
		if !actor.IsAdmin() && !owns(actor, res) {
			return deny(ReasonInsufficientRole)
		}
	case ActionModifyAccount:
		if !owns(actor, res) {
			return deny(ReasonNotOwner)
		}
	case ActionModifyComment:
		if !actor.IsAdmin() && !owns(actor, res) {
			return deny(ReasonNotOwner)
		}
	case ActionRegister:
		if res.Role == models.RoleAdministrator {
			return Decision{Allowed: true, QuotaGuarded: true}
		}
	}

	return allow()
}

func owns(actor Actor, res Resource) bool {
	return !actor.IsAnonymous() && res.OwnerID != "" && actor.ID == res.OwnerID
}

// Err converts a deny into the error surfaced to the caller. It returns
// nil for an allow.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonAuthenticationRequired:
		return errs.NewAuthentication("Authentication required")
	case ReasonNotVisible:
		return errs.NewNotVisible("Article not found")
	case ReasonNotOwner:
		return errs.NewAuthorization(string(d.Reason), "You can only modify your own content")
	default:
		return errs.NewAuthorization(string(d.Reason), "Access denied. Insufficient permissions.")
	}
}
