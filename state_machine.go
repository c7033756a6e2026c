package auth

import "strings"

// AuthState is the routing state of the current session.
type AuthState string

const (
	StateUnauthenticated         AuthState = "unauthenticated"
	StateNeedsCommunitySelection AuthState = "needsCommunitySelection"
	StateNeedsRoleSelection      AuthState = "needsRoleSelection"
	StateProfileIncomplete       AuthState = "profileIncomplete"
	StateAuthenticated           AuthState = "authenticated"
)

// Redirect destinations.
const (
	RouteLogin           = "/login"
	RouteSelectCommunity = "/select-community"
	RouteRoleSelect      = "/role-select"
	RouteCustomerHome    = "/home/customer"
	RouteAdminHome       = "/home/admin"
	RouteDeliveryHome    = "/home/delivery"
)

// AllStates lists every state the evaluator can produce.
func AllStates() []AuthState {
	return []AuthState{
		StateUnauthenticated,
		StateNeedsCommunitySelection,
		StateNeedsRoleSelection,
		StateProfileIncomplete,
		StateAuthenticated,
	}
}

// EvaluationInput is what the evaluator looks at. Role and Community are the
// denormalized copies kept in the session cache.
type EvaluationInput struct {
	Record    *UserRecord
	Role      string
	Community string
}

// Evaluation is the evaluator's answer.
type Evaluation struct {
	State      AuthState
	RedirectTo string
}

// StateRule is one step of the routing policy. Rules are checked in order
// and the first match wins.
type StateRule struct {
	Name     string
	Match    func(in EvaluationInput) bool
	State    AuthState
	Redirect func(in EvaluationInput) string
}

// DefaultStateRules returns the routing policy. Profile completion shares the
// community selection screen but stays a distinct state.
func DefaultStateRules() []StateRule {
	return []StateRule{
		{
			Name:     "no_user",
			Match:    func(in EvaluationInput) bool { return in.Record == nil },
			State:    StateUnauthenticated,
			Redirect: staticRoute(RouteLogin),
		},
		{
			Name:     "no_community",
			Match:    func(in EvaluationInput) bool { return ResolveCommunity(in) == "" },
			State:    StateNeedsCommunitySelection,
			Redirect: staticRoute(RouteSelectCommunity),
		},
		{
			Name:     "no_role",
			Match:    func(in EvaluationInput) bool { return !UsableRole(in.Role) },
			State:    StateNeedsRoleSelection,
			Redirect: staticRoute(RouteRoleSelect),
		},
		{
			Name:     "profile_incomplete",
			Match:    func(in EvaluationInput) bool { return !in.Record.Profile.Complete() },
			State:    StateProfileIncomplete,
			Redirect: staticRoute(RouteSelectCommunity),
		},
	}
}

var defaultStateRules = DefaultStateRules()

// Evaluate computes the state and redirect for the given cached data. It is
// pure and total.
func Evaluate(record *UserRecord, role, community string) Evaluation {
	return EvaluateWith(defaultStateRules, EvaluationInput{
		Record:    record,
		Role:      role,
		Community: community,
	})
}

// EvaluateWith runs a custom rule list. Inputs no rule matches are
// authenticated and routed to their role home.
func EvaluateWith(rules []StateRule, in EvaluationInput) Evaluation {
	for _, rule := range rules {
		if rule.Match == nil || !rule.Match(in) {
			continue
		}
		redirect := RouteLogin
		if rule.Redirect != nil {
			redirect = rule.Redirect(in)
		}
		if redirect == "" {
			redirect = RouteLogin
		}
		return Evaluation{State: rule.State, RedirectTo: redirect}
	}

	if in.Record == nil {
		return Evaluation{State: StateUnauthenticated, RedirectTo: RouteLogin}
	}

	return Evaluation{State: StateAuthenticated, RedirectTo: RoleHome(in.Role)}
}

// ResolveCommunity returns the selected community, falling back to the one
// stored in the profile.
func ResolveCommunity(in EvaluationInput) string {
	if c := strings.TrimSpace(in.Community); usableValue(c) {
		return c
	}
	return in.Record.CommunityID()
}

// RoleHome maps a role to its home route. Unknown roles land on the
// customer home.
func RoleHome(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleAdmin:
		return RouteAdminHome
	case RoleDelivery, RoleDeliveryPartner:
		return RouteDeliveryHome
	default:
		return RouteCustomerHome
	}
}

func staticRoute(path string) func(EvaluationInput) string {
	return func(EvaluationInput) string { return path }
}
