package cnst

// ActionType represents the type of action performed on a registry or rule document
type ActionType string

const (
	// ActionCreate represents a create action
	ActionCreate ActionType = "Create"
	// ActionUpdate represents an update action
	ActionUpdate ActionType = "Update"
	// ActionDelete represents a delete action
	ActionDelete ActionType = "Delete"
	// ActionGrant represents adding a site to an explicit grant
	ActionGrant ActionType = "Grant"
	// ActionRevoke represents removing a site from an explicit grant
	ActionRevoke ActionType = "Revoke"
	// ActionPrune represents removing a deleted site from every grant
	ActionPrune ActionType = "Prune"
	// ActionSeed represents replacing the whole registry
	ActionSeed ActionType = "Seed"
)

func (a ActionType) String() string {
	return string(a)
}
