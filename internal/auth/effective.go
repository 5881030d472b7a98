package auth

// Effective is the merged permission view computed from every role a user
// holds. Denies always win: a key present in Denies can never be granted,
// regardless of how many roles allow it or in what order they were read.
type Effective struct {
	Allows    map[string]struct{}
	Denies    map[string]struct{}
	AllAccess bool
}

// ResolveEffective folds a user's role permissions into one effective set.
// The merge is two-pass: all denies are collected before any allow is
// considered, so deny-wins holds for every role ordering.
func ResolveEffective(user *User) Effective {
	eff := Effective{
		Allows: make(map[string]struct{}),
		Denies: make(map[string]struct{}),
	}
	if user == nil {
		return eff
	}
	// The user-level flag and the catalog's all-access key are independent
	// signals; either one is sufficient.
	if user.AllProjectsAccess {
		eff.AllAccess = true
	}
	for _, role := range user.Roles {
		for _, rp := range role.Permissions {
			if rp.Action == ActionDeny {
				eff.Denies[rp.Key] = struct{}{}
			}
		}
	}
	for _, role := range user.Roles {
		for _, rp := range role.Permissions {
			if rp.Action != ActionAllow {
				continue
			}
			if _, denied := eff.Denies[rp.Key]; denied {
				continue
			}
			eff.Allows[rp.Key] = struct{}{}
			if rp.Key == KeyAllAccess {
				eff.AllAccess = true
			}
		}
	}
	return eff
}

// HasPermission answers a single key check: all-access short-circuits true,
// a denied key is false, an allowed key is true, everything else defaults
// to deny.
func (e Effective) HasPermission(key string) bool {
	if e.AllAccess {
		return true
	}
	if _, denied := e.Denies[key]; denied {
		return false
	}
	_, allowed := e.Allows[key]
	return allowed
}

// HasAnyPermission reports whether at least one of the keys is granted.
func (e Effective) HasAnyPermission(keys ...string) bool {
	if e.AllAccess {
		return true
	}
	for _, key := range keys {
		if e.HasPermission(key) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every key is granted.
func (e Effective) HasAllPermissions(keys ...string) bool {
	if e.AllAccess {
		return true
	}
	for _, key := range keys {
		if !e.HasPermission(key) {
			return false
		}
	}
	return true
}
