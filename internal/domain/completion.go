package domain

// ProfileComplete reports whether a user profile carries everything the
// platform needs before booking and chat flows make sense: a photo (or an
// explicit has-photo assertion), a phone number, a country and a city.
// A nil user is always incomplete.
func ProfileComplete(u *User) bool {
	if u == nil {
		return false
	}
	if !u.PhotoKnown() {
		return false
	}
	return u.Phone != "" && u.Country != "" && u.City != ""
}
